package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bsaid97/go-spatial-check/pkg/config"
)

const defaultConfigFile = "spatial-check.yaml"

var rootCmd = &cobra.Command{
	Use:                   "spatial-check [command]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Spatial-check runs batch quality checks over geospatial datasets.",
	Long: `Spatial-check scans a dataset of vector tables for quality problems:
missing and malformed geometries, slivers, spikes, dangling line ends,
near-duplicate and overlapping features, schema drift and broken
attribute references. Every finding is pinned to a coordinate whenever
one can be determined, so it can be opened directly in a GIS.
`,
}

func init() {
	rootCmd.AddCommand(newCheckCmd(), newTablesCmd(), newVersionCmd())
}

func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the named config file, or the default one when it
// exists, or falls back to the built-in defaults.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.DefaultConfig(), nil
		}
		path = defaultConfigFile
	}
	return config.Load(path)
}

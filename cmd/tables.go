package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bsaid97/go-spatial-check/internal/logging"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// RunOptionsTables holds the arguments for the tables command.
type RunOptionsTables struct {
	ConfigFile string
	Dataset    string
}

var tablesOptions RunOptionsTables

func newTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "tables [--config/-c PATH] [--dataset/-d PATH]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "List the dataset's tables and their attribute columns",
		RunE:                  runTablesCommand,
	}
	fl := cmd.Flags()
	fl.StringVarP(&tablesOptions.ConfigFile, "config", "c", "", "config file (YAML)")
	fl.StringVarP(&tablesOptions.Dataset, "dataset", "d", "", "dataset directory (overrides config)")
	return cmd
}

func runTablesCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(tablesOptions.ConfigFile)
	if err != nil {
		return err
	}
	if tablesOptions.Dataset != "" {
		cfg.Dataset.Path = tablesOptions.Dataset
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Log, "spatial-check")
	src, err := source.OpenDir(cfg.Dataset.Path, log)
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer src.Close()

	tables, err := src.ListTables()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, table := range tables {
		if !cfg.Dataset.Selects(table) {
			continue
		}
		fmt.Fprintln(out, table)
		fields, err := src.Fields(table)
		if err != nil {
			fmt.Fprintf(out, "  (attributes unavailable: %v)\n", err)
			continue
		}
		for _, f := range fields {
			fmt.Fprintf(out, "  %-16s %s\n", f.Name, f.Type)
		}
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bsaid97/go-spatial-check/internal/logging"
	"github.com/bsaid97/go-spatial-check/internal/progress"
	"github.com/bsaid97/go-spatial-check/pkg/config"
	"github.com/bsaid97/go-spatial-check/pkg/engine"
	"github.com/bsaid97/go-spatial-check/pkg/exact"
	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// RunOptionsCheck holds the arguments for the check command.
type RunOptionsCheck struct {
	ConfigFile string
	Dataset    string
	Output     string
	Format     string
	Strategy   string
	Workers    int
	Quiet      bool
}

var (
	checkOptions      RunOptionsCheck
	exampleCheckUsage = `  # Run every configured check over a shapefile directory
  spatial-check check --dataset /data/cadastre

  # Run with a config file and write findings as a shapefile zip
  spatial-check check --config check.yaml --format shapefile --output findings.zip

  # Force the R-tree index and cap the worker pool
  spatial-check check --dataset /data/cadastre --strategy rtree -j 4`
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "check [--config/-c PATH] [--dataset/-d PATH] [--output/-o PATH] [--format/-f geojson|shapefile]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Example:               exampleCheckUsage,
		Short:                 "Run the configured quality checks over a dataset",
		RunE:                  runCheckCommand,
	}
	fl := cmd.Flags()
	fl.StringVarP(&checkOptions.ConfigFile, "config", "c", "", "config file (YAML)")
	fl.StringVarP(&checkOptions.Dataset, "dataset", "d", "", "dataset directory (overrides config)")
	fl.StringVarP(&checkOptions.Output, "output", "o", "", "findings output path (overrides config)")
	fl.StringVarP(&checkOptions.Format, "format", "f", "", "findings output format: geojson or shapefile")
	fl.StringVar(&checkOptions.Strategy, "strategy", "", "spatial index strategy: grid, rtree or quadtree")
	fl.IntVarP(&checkOptions.Workers, "workers", "j", 0, "maximum worker count (overrides config)")
	fl.BoolVarP(&checkOptions.Quiet, "quiet", "q", false, "suppress the progress line")
	return cmd
}

func runCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(checkOptions.ConfigFile)
	if err != nil {
		return err
	}
	applyCheckOverrides(&cfg, checkOptions)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Log, "spatial-check")

	src, err := source.OpenDir(cfg.Dataset.Path, log)
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer src.Close()

	sink, err := openSink(cfg.Output)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Source: src,
		Sink:   sink,
		Config: cfg,
		Exact:  exactProvider{},
		Logger: log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watchDone := make(chan struct{})
	if checkOptions.Quiet {
		close(watchDone)
	} else {
		go func() {
			defer close(watchDone)
			progress.New(cmd.ErrOrStderr()).Watch(watchCtx, 200*time.Millisecond, eng.Progress)
		}()
	}

	sum, runErr := eng.Run(ctx)
	stopWatch()
	<-watchDone

	if err := sink.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	printSummary(cmd.OutOrStdout(), cfg.Output.Path, sum)
	if runErr != nil {
		return runErr
	}
	if n := len(sum.FailedUnits); n > 0 {
		return fmt.Errorf("%d work units failed", n)
	}
	return nil
}

func applyCheckOverrides(cfg *config.Config, o RunOptionsCheck) {
	if o.Dataset != "" {
		cfg.Dataset.Path = o.Dataset
	}
	if o.Output != "" {
		cfg.Output.Path = o.Output
	}
	if o.Format != "" {
		cfg.Output.Format = o.Format
	}
	if o.Strategy != "" {
		cfg.Index.Strategy = o.Strategy
	}
	if o.Workers > 0 {
		cfg.Runtime.MaxWorkers = o.Workers
	}
}

func openSink(out config.OutputConfig) (finding.Sink, error) {
	f, err := os.Create(out.Path)
	if err != nil {
		return nil, err
	}
	switch out.Format {
	case "shapefile":
		return finding.NewZipSink(f), nil
	default:
		return finding.NewGeoJSONSink(f), nil
	}
}

func printSummary(w io.Writer, outPath string, sum engine.RunSummary) {
	fmt.Fprintf(w, "run %s: %d findings over %d tables (%d features) in %s\n",
		sum.RunID, sum.Findings, sum.Tables, sum.Features,
		sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  located %d, unlocated %d, written to %s\n",
		sum.Located, sum.Unlocated, outPath)
	if len(sum.FailedUnits) > 0 {
		fmt.Fprintf(w, "  %d failed work units:\n", len(sum.FailedUnits))
		for _, u := range sum.FailedUnits {
			fmt.Fprintf(w, "    %s\n", u)
		}
	}
}

// exactProvider hands the engine a fresh native-geometry arena per work
// unit.
type exactProvider struct{}

func (exactProvider) NewPass() (engine.ExactPass, error) {
	return exact.NewArena(), nil
}

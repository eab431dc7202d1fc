// Command evopipe runs an evolutionary pipeline search on a CSV or
// Parquet dataset from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evopipe/evopipe/pkg/config"
	"github.com/evopipe/evopipe/pkg/dataset"
	"github.com/evopipe/evopipe/pkg/logging"
	"github.com/evopipe/evopipe/pkg/operators"
	"github.com/evopipe/evopipe/pkg/scoring"
	"github.com/evopipe/evopipe/pkg/search"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "evopipe",
		Short: "Evolutionary search over machine-learning pipelines",
		Long: `evopipe evolves tree-structured preprocessing and modeling pipelines
against a labeled dataset and reports the Pareto front of score versus
pipeline size.`,
		SilenceUsage: true,
	}
	root.AddCommand(newFitCmd(), newOperatorsCmd())
	return root
}

type fitFlags struct {
	target      string
	task        string
	configPath  string
	generations int
	population  int
	seed        int64
	cachePath   string
	scoring     string
	preset      string
	maxTime     time.Duration
	verbosity   int
}

func newFitCmd() *cobra.Command {
	var f fitFlags
	cmd := &cobra.Command{
		Use:   "fit <data-file>",
		Short: "Run a pipeline search on a CSV or Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "name of the target column (required)")
	cmd.Flags().StringVar(&f.task, "task", "classification", "task type: classification or regression")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().IntVarP(&f.generations, "generations", "g", 0, "override generation count")
	cmd.Flags().IntVarP(&f.population, "population", "p", 0, "override population size")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed")
	cmd.Flags().StringVar(&f.cachePath, "cache", "", "SQLite file for the evaluation cache")
	cmd.Flags().StringVar(&f.scoring, "scoring", "", "score function name")
	cmd.Flags().StringVar(&f.preset, "preset", "", "operator catalog preset (default or light)")
	cmd.Flags().DurationVar(&f.maxTime, "max-time", 0, "stop after this wall-clock budget")
	cmd.Flags().IntVarP(&f.verbosity, "verbosity", "v", 1, "0 quiet, 1 progress, 2 debug")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newOperatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the implemented operators and score functions",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("Operators:")
			for _, name := range operators.Names() {
				kind, _ := operators.KindOf(name)
				cmd.Printf("  %-24s %s\n", name, kind)
			}
			cmd.Println("Score functions:")
			for _, name := range scoring.Names() {
				cmd.Printf("  %s\n", name)
			}
		},
	}
}

func loadTable(path, target string) (*dataset.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return dataset.LoadParquet(path, target)
	default:
		return dataset.LoadCSV(path, target)
	}
}

func runFit(ctx context.Context, path string, f fitFlags) error {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return err
		}
	}
	if f.generations > 0 {
		cfg.Generations = f.generations
	}
	if f.population > 0 {
		cfg.PopulationSize = f.population
		cfg.OffspringSize = f.population
	}
	if f.seed != 0 {
		cfg.Seed = f.seed
	}
	if f.cachePath != "" {
		cfg.CachePath = f.cachePath
	}
	if f.scoring != "" {
		cfg.Scoring = f.scoring
	}
	if f.preset != "" {
		cfg.CatalogPreset = f.preset
	}
	if f.maxTime > 0 {
		cfg.MaxTime = config.Duration(f.maxTime)
	}
	cfg.Verbosity = f.verbosity

	severity := logging.INFO
	switch cfg.Verbosity {
	case 0:
		severity = logging.WARN
	case 2:
		severity = logging.DEBUG
	}
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: severity,
		Outputs:  []logging.Output{logging.NewConsoleOutput(true)},
	}))

	table, err := loadTable(path, f.target)
	if err != nil {
		return err
	}

	var s *search.PipelineSearch
	switch f.task {
	case "classification":
		s, err = search.NewClassifier(cfg)
	case "regression":
		s, err = search.NewRegressor(cfg)
	default:
		return fmt.Errorf("unknown task %q", f.task)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Fit(ctx, table.X, table.Y); err != nil {
		return err
	}

	fmt.Println("Best pipeline:")
	fmt.Printf("  %s\n", s.Best())
	fmt.Printf("  score=%.5f operators=%d\n", s.Best().Fitness.Quality, int(s.Best().Fitness.Complexity))
	fmt.Println("Pareto front:")
	for _, ind := range s.Archive() {
		fmt.Printf("  [%d ops, score %.5f] %s\n", int(ind.Fitness.Complexity), ind.Fitness.Quality, ind)
	}
	return nil
}

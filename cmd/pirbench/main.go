// Package main provides the CLI entry point for pirbench, a parameter sweep
// harness for private information retrieval and multi-party computation
// engines.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/pirbench/bench"
	"github.com/weiihann/pirbench/harness"
	"github.com/weiihann/pirbench/merge"
	"github.com/weiihann/pirbench/prefix"
	"github.com/weiihann/pirbench/report"
	"github.com/weiihann/pirbench/sweep"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool

	logger := func() *slog.Logger { return newLogger(stderr, verbose) }

	root := &cobra.Command{
		Use:   "pirbench",
		Short: "Parameter sweep harness for PIR and MPC engines",
		Long: `Pirbench runs an external query engine once per configuration row,
captures the comma-separated telemetry line the engine prints last, and joins
configurations and telemetry into one dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newRunCmd(logger),
		newMergeCmd(logger),
		newScanCmd(),
		newVariantsCmd(),
	)

	return root
}

type runConfig struct {
	variant     string
	sweepPath   string
	engine      string
	binDir      string
	buildDir    string
	outDir      string
	onFailure   string
	mergePolicy string
	timeout     time.Duration
	outputJSON  bool
	reportPath  string
}

func newRunCmd(logger func() *slog.Logger) *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a parameter sweep through an engine",
		Long: `Record the sweep's parameter rows, invoke the engine once per row in
order, record each telemetry line, and write the combined dataset.

A failed invocation never stops the sweep under --on-failure=mark; its result
row is filled with ` + harness.FailureMarker + `. Store and path errors always
stop the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd.Context(), logger(), cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.variant, "variant", "batch-query",
		"Built-in variant: batch-query, mpc")
	flags.StringVar(&cfg.sweepPath, "sweep", "",
		"YAML sweep file (overrides --variant and the built-in grid)")
	flags.StringVar(&cfg.engine, "engine", "",
		"Engine binary (default: <bin-dir>/<variant target>)")
	flags.StringVar(&cfg.binDir, "bin-dir", "bin",
		"Directory holding engine binaries")
	flags.StringVar(&cfg.buildDir, "build-dir", "",
		"CMake build directory; when set the engine is built first")
	flags.StringVar(&cfg.outDir, "out-dir", ".",
		"Directory for parameter, result and combined CSV files")
	flags.StringVar(&cfg.onFailure, "on-failure", string(bench.FailMark),
		"Failed invocation handling: mark, abort")
	flags.StringVar(&cfg.mergePolicy, "merge-policy", string(merge.PolicyStrict),
		"Row count mismatch handling: strict, truncate")
	flags.DurationVar(&cfg.timeout, "timeout", 0,
		"Per-invocation timeout (0 = none)")
	flags.BoolVar(&cfg.outputJSON, "json", false,
		"Output report as JSON instead of table")
	flags.StringVar(&cfg.reportPath, "report", "",
		"Write the report to this file instead of stdout")

	return cmd
}

func runSweep(
	ctx context.Context,
	logger *slog.Logger,
	stdout io.Writer,
	cfg runConfig,
) error {
	onFailure, err := bench.ParseFailurePolicy(cfg.onFailure)
	if err != nil {
		return err
	}

	mergePolicy, err := merge.ParsePolicy(cfg.mergePolicy)
	if err != nil {
		return err
	}

	// Step 1: Resolve the variant and its sweep.
	var (
		s       *sweep.Sweep
		variant sweep.Variant
	)

	if cfg.sweepPath != "" {
		s, variant, err = sweep.Load(cfg.sweepPath)
	} else {
		variant, err = sweep.Lookup(cfg.variant)
		if err == nil {
			s, err = sweep.Default(cfg.variant)
		}
	}

	if err != nil {
		return fmt.Errorf("resolve sweep: %w", err)
	}

	// Step 2: Resolve or build the engine.
	engine := cfg.engine
	if engine == "" {
		engine = s.Engine
	}

	if engine == "" {
		engine = harness.ResolveBinary(cfg.binDir, variant.Target)

		if cfg.buildDir != "" {
			engine, err = harness.Build(
				ctx, logger, cfg.buildDir, cfg.binDir, variant.Target,
			)
			if err != nil {
				return err
			}
		}
	}

	engine, err = filepath.Abs(engine)
	if err != nil {
		return fmt.Errorf("resolve engine path: %w", err)
	}

	// Step 3: Run the sweep.
	summary, err := bench.Run(ctx, logger, bench.Config{
		Variant:      variant,
		Engine:       engine,
		Rows:         s.Rows(),
		ParamPath:    filepath.Join(cfg.outDir, variant.ParamFile),
		ResultPath:   filepath.Join(cfg.outDir, variant.ResultFile),
		CombinedPath: filepath.Join(cfg.outDir, variant.CombinedFile),
		OnFailure:    onFailure,
		MergePolicy:  mergePolicy,
		Timeout:      cfg.timeout,
	})
	if err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}

	// Step 4: Generate report.
	out := stdout

	if cfg.reportPath != "" {
		f, err := os.Create(cfg.reportPath)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()

		out = f
	}

	if cfg.outputJSON {
		if err := report.GenerateJSON(out, summary); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(out, summary); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	return nil
}

func newMergeCmd(logger func() *slog.Logger) *cobra.Command {
	var (
		variant     string
		paramPath   string
		resultPath  string
		out         string
		mergePolicy string
		withHeader  bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Join existing parameter and result files by position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := sweep.Lookup(variant)
			if err != nil {
				return err
			}

			policy, err := merge.ParsePolicy(mergePolicy)
			if err != nil {
				return err
			}

			if paramPath == "" {
				paramPath = v.ParamFile
			}

			if resultPath == "" {
				resultPath = v.ResultFile
			}

			if out == "" {
				out = v.CombinedFile
			}

			summary, err := bench.MergeFiles(
				v, paramPath, resultPath, out, policy, withHeader,
			)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}

			log := logger()
			if summary.Dropped > 0 {
				log.Warn("merge truncated rows",
					slog.Int("dropped", summary.Dropped))
			}

			if summary.Failed > 0 {
				log.Warn("result file holds failed invocations",
					slog.Int("failed", summary.Failed))
			}

			log.Info("combined dataset written",
				slog.String("path", out),
				slog.Int("rows", summary.Combined),
			)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&variant, "variant", "batch-query",
		"Variant whose schemas the files follow")
	flags.StringVar(&paramPath, "params", "",
		"Parameter file (default: the variant's parameter file)")
	flags.StringVar(&resultPath, "results", "",
		"Result file (default: the variant's result file)")
	flags.StringVar(&out, "out", "",
		"Combined output file (default: the variant's combined file)")
	flags.StringVar(&mergePolicy, "merge-policy", string(merge.PolicyStrict),
		"Row count mismatch handling: strict, truncate")
	flags.BoolVar(&withHeader, "header", false,
		"Write the concatenated header as the first row")

	return cmd
}

func newScanCmd() *cobra.Command {
	var (
		idField string
		width   int
	)

	cmd := &cobra.Command{
		Use:   "scan <dataset.csv>",
		Short: "Report identifiers whose prefix already appeared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer f.Close()

			w := cmd.OutOrStdout()

			for n, err := range prefix.ScanCSV(f, idField, width) {
				if err != nil {
					return fmt.Errorf("scan %s: %w", args[0], err)
				}

				fmt.Fprintln(w, n)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&idField, "id-field", "用户id",
		"Name of the identifier column")
	flags.IntVar(&width, "width", 8,
		"Prefix width in characters")

	return cmd
}

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List built-in engine variants and their schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()

			for _, v := range sweep.Variants() {
				fmt.Fprintf(w, "%s (engine %s)\n", v.Name, v.Target)
				fmt.Fprintf(w, "  params:  %s\n", strings.Join(v.Params, ", "))
				fmt.Fprintf(w, "  results: %s\n", strings.Join(v.Results, ", "))
			}

			return nil
		},
	}
}

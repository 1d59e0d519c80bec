// Package bench runs a full sweep: it records parameter rows, invokes the
// engine once per row, records the telemetry and writes the combined
// dataset.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/weiihann/pirbench/harness"
	"github.com/weiihann/pirbench/merge"
	"github.com/weiihann/pirbench/sweep"
	"github.com/weiihann/pirbench/table"
)

// FailurePolicy selects what happens when one engine invocation fails.
type FailurePolicy string

const (
	// FailMark stores a marker row and continues with the next row.
	FailMark FailurePolicy = "mark"
	// FailAbort stops the sweep at the first failed invocation.
	FailAbort FailurePolicy = "abort"
)

// ParseFailurePolicy converts a flag value into a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case FailMark, FailAbort:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// Config holds everything one sweep run needs. All paths are explicit.
type Config struct {
	Variant      sweep.Variant
	Engine       string
	Env          []string
	Rows         [][]string
	ParamPath    string
	ResultPath   string
	CombinedPath string

	// OnFailure defaults to FailMark and MergePolicy to merge.PolicyStrict.
	OnFailure   FailurePolicy
	MergePolicy merge.Policy

	// Timeout bounds each invocation. Zero means no limit.
	Timeout time.Duration
}

// Summary describes a finished sweep.
type Summary struct {
	RunID    string
	Variant  string
	Rows     int
	Failed   int
	Combined int
	Dropped  int
	Elapsed  time.Duration
	Header   []string
	Data     [][]string
}

// Run executes the sweep described by cfg. Setup errors abort the run.
// Invocation errors abort only under FailAbort. Canceling ctx kills the
// running engine and stops the sweep before the next row.
func Run(ctx context.Context, logger *slog.Logger, cfg Config) (*Summary, error) {
	runID := uuid.NewString()
	logger = logger.With(
		slog.String("run_id", runID),
		slog.String("variant", cfg.Variant.Name),
	)

	start := time.Now()

	params, err := table.Initialize(cfg.ParamPath, cfg.Variant.Params)
	if err != nil {
		return nil, fmt.Errorf("init parameter store: %w", err)
	}

	results, err := table.Initialize(cfg.ResultPath, cfg.Variant.Results)
	if err != nil {
		return nil, fmt.Errorf("init result store: %w", err)
	}

	for _, row := range cfg.Rows {
		if err := params.Append(row); err != nil {
			return nil, fmt.Errorf("record parameters: %w", err)
		}
	}

	paramRows, err := params.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}

	logger.InfoContext(ctx, "starting sweep",
		slog.String("engine", cfg.Engine),
		slog.Int("rows", len(paramRows)),
		slog.String("on_failure", string(cfg.OnFailure)),
	)

	runner := harness.NewRunner(
		cfg.Engine, len(cfg.Variant.Results), cfg.Env, cfg.Timeout, logger,
	)

	summary := &Summary{
		RunID:   runID,
		Variant: cfg.Variant.Name,
		Rows:    len(paramRows),
		Header:  merge.Header(cfg.Variant.Params, cfg.Variant.Results),
	}

	for i, row := range paramRows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sweep stopped at row %d: %w", i, err)
		}

		res := runner.Invoke(ctx, row)

		if res.Failed() {
			summary.Failed++

			logger.WarnContext(ctx, "invocation failed",
				slog.Int("row", i),
				slog.Any("args", row),
				slog.Int("exit_code", res.ExitCode),
				slog.String("error", res.Err.Error()),
			)

			if cfg.OnFailure == FailAbort {
				return nil, fmt.Errorf("row %d: %w", i, res.Err)
			}
		} else {
			logger.InfoContext(ctx, "invocation finished",
				slog.Int("row", i),
				slog.Duration("wall_time", res.Elapsed),
			)
		}

		if err := results.Append(res.Row(len(cfg.Variant.Results))); err != nil {
			return nil, fmt.Errorf("record results: %w", err)
		}
	}

	resultRows, err := results.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	combined, dropped, err := merge.Merge(paramRows, resultRows, cfg.MergePolicy)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if dropped > 0 {
		logger.WarnContext(ctx, "merge truncated rows",
			slog.Int("dropped", dropped),
		)
	}

	if err := merge.WriteCSV(cfg.CombinedPath, combined); err != nil {
		return nil, fmt.Errorf("write combined dataset: %w", err)
	}

	summary.Combined = len(combined)
	summary.Dropped = dropped
	summary.Data = combined
	summary.Elapsed = time.Since(start)

	logger.InfoContext(ctx, "sweep complete",
		slog.Int("rows", summary.Rows),
		slog.Int("failed", summary.Failed),
		slog.String("combined", cfg.CombinedPath),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// MergeFiles joins existing parameter and result stores and writes the
// combined dataset to out. Marker rows in the result store are counted as
// failed invocations.
func MergeFiles(
	v sweep.Variant,
	paramPath, resultPath, out string,
	policy merge.Policy,
	withHeader bool,
) (*Summary, error) {
	start := time.Now()

	params, err := table.Open(paramPath, v.Params)
	if err != nil {
		return nil, err
	}

	results, err := table.Open(resultPath, v.Results)
	if err != nil {
		return nil, err
	}

	paramRows, err := params.ReadAll()
	if err != nil {
		return nil, err
	}

	resultRows, err := results.ReadAll()
	if err != nil {
		return nil, err
	}

	combined, dropped, err := merge.Merge(paramRows, resultRows, policy)
	if err != nil {
		return nil, err
	}

	header := merge.Header(v.Params, v.Results)

	toWrite := combined
	if withHeader {
		toWrite = append([][]string{header}, combined...)
	}

	if err := merge.WriteCSV(out, toWrite); err != nil {
		return nil, err
	}

	summary := &Summary{
		Variant:  v.Name,
		Rows:     len(paramRows),
		Combined: len(combined),
		Dropped:  dropped,
		Header:   header,
		Data:     combined,
	}

	for _, row := range resultRows {
		if harness.IsMarkerRow(row) {
			summary.Failed++
		}
	}

	summary.Elapsed = time.Since(start)

	return summary, nil
}

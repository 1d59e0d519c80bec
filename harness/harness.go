package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Invoke waits for stdout and stderr to close
// after the engine is killed.
const waitDelay = time.Second

// Runner launches the engine binary once per parameter row. Width is the
// number of result fields the engine must print.
type Runner struct {
	BinaryPath string
	Width      int
	Env        []string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewRunner creates a Runner for the engine at binaryPath whose telemetry
// line carries width fields. Env is appended to the inherited environment.
// A zero timeout lets the engine run until it exits.
func NewRunner(
	binaryPath string,
	width int,
	env []string,
	timeout time.Duration,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		BinaryPath: binaryPath,
		Width:      width,
		Env:        env,
		Timeout:    timeout,
		Logger:     logger.With(slog.String("engine", binaryPath)),
	}
}

// Invoke runs the engine with row as positional arguments and parses the
// last non-empty line of its stdout. It blocks until the process exits.
// The returned Result is never nil; its Err is set on failure.
func (r *Runner) Invoke(ctx context.Context, row []string) *Result {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := make([]string, len(row))
	copy(args, row)

	res := &Result{Args: args}

	cmd := exec.CommandContext(ctx, r.BinaryPath, args...)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Logger.Debug("starting engine", slog.Any("args", args))

	start := time.Now()
	runErr := cmd.Run()
	res.Elapsed = time.Since(start)
	res.Stderr = stderr.String()

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr != nil {
		res.Err = fmt.Errorf("%w: %w\nstderr: %s",
			ErrInvocation, runErr, res.Stderr)

		return res
	}

	fields, err := ExtractFields(stdout.String(), r.Width)
	if err != nil {
		res.Err = err

		return res
	}

	res.Fields = fields

	r.Logger.Debug("engine finished",
		slog.Duration("wall_time", res.Elapsed),
		slog.Any("fields", fields),
	)

	return res
}

// ExtractFields splits the last non-empty line of stdout on commas. It
// fails when no such line exists, when the line holds a carriage return,
// or when the field count is not want.
func ExtractFields(stdout string, want int) ([]string, error) {
	line, ok := lastLine(stdout)
	if !ok {
		return nil, fmt.Errorf("%w: no output", ErrInvocation)
	}

	if strings.ContainsRune(line, '\r') {
		return nil, fmt.Errorf("%w: last line %q contains a carriage return",
			ErrInvocation, line)
	}

	fields := strings.Split(line, ",")
	if len(fields) != want {
		return nil, fmt.Errorf("%w: last line %q has %d fields, want %d",
			ErrInvocation, line, len(fields), want)
	}

	return fields, nil
}

func lastLine(s string) (string, bool) {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line, true
		}
	}

	return "", false
}


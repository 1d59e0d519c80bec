// Package merge joins parameter rows and result rows by position.
package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/weiihann/pirbench/table"
)

// ErrMergeTruncation is returned under PolicyStrict when the two inputs
// have different lengths.
var ErrMergeTruncation = errors.New("parameter and result row counts differ")

// Policy selects how Merge treats inputs of different lengths.
type Policy string

const (
	// PolicyStrict fails with ErrMergeTruncation on a length mismatch.
	PolicyStrict Policy = "strict"
	// PolicyTruncate pairs rows up to the shorter input and drops the rest.
	PolicyTruncate Policy = "truncate"
)

// ParsePolicy converts a flag value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyStrict, PolicyTruncate:
		return p, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", s)
	}
}

// Merge concatenates params[i] and results[i] for each position i. It
// returns the combined rows and the number of rows dropped from the longer
// input, which is always zero under PolicyStrict.
func Merge(params, results [][]string, policy Policy) ([][]string, int, error) {
	n := min(len(params), len(results))
	dropped := max(len(params), len(results)) - n

	if dropped > 0 && policy != PolicyTruncate {
		return nil, 0, fmt.Errorf("%w: %d parameter rows, %d result rows",
			ErrMergeTruncation, len(params), len(results))
	}

	combined := make([][]string, n)
	for i := range n {
		row := make([]string, 0, len(params[i])+len(results[i]))
		row = append(row, params[i]...)
		row = append(row, results[i]...)
		combined[i] = row
	}

	return combined, dropped, nil
}

// Header returns the combined header for the two source schemas.
func Header(params, results []string) []string {
	return slices.Concat(params, results)
}

// WriteCSV writes rows to path without a header, replacing any existing
// file. Failures wrap table.ErrIO.
func WriteCSV(path string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir %s: %w", table.ErrIO, dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", table.ErrIO, path, err)
	}

	if err := table.WriteRows(f, rows); err != nil {
		f.Close()

		return fmt.Errorf("%w: write %s: %w", table.ErrIO, path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", table.ErrIO, path, err)
	}

	return nil
}

// Package harness invokes the external query engine once per parameter row
// and extracts its telemetry line.
package harness

import (
	"errors"
	"slices"
	"time"
)

// FailureMarker fills every field of a result row whose invocation failed.
const FailureMarker = "#FAILED"

// ErrInvocation is returned when the engine exits nonzero, prints nothing,
// or prints a last line with the wrong number of fields.
var ErrInvocation = errors.New("engine invocation failed")

// Result holds the outcome of a single engine invocation.
type Result struct {
	Args     []string
	Fields   []string
	ExitCode int
	Elapsed  time.Duration
	Stderr   string
	Err      error
}

// Failed reports whether the invocation produced no usable fields.
func (r *Result) Failed() bool { return r.Err != nil }

// Row returns the fields to store for this result. Failed invocations
// yield a marker row of width fields.
func (r *Result) Row(width int) []string {
	if r.Err == nil {
		return slices.Clone(r.Fields)
	}

	return MarkerRow(width)
}

// MarkerRow returns a row of width FailureMarker fields.
func MarkerRow(width int) []string {
	row := make([]string, width)
	for i := range row {
		row[i] = FailureMarker
	}

	return row
}

// IsMarkerRow reports whether row was produced by MarkerRow.
func IsMarkerRow(row []string) bool {
	if len(row) == 0 {
		return false
	}

	for _, f := range row {
		if f != FailureMarker {
			return false
		}
	}

	return true
}

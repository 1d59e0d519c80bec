// Package report formats a sweep's combined dataset for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/weiihann/pirbench/bench"
	"github.com/weiihann/pirbench/harness"
)

// Generate writes a markdown table of the combined dataset in s.
func Generate(w io.Writer, s *bench.Summary) error {
	if s == nil || len(s.Header) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintf(w, "## Sweep Results: %s\n", s.Variant)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run `%s`: %d rows in %s\n",
		s.RunID, s.Rows, formatDuration(s.Elapsed))

	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed invocations: **%d** (marked %s)\n",
			s.Failed, harness.FailureMarker)
	} else {
		fmt.Fprintln(w, "Failed invocations: **none**")
	}

	if s.Dropped > 0 {
		fmt.Fprintf(w, "Rows dropped by merge: **%d**\n", s.Dropped)
	}

	fmt.Fprintln(w)

	// Table header.
	fmt.Fprintln(w, "| "+strings.Join(s.Header, " | ")+" |")

	sep := make([]string, len(s.Header))
	for i, h := range s.Header {
		sep[i] = strings.Repeat("-", max(3, len(h)))
	}

	fmt.Fprintln(w, "|"+strings.Join(sep, "|")+"|")

	for _, row := range s.Data {
		fmt.Fprintln(w, "| "+strings.Join(row, " | ")+" |")
	}

	return nil
}

type jsonReport struct {
	RunID   string              `json:"run_id"`
	Variant string              `json:"variant"`
	Rows    int                 `json:"rows"`
	Failed  int                 `json:"failed"`
	Dropped int                 `json:"dropped"`
	Elapsed string              `json:"elapsed"`
	Runs    []map[string]string `json:"runs"`
}

// GenerateJSON writes s as JSON to w, one object per combined row keyed
// by the combined header.
func GenerateJSON(w io.Writer, s *bench.Summary) error {
	if s == nil {
		return fmt.Errorf("no results to report")
	}

	out := jsonReport{
		RunID:   s.RunID,
		Variant: s.Variant,
		Rows:    s.Rows,
		Failed:  s.Failed,
		Dropped: s.Dropped,
		Elapsed: s.Elapsed.String(),
		Runs:    make([]map[string]string, 0, len(s.Data)),
	}

	for _, row := range s.Data {
		obj := make(map[string]string, len(s.Header))
		for i, h := range s.Header {
			if i < len(row) {
				obj[h] = row[i]
			}
		}

		out.Runs = append(out.Runs, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

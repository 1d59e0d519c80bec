package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeEngine writes a shell script standing in for the engine binary.
func writeEngine(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine.sh")
	script := "#!/bin/sh\n" + body + "\n"

	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write engine: %v", err)
	}

	return path
}

func TestExtractFields(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   int
		fields []string
	}{
		{
			name:   "last line only",
			stdout: "noise\nok\n1.2,3.4,5.6",
			want:   3,
			fields: []string{"1.2", "3.4", "5.6"},
		},
		{
			name:   "trailing newline",
			stdout: "Main: done\n1,2\n",
			want:   2,
			fields: []string{"1", "2"},
		},
		{
			name:   "trailing blank lines and CRLF",
			stdout: "a\r\n7,8,9\r\n\r\n\n",
			want:   3,
			fields: []string{"7", "8", "9"},
		},
		{
			name:   "single field",
			stdout: "42",
			want:   1,
			fields: []string{"42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFields(tt.stdout, tt.want)
			if err != nil {
				t.Fatalf("ExtractFields failed: %v", err)
			}

			if !slices.Equal(got, tt.fields) {
				t.Errorf("fields = %q, want %q", got, tt.fields)
			}
		})
	}
}

func TestExtractFieldsErrors(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   int
	}{
		{"empty", "", 3},
		{"whitespace only", "\n  \n\n", 3},
		{"short line", "noise\n1.2,3.4", 3},
		{"long line", "1,2,3,4", 3},
		{"carriage return inside line", "1\r,2,3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFields(tt.stdout, tt.want)
			if !errors.Is(err, ErrInvocation) {
				t.Errorf("err = %v, want ErrInvocation", err)
			}
		})
	}
}

func TestInvoke(t *testing.T) {
	engine := writeEngine(t, `printf 'noise\nok\n1.2,3.4,5.6\n'`)

	runner := NewRunner(engine, 3, nil, 0, discardLogger())
	res := runner.Invoke(context.Background(), []string{"10", "512"})

	if res.Err != nil {
		t.Fatalf("Invoke failed: %v", res.Err)
	}

	want := []string{"1.2", "3.4", "5.6"}
	if !slices.Equal(res.Fields, want) {
		t.Errorf("fields = %q, want %q", res.Fields, want)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestInvokePassesArgsInOrder(t *testing.T) {
	engine := writeEngine(t, `echo "starting"; echo "$3,$2,$1"`)

	runner := NewRunner(engine, 3, nil, 0, discardLogger())
	res := runner.Invoke(context.Background(), []string{"a", "b", "c"})

	if res.Err != nil {
		t.Fatalf("Invoke failed: %v", res.Err)
	}

	want := []string{"c", "b", "a"}
	if !slices.Equal(res.Fields, want) {
		t.Errorf("fields = %q, want %q", res.Fields, want)
	}
	if !slices.Equal(res.Args, []string{"a", "b", "c"}) {
		t.Errorf("args = %q, want [a b c]", res.Args)
	}
}

func TestInvokeEnv(t *testing.T) {
	engine := writeEngine(t, `echo "$PIRBENCH_TEST_VALUE,x"`)

	runner := NewRunner(
		engine, 2, []string{"PIRBENCH_TEST_VALUE=hello"}, 0, discardLogger(),
	)
	res := runner.Invoke(context.Background(), nil)

	if res.Err != nil {
		t.Fatalf("Invoke failed: %v", res.Err)
	}
	if res.Fields[0] != "hello" {
		t.Errorf("field 0 = %q, want hello", res.Fields[0])
	}
}

func TestInvokeNonzeroExit(t *testing.T) {
	engine := writeEngine(t, `echo "1,2,3"; echo "boom" >&2; exit 3`)

	runner := NewRunner(engine, 3, nil, 0, discardLogger())
	res := runner.Invoke(context.Background(), nil)

	if !errors.Is(res.Err, ErrInvocation) {
		t.Fatalf("err = %v, want ErrInvocation", res.Err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Stderr != "boom\n" {
		t.Errorf("stderr = %q, want boom", res.Stderr)
	}
	if !res.Failed() {
		t.Error("expected Failed() to be true")
	}
}

func TestInvokeMalformedLine(t *testing.T) {
	engine := writeEngine(t, `echo "1,2"`)

	runner := NewRunner(engine, 3, nil, 0, discardLogger())
	res := runner.Invoke(context.Background(), nil)

	if !errors.Is(res.Err, ErrInvocation) {
		t.Fatalf("err = %v, want ErrInvocation", res.Err)
	}

	row := res.Row(3)
	if !IsMarkerRow(row) || len(row) != 3 {
		t.Errorf("row = %q, want 3 marker fields", row)
	}
}

func TestInvokeMissingBinary(t *testing.T) {
	runner := NewRunner(
		filepath.Join(t.TempDir(), "missing"), 3, nil, 0, discardLogger(),
	)
	res := runner.Invoke(context.Background(), nil)

	if !errors.Is(res.Err, ErrInvocation) {
		t.Errorf("err = %v, want ErrInvocation", res.Err)
	}
}

func TestInvokeTimeout(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"direct", `exec sleep 5`},
		{"wrapper keeps child", `sleep 5; echo "1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := writeEngine(t, tt.body)

			runner := NewRunner(
				engine, 1, nil, 100*time.Millisecond, discardLogger(),
			)

			start := time.Now()
			res := runner.Invoke(context.Background(), nil)
			elapsed := time.Since(start)

			if !errors.Is(res.Err, ErrInvocation) {
				t.Errorf("err = %v, want ErrInvocation", res.Err)
			}
			if elapsed > 3*time.Second {
				t.Errorf("Invoke took %v, want it bounded by the timeout", elapsed)
			}
		})
	}
}

func TestInvokeCanceled(t *testing.T) {
	engine := writeEngine(t, `sleep 5; echo "1"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(engine, 1, nil, 0, discardLogger())
	res := runner.Invoke(ctx, nil)

	if !errors.Is(res.Err, ErrInvocation) {
		t.Errorf("err = %v, want ErrInvocation", res.Err)
	}
}

func TestMarkerRow(t *testing.T) {
	row := MarkerRow(4)
	if len(row) != 4 {
		t.Fatalf("len = %d, want 4", len(row))
	}
	if !IsMarkerRow(row) {
		t.Error("expected marker row")
	}
	if IsMarkerRow([]string{FailureMarker, "1"}) {
		t.Error("mixed row is not a marker row")
	}
	if IsMarkerRow(nil) {
		t.Error("empty row is not a marker row")
	}
}

func TestResolveBinary(t *testing.T) {
	got := ResolveBinary("bin", "batch_query_test")
	want := filepath.Join("bin", "batch_query_test")

	if got != want {
		t.Errorf("ResolveBinary = %q, want %q", got, want)
	}
}

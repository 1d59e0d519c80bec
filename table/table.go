// Package table implements the append-only CSV stores that hold sweep
// parameters and captured engine telemetry.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrSchemaMismatch is returned when a row or header does not match
	// the store's schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrIO is returned when the backing file cannot be created, written
	// or read.
	ErrIO = errors.New("table I/O")
)

// Schema is the ordered list of field names of a store.
type Schema []string

// Store is a CSV file with a fixed header and append-only data rows.
// File handles are opened per operation and closed before returning.
type Store struct {
	path   string
	schema Schema
}

// Initialize creates or truncates the file at path and writes the header
// for schema. Prior content is discarded.
func Initialize(path string, schema Schema) (*Store, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: empty schema for %s", ErrSchemaMismatch, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create dir %s: %w", ErrIO, dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}

	if err := WriteRows(f, [][]string{schema}); err != nil {
		f.Close()

		return nil, fmt.Errorf("%w: write header %s: %w", ErrIO, path, err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: close %s: %w", ErrIO, path, err)
	}

	return &Store{path: path, schema: slices.Clone(schema)}, nil
}

// Open attaches to an existing store without truncating it. The header is
// checked against schema.
func Open(path string, schema Schema) (*Store, error) {
	s := &Store{path: path, schema: slices.Clone(schema)}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	if _, err := s.readHeader(csv.NewReader(f)); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Schema returns a copy of the store's schema.
func (s *Store) Schema() Schema { return slices.Clone(s.schema) }

// Append writes row after the existing rows. Fields containing a carriage
// return are rejected because CSV readers fold CRLF inside quoted fields.
func (s *Store) Append(row []string) error {
	if len(row) != len(s.schema) {
		return fmt.Errorf("%w: %s: row has %d fields, want %d",
			ErrSchemaMismatch, s.path, len(row), len(s.schema))
	}

	for i, field := range row {
		if strings.ContainsRune(field, '\r') {
			return fmt.Errorf("%w: %s: field %q contains a carriage return",
				ErrSchemaMismatch, s.path, s.schema[i])
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, s.path, err)
	}

	if err := WriteRows(f, [][]string{row}); err != nil {
		f.Close()

		return fmt.Errorf("%w: append %s: %w", ErrIO, s.path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, s.path, err)
	}

	return nil
}

// ReadAll returns the data rows in append order, excluding the header.
func (s *Store) ReadAll() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	if _, err := s.readHeader(r); err != nil {
		return nil, err
	}

	rows := make([][]string, 0)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("%w: %s: %w", ErrSchemaMismatch, s.path, err)
		}

		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrIO, s.path, err)
		}

		rows = append(rows, rec)
	}

	return rows, nil
}

func (s *Store) readHeader(r *csv.Reader) ([]string, error) {
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: missing header", ErrSchemaMismatch, s.path)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: read header %s: %w", ErrIO, s.path, err)
	}

	if !slices.Equal(header, s.schema) {
		return nil, fmt.Errorf("%w: %s: header %v, want %v",
			ErrSchemaMismatch, s.path, header, []string(s.schema))
	}

	return header, nil
}

// WriteRows writes rows as CSV to w. A row holding one empty field is
// written as a quoted empty string so readers do not skip it as a blank
// line.
func WriteRows(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)

	for _, row := range rows {
		if len(row) == 1 && row[0] == "" {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}

			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return err
			}

			continue
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

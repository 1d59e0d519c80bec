// Package prefix reports identifiers that share a fixed-width leading
// prefix within one dataset.
package prefix

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strconv"
)

// Notice reports a repeated prefix.
type Notice struct {
	Prefix string
	// Position is the zero-based index of the record in input order.
	Position int
	// Value is the prefix read as hexadecimal. ValueOK is false when the
	// prefix is not valid hex or overflows 64 bits.
	Value   uint64
	ValueOK bool
}

func (n Notice) String() string {
	return fmt.Sprintf("Repeat: %s (record %d)", n.Prefix, n.Position)
}

// Key returns the first width runes of id, or id itself when shorter.
func Key(id string, width int) string {
	n := 0
	for i := range id {
		if n == width {
			return id[:i]
		}
		n++
	}

	return id
}

// Scan yields a Notice for every id whose prefix was already seen earlier
// in the same iteration. The seen set belongs to one range over the
// returned sequence. A non-positive width yields nothing; ScanCSV
// reports it as an error instead.
func Scan(ids iter.Seq[string], width int) iter.Seq[Notice] {
	return func(yield func(Notice) bool) {
		if width <= 0 {
			return
		}

		seen := make(map[string]struct{})
		pos := 0

		for id := range ids {
			key := Key(id, width)
			value, err := strconv.ParseUint(key, 16, 64)

			if _, dup := seen[key]; dup {
				n := Notice{
					Prefix:   key,
					Position: pos,
					Value:    value,
					ValueOK:  err == nil,
				}
				if !yield(n) {
					return
				}
			} else {
				seen[key] = struct{}{}
			}

			pos++
		}
	}
}

// ScanCSV reads a CSV dataset with a header row from r and scans the
// column named idField. Read errors and a missing column are yielded once
// and end the sequence.
func ScanCSV(r io.Reader, idField string, width int) iter.Seq2[Notice, error] {
	return func(yield func(Notice, error) bool) {
		if width <= 0 {
			yield(Notice{}, fmt.Errorf("prefix width must be positive, got %d", width))

			return
		}

		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1

		header, err := cr.Read()
		if err != nil {
			yield(Notice{}, fmt.Errorf("read header: %w", err))

			return
		}

		col := slices.Index(header, idField)
		if col < 0 {
			yield(Notice{}, fmt.Errorf("column %q not in header %v", idField, header))

			return
		}

		var readErr error

		ids := func(yieldID func(string) bool) {
			for {
				rec, err := cr.Read()
				if errors.Is(err, io.EOF) {
					return
				}

				if err == nil && col >= len(rec) {
					err = fmt.Errorf("record has %d fields, no column %d", len(rec), col)
				}

				if err != nil {
					readErr = err

					return
				}

				if !yieldID(rec[col]) {
					return
				}
			}
		}

		for n := range Scan(ids, width) {
			if !yield(n, nil) {
				return
			}
		}

		if readErr != nil {
			yield(Notice{}, fmt.Errorf("read dataset: %w", readErr))
		}
	}
}

// Package csv reads delimited text into in-memory tables.
//
// Cells are kept as strings (empty cells become NULL); typing happens later
// in the transformer against the source contract. Malformed rows are soft
// errors: they are reported through onErr and skipped, and reading goes on.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"salesetl/internal/config"
	"salesetl/internal/table"
)

// ErrNoHeader is returned for an input without a header row.
var ErrNoHeader = errors.New("csv: missing header row")

// ReadTable reads a CSV document with a header row into a table named name.
//
// Options (all optional):
//   - comma (string; first rune used; default ',')
//   - trim_space (bool; default true)
//   - lazy_quotes (bool; default false)
//   - header_map (object; raw source header -> column name; mapped headers
//     bypass normalization)
//
// Header cells are BOM-stripped and normalized with NormalizeHeader unless
// header_map names them. Each row records its source line. onErr(line, err)
// receives recoverable row errors (soft-drop); it may be nil.
func ReadTable(ctx context.Context, src io.Reader, name string, opt config.Options, onErr func(line int, err error)) (*table.Table, error) {
	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")

	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1 // width is checked against the header below
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	cols, err := headerColumns(StripHeaderBOM(append([]string(nil), hdr...)), hm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	t := table.New(name, cols...)
	report := func(line int, err error) {
		if onErr != nil {
			onErr(line, err)
		}
	}

	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				report(pe.StartLine, fmt.Errorf("csv read: %w", err))
				continue
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(cols) {
			report(line, fmt.Errorf("incorrect number of fields (expected %d, got %d)", len(cols), len(rec)))
			continue
		}

		row := make(table.Row, len(rec))
		for i, v := range rec {
			if trim {
				v = strings.TrimSpace(strings.ReplaceAll(v, "\u00a0", " "))
			}
			if v == "" {
				row[i] = nil
			} else {
				row[i] = strings.Clone(v)
			}
		}
		if err := t.AppendLine(row, line); err != nil {
			return nil, err
		}
	}
}

// headerColumns maps raw header cells to column names. Empty or duplicated
// names are fatal.
func headerColumns(hdr []string, hm map[string]string) ([]string, error) {
	cols := make([]string, len(hdr))
	seen := make(map[string]int, len(hdr))
	for i, h := range hdr {
		raw := strings.TrimSpace(h)
		c, ok := hm[raw]
		if !ok {
			c = NormalizeHeader(raw)
		}
		if c == "" {
			return nil, fmt.Errorf("header column %d (%q) has no usable name", i+1, h)
		}
		if j, dup := seen[c]; dup {
			return nil, fmt.Errorf("header columns %d and %d both map to %q", j+1, i+1, c)
		}
		seen[c] = i
		cols[i] = c
	}
	return cols, nil
}

// Package transformer turns raw source tables into typed relations and builds
// the denormalized fact table.
//
// Coercion works from a per-column plan compiled once from the source
// contract, so the hot loop does no map lookups. Rows that fail to coerce are
// quarantined: they are reported as *ParseError values and left out of the
// output, and processing continues with the next row.
package transformer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/schema"
	"salesetl/internal/table"
)

// DefaultDateLayouts are tried, in order, after the ISO date fast path.
var DefaultDateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
}

var (
	errEmpty    = errors.New("empty value")
	errNegative = errors.New("negative value")
	errInt      = errors.New("not an integer")
	errDecimal  = errors.New("not a decimal")
	errDate     = errors.New("unrecognized date")
)

// ParseError describes one cell that could not be coerced. The row holding it
// is quarantined.
type ParseError struct {
	Table  string
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s line %d column %s: %q: %v", e.Table, e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CoerceSpec describes how to coerce text cells into typed values.
type CoerceSpec struct {
	// Types maps column name to a schema type ("text", "int", "decimal",
	// "date"). Columns without an entry pass through as text.
	Types map[string]string

	// Required columns may not be empty. Empty cells of other columns become
	// NULL.
	Required map[string]bool

	// DateLayouts are extra layouts tried after DefaultDateLayouts.
	DateLayouts []string
}

// SpecFor builds the coercion spec of a contract. Nullable fields are not
// required to hold a value.
func SpecFor(c schema.Contract, extraLayouts []string) CoerceSpec {
	req := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Required && !f.Nullable {
			req[f.Name] = true
		}
	}
	return CoerceSpec{Types: c.Types(), Required: req, DateLayouts: extraLayouts}
}

type coerceFunc func(s string) (any, error)

// compilePlan prebuilds one coercer per column of cols.
func compilePlan(cols []string, spec CoerceSpec) []coerceFunc {
	layouts := append(append([]string(nil), DefaultDateLayouts...), spec.DateLayouts...)
	plan := make([]coerceFunc, len(cols))
	for i, col := range cols {
		var fn coerceFunc
		switch strings.ToLower(spec.Types[col]) {
		case schema.TypeInt:
			fn = func(s string) (any, error) {
				v, ok := toIntFast(s)
				if !ok {
					return nil, errInt
				}
				if v < 0 {
					return nil, errNegative
				}
				return v, nil
			}
		case schema.TypeDecimal:
			fn = func(s string) (any, error) {
				d, err := decimal.NewFromString(s)
				if err != nil {
					return nil, errDecimal
				}
				if d.IsNegative() {
					return nil, errNegative
				}
				return d, nil
			}
		case schema.TypeDate:
			fn = func(s string) (any, error) {
				d, ok := parseDate(s, layouts)
				if !ok {
					return nil, errDate
				}
				return d, nil
			}
		default:
			fn = func(s string) (any, error) { return s, nil }
		}

		required := spec.Required[col]
		inner := fn
		plan[i] = func(s string) (any, error) {
			if HasEdgeSpace(s) {
				s = strings.TrimSpace(s)
			}
			if s == "" {
				if required {
					return nil, errEmpty
				}
				return nil, nil
			}
			return inner(s)
		}
	}
	return plan
}

// Coerce applies spec to every column of t. Cells may be strings, NULL, or
// values that are already typed (passed through). Rows with any failing cell
// are left out of the result and reported, one ParseError per row (the first
// failing column).
func Coerce(t *table.Table, spec CoerceSpec) (*table.Table, []*ParseError) {
	plan := compilePlan(t.Columns, spec)
	out := table.New(t.Name, t.Columns...)
	var quarantined []*ParseError

	for i, r := range t.Rows {
		nr := make(table.Row, len(r))
		var perr *ParseError
		for j, v := range r {
			var s string
			switch c := v.(type) {
			case nil:
				s = ""
			case string:
				s = c
			default:
				nr[j] = v
				continue
			}
			cv, err := plan[j](s)
			if err != nil {
				perr = &ParseError{Table: t.Name, Line: t.Line(i), Column: t.Columns[j], Value: s, Err: err}
				break
			}
			nr[j] = cv
		}
		if perr != nil {
			quarantined = append(quarantined, perr)
			continue
		}
		out.Rows = append(out.Rows, nr)
		out.Lines = append(out.Lines, t.Line(i))
	}
	return out, quarantined
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	switch s[len(s)-1] {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// toIntFast parses integers quickly and only falls back to float parsing when
// the field contains a '.' (accepting inputs like "42.0").
func toIntFast(s string) (int64, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if f == float64(int64(f)) {
				return int64(f), true
			}
		}
	}
	return 0, false
}

// parseDate tries the zero-alloc ISO fast path, then each layout in order.
// The result is truncated to a calendar date at UTC midnight.
func parseDate(s string, layouts []string) (time.Time, bool) {
	if t, ok := parseISODate(s); ok {
		return t, true
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseISODate parses exactly "2006-01-02" without allocating.
func parseISODate(s string) (time.Time, bool) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return time.Time{}, false
	}
	y3, y2, y1, y0 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	m1, m0 := s[5]-'0', s[6]-'0'
	d1, d0 := s[8]-'0', s[9]-'0'
	if d1 > 9 || d0 > 9 || m1 > 9 || m0 > 9 || y3 > 9 || y2 > 9 || y1 > 9 || y0 > 9 {
		return time.Time{}, false
	}
	year := int(y3)*1000 + int(y2)*100 + int(y1)*10 + int(y0)
	mon := int(m1)*10 + int(m0)
	day := int(d1)*10 + int(d0)
	if mon < 1 || mon > 12 || day < 1 || day > daysIn(time.Month(mon), year) {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC), true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Package table implements the in-memory relation the pipeline transforms.
//
// A Table is a named, ordered list of columns plus positional rows. Every
// stage consumes one or more tables and produces a new one; no operation in
// this package mutates its receiver except Append and Sort, which callers use
// only on tables they own.
//
// Cell values are plain Go values:
//
//	nil              SQL NULL
//	string           identifiers and text
//	int64            integer measures and calendar parts
//	decimal.Decimal  money and ratios
//	time.Time        dates (UTC midnight)
package table

import "fmt"

// Row is a positional record aligned to Table.Columns.
type Row []any

// Table is an ordered sequence of uniformly shaped rows.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row

	// Lines optionally records the source line of each row (1-based, header
	// on line 1). It is either empty or len(Rows) long.
	Lines []int

	// Types optionally declares column kinds. Kinds prefers a declared kind
	// over one inferred from values, so a table with no rows, or a column
	// holding only NULL, keeps its physical type. The map is shared between
	// derived tables and must not be modified after it is set.
	Types map[string]Kind

	index map[string]int
}

// New returns an empty table with the given column order.
func New(name string, columns ...string) *Table {
	t := &Table{Name: name, Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c] = i
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col, or -1 when the column is absent.
func (t *Table) Index(col string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Has reports whether col is one of the table's columns.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Append adds a row. The row length must match the column count.
func (t *Table) Append(r Row) error {
	if len(r) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d values, want %d", t.Name, len(r), len(t.Columns))
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// AppendLine adds a row together with its source line number.
func (t *Table) AppendLine(r Row, line int) error {
	if len(t.Lines) != len(t.Rows) {
		return fmt.Errorf("table %s: cannot mix rows with and without line numbers", t.Name)
	}
	if err := t.Append(r); err != nil {
		return err
	}
	t.Lines = append(t.Lines, line)
	return nil
}

// Line returns the source line of row i. Tables built in memory have no line
// information; for those the data line is derived from the row index.
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// Value returns the cell at row i for col, or nil when the column is absent.
func (t *Table) Value(i int, col string) any {
	ci := t.Index(col)
	if ci < 0 || i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i][ci]
}

// Column returns a copy of all values of col.
func (t *Table) Column(col string) ([]any, error) {
	ci := t.Index(col)
	if ci < 0 {
		return nil, &MissingColumnError{Table: t.Name, Column: col}
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[ci]
	}
	return out, nil
}

// Project returns a new table with exactly cols, in that order.
func (t *Table) Project(name string, cols ...string) (*Table, error) {
	pos := make([]int, len(cols))
	for i, c := range cols {
		ci := t.Index(c)
		if ci < 0 {
			return nil, &MissingColumnError{Table: t.Name, Column: c}
		}
		pos[i] = ci
	}
	out := New(name, cols...)
	out.Types = t.Types
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(pos))
		for j, ci := range pos {
			nr[j] = r[ci]
		}
		out.Rows[i] = nr
	}
	out.Lines = append([]int(nil), t.Lines...)
	return out, nil
}

// Derive returns a copy of t with one extra column computed per row. fn sees
// the row of the copy, so it may read columns derived earlier.
func (t *Table) Derive(col string, fn func(i int, r Row) any) (*Table, error) {
	if t.Has(col) {
		return nil, fmt.Errorf("table %s: column %s already exists", t.Name, col)
	}
	out := New(t.Name, append(append([]string(nil), t.Columns...), col)...)
	out.Types = t.Types
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(r)+1)
		copy(nr, r)
		out.Rows[i] = nr
		nr[len(r)] = fn(i, nr)
	}
	out.Lines = append([]int(nil), t.Lines...)
	return out, nil
}

// String renders a short description, e.g. "sales_data[6 cols x 120 rows]".
func (t *Table) String() string {
	return fmt.Sprintf("%s[%d cols x %d rows]", t.Name, len(t.Columns), len(t.Rows))
}

// MissingColumnError reports a reference to a column the table does not have.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %s: no column %q", e.Table, e.Column)
}

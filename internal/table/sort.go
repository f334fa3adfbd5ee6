package table

import "sort"

// SortKey names a column and direction.
type SortKey struct {
	Column string
	Desc   bool
}

// Asc sorts by col ascending, NULLs first.
func Asc(col string) SortKey { return SortKey{Column: col} }

// Desc sorts by col descending, NULLs last.
func Desc(col string) SortKey { return SortKey{Column: col, Desc: true} }

// Sort orders t in place by keys (stable). Line numbers follow their rows.
func (t *Table) Sort(keys ...SortKey) error {
	pos := make([]int, len(keys))
	for i, k := range keys {
		ci := t.Index(k.Column)
		if ci < 0 {
			return &MissingColumnError{Table: t.Name, Column: k.Column}
		}
		pos[i] = ci
	}

	perm := make([]int, len(t.Rows))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ra, rb := t.Rows[perm[a]], t.Rows[perm[b]]
		for i, k := range keys {
			c := Compare(ra[pos[i]], rb[pos[i]])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	rows := make([]Row, len(t.Rows))
	var lines []int
	if len(t.Lines) == len(t.Rows) && len(t.Lines) > 0 {
		lines = make([]int, len(t.Lines))
	}
	for i, p := range perm {
		rows[i] = t.Rows[p]
		if lines != nil {
			lines[i] = t.Lines[p]
		}
	}
	t.Rows = rows
	if lines != nil {
		t.Lines = lines
	}
	return nil
}

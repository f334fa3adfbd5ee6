package table

import "fmt"

// DuplicateKeyError is returned by LeftJoin when the right-hand table holds
// the same key more than once. Joining against it would fan rows out.
type DuplicateKeyError struct {
	Table  string
	Column string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("table %s: duplicate key %s=%q", e.Table, e.Column, e.Key)
}

// LeftJoin performs a key-equality left outer join of t with right on the
// column key, which must exist on both sides.
//
// The output keeps every column of t followed by the columns of right except
// key. Each row of t appears exactly once: a missing or NULL key leaves the
// right-hand columns nil. Right keys must be unique, so len(out) == len(t)
// always holds.
func (t *Table) LeftJoin(right *Table, key string) (*Table, error) {
	lk := t.Index(key)
	if lk < 0 {
		return nil, &MissingColumnError{Table: t.Name, Column: key}
	}
	rk := right.Index(key)
	if rk < 0 {
		return nil, &MissingColumnError{Table: right.Name, Column: key}
	}

	// Right-hand projection: every column but the key.
	rpos := make([]int, 0, len(right.Columns)-1)
	cols := append([]string(nil), t.Columns...)
	for i, c := range right.Columns {
		if i == rk {
			continue
		}
		if t.Has(c) {
			return nil, fmt.Errorf("join %s with %s: ambiguous column %q", t.Name, right.Name, c)
		}
		rpos = append(rpos, i)
		cols = append(cols, c)
	}

	lookup := make(map[string]Row, len(right.Rows))
	for _, r := range right.Rows {
		k, ok := KeyString(r[rk])
		if !ok {
			continue
		}
		if _, dup := lookup[k]; dup {
			return nil, &DuplicateKeyError{Table: right.Name, Column: key, Key: k}
		}
		lookup[k] = r
	}

	out := New(t.Name, cols...)
	out.Rows = make([]Row, len(t.Rows))
	width := len(t.Columns)
	for i, l := range t.Rows {
		nr := make(Row, len(cols))
		copy(nr, l)
		if k, ok := KeyString(l[lk]); ok {
			if r, hit := lookup[k]; hit {
				for j, ri := range rpos {
					nr[width+j] = r[ri]
				}
			}
		}
		out.Rows[i] = nr
	}
	out.Lines = append([]int(nil), t.Lines...)
	return out, nil
}

// Package quality implements the data-quality gates of the pipeline: key
// uniqueness, referential integrity between sales and its dimensions, and the
// invariants the fact table must satisfy after the transform.
package quality

import (
	"fmt"
	"sort"
	"strings"

	"salesetl/internal/table"
)

// maxListed bounds how many offending values an error message spells out.
const maxListed = 10

// KeyError reports NULL or duplicated values in an identity column.
type KeyError struct {
	Table      string
	Column     string
	NullLines  []int    // source lines holding a NULL key
	Duplicates []string // distinct values seen more than once, sorted
}

func (e *KeyError) Error() string {
	var parts []string
	if n := len(e.NullLines); n > 0 {
		parts = append(parts, fmt.Sprintf("%d null value(s) at line(s) %s", n, listInts(e.NullLines)))
	}
	if n := len(e.Duplicates); n > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicated value(s): %s", n, listStrings(e.Duplicates)))
	}
	return fmt.Sprintf("key %s.%s: %s", e.Table, e.Column, strings.Join(parts, "; "))
}

// CheckKey verifies col is non-null and unique in t. Values that differ only
// in surrounding whitespace are duplicates.
func CheckKey(t *table.Table, col string) error {
	ci := t.Index(col)
	if ci < 0 {
		return &table.MissingColumnError{Table: t.Name, Column: col}
	}
	seen := make(map[string]int, len(t.Rows))
	var nulls []int
	for i, r := range t.Rows {
		k, ok := table.MatchKey(r[ci])
		if !ok {
			nulls = append(nulls, t.Line(i))
			continue
		}
		seen[k]++
	}
	var dups []string
	for k, n := range seen {
		if n > 1 {
			dups = append(dups, k)
		}
	}
	if len(nulls) == 0 && len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	return &KeyError{Table: t.Name, Column: col, NullLines: nulls, Duplicates: dups}
}

func listStrings(s []string) string {
	if len(s) <= maxListed {
		return strings.Join(s, ", ")
	}
	return strings.Join(s[:maxListed], ", ") + fmt.Sprintf(", ... (+%d more)", len(s)-maxListed)
}

func listInts(v []int) string {
	s := make([]string, 0, len(v))
	for _, n := range v {
		s = append(s, fmt.Sprint(n))
	}
	return listStrings(s)
}

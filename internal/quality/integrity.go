package quality

import (
	"fmt"
	"sort"

	"salesetl/internal/table"
)

// ReferentialIntegrityError lists foreign-key values of a relation that do not
// resolve in the referenced dimension.
type ReferentialIntegrityError struct {
	Relation string   // e.g. "sales_data.product_id -> products.product_id"
	Missing  []string // distinct dangling values, sorted
	Rows     int      // rows referencing a dangling value
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("integrity %s: %d missing key(s) referenced by %d row(s): %s",
		e.Relation, len(e.Missing), e.Rows, listStrings(e.Missing))
}

// CheckReferences computes the distinct values of fact.fk minus the values of
// dim.pk. Keys on both sides are compared after trimming, as the join sees
// them once coerced. NULL or blank foreign keys are not counted as missing.
func CheckReferences(fact *table.Table, fk string, dim *table.Table, pk string) error {
	fi := fact.Index(fk)
	if fi < 0 {
		return &table.MissingColumnError{Table: fact.Name, Column: fk}
	}
	di := dim.Index(pk)
	if di < 0 {
		return &table.MissingColumnError{Table: dim.Name, Column: pk}
	}

	known := make(map[string]struct{}, len(dim.Rows))
	for _, r := range dim.Rows {
		if k, ok := table.MatchKey(r[di]); ok {
			known[k] = struct{}{}
		}
	}

	missing := map[string]struct{}{}
	rows := 0
	for _, r := range fact.Rows {
		k, ok := table.MatchKey(r[fi])
		if !ok {
			continue
		}
		if _, hit := known[k]; !hit {
			missing[k] = struct{}{}
			rows++
		}
	}
	if len(missing) == 0 {
		return nil
	}
	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &ReferentialIntegrityError{
		Relation: fmt.Sprintf("%s.%s -> %s.%s", fact.Name, fk, dim.Name, pk),
		Missing:  keys,
		Rows:     rows,
	}
}

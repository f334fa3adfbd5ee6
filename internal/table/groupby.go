package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// AggKind selects an aggregate function.
type AggKind int

const (
	// AggCount counts non-NULL values of the column.
	AggCount AggKind = iota
	// AggSum adds non-NULL values. Integer columns stay int64; any decimal
	// input makes the result a decimal rounded to the group precision.
	AggSum
	// AggAvg averages non-NULL values as a decimal rounded to the group
	// precision.
	AggAvg
)

func (k AggKind) String() string {
	switch k {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	}
	return fmt.Sprintf("agg(%d)", int(k))
}

// Agg describes one output column of a GroupBy.
type Agg struct {
	Kind   AggKind
	Column string
	As     string
}

// Count returns count(col) AS as.
func Count(col, as string) Agg { return Agg{Kind: AggCount, Column: col, As: as} }

// Sum returns sum(col) AS as.
func Sum(col, as string) Agg { return Agg{Kind: AggSum, Column: col, As: as} }

// Avg returns avg(col) AS as.
func Avg(col, as string) Agg { return Agg{Kind: AggAvg, Column: col, As: as} }

// GroupOptions tunes GroupBy.
type GroupOptions struct {
	// Partitions is the number of hash partitions aggregated concurrently.
	// Values below 1 mean a single partition.
	Partitions int

	// Precision is the number of decimal places decimal sums and averages
	// are rounded to (half away from zero).
	Precision int32
}

// acc accumulates one aggregate for one group.
type acc struct {
	n       int64 // non-NULL values seen
	isum    int64
	dsum    decimal.Decimal
	decimal bool // at least one non-integer value was added
}

func (a *acc) add(col string, v any) error {
	if v == nil {
		return nil
	}
	if i, ok := ToInt64(v); ok && !a.decimal {
		a.isum += i
		a.n++
		return nil
	}
	d, ok := ToDecimal(v)
	if !ok {
		return fmt.Errorf("column %s: cannot aggregate %T", col, v)
	}
	if !a.decimal {
		a.dsum = decimal.NewFromInt(a.isum)
		a.decimal = true
	}
	a.dsum = a.dsum.Add(d)
	a.n++
	return nil
}

func (a *acc) result(kind AggKind, precision int32) any {
	switch kind {
	case AggCount:
		return a.n
	case AggSum:
		if a.n == 0 {
			return nil
		}
		if !a.decimal {
			return a.isum
		}
		return a.dsum.Round(precision)
	case AggAvg:
		if a.n == 0 {
			return nil
		}
		sum := a.dsum
		if !a.decimal {
			sum = decimal.NewFromInt(a.isum)
		}
		return sum.DivRound(decimal.NewFromInt(a.n), precision)
	}
	return nil
}

type group struct {
	key  Row
	accs []acc
}

// GroupBy groups t by keys and evaluates aggs per group. The output has the
// key columns followed by one column per Agg, named Agg.As.
//
// Rows are hash-partitioned on their group key (xxh3) and the partitions are
// aggregated concurrently. Partitions hold disjoint keys and every aggregate
// is order-independent, so the set of output rows does not depend on the
// partition count. Output order is first-appearance within partition order;
// callers that need a stable order Sort the result.
func (t *Table) GroupBy(ctx context.Context, name string, keys []string, aggs []Agg, opt GroupOptions) (*Table, error) {
	kpos := make([]int, len(keys))
	for i, k := range keys {
		ci := t.Index(k)
		if ci < 0 {
			return nil, &MissingColumnError{Table: t.Name, Column: k}
		}
		kpos[i] = ci
	}
	apos := make([]int, len(aggs))
	cols := append([]string(nil), keys...)
	for i, a := range aggs {
		ci := t.Index(a.Column)
		if ci < 0 {
			return nil, &MissingColumnError{Table: t.Name, Column: a.Column}
		}
		apos[i] = ci
		cols = append(cols, a.As)
	}

	parts := opt.Partitions
	if parts < 1 {
		parts = 1
	}

	// Assign row indexes to partitions.
	keyStr := make([]string, len(t.Rows))
	shards := make([][]int, parts)
	for i, r := range t.Rows {
		keyStr[i] = groupKey(r, kpos)
		p := 0
		if parts > 1 {
			p = int(xxh3.HashString(keyStr[i]) % uint64(parts))
		}
		shards[p] = append(shards[p], i)
	}

	results := make([][]*group, parts)
	g, gctx := errgroup.WithContext(ctx)
	for p := range shards {
		g.Go(func() error {
			order := make([]*group, 0)
			byKey := make(map[string]*group)
			for n, i := range shards[p] {
				if n%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				r := t.Rows[i]
				grp, ok := byKey[keyStr[i]]
				if !ok {
					kv := make(Row, len(kpos))
					for j, ci := range kpos {
						kv[j] = r[ci]
					}
					grp = &group{key: kv, accs: make([]acc, len(aggs))}
					byKey[keyStr[i]] = grp
					order = append(order, grp)
				}
				for j, ci := range apos {
					if aggs[j].Kind == AggCount {
						if r[ci] != nil {
							grp.accs[j].n++
						}
						continue
					}
					if err := grp.accs[j].add(aggs[j].Column, r[ci]); err != nil {
						return fmt.Errorf("group %s: %w", name, err)
					}
				}
			}
			results[p] = order
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := New(name, cols...)
	out.Types = aggTypes(t.Types, keys, aggs)
	for _, part := range results {
		for _, grp := range part {
			row := make(Row, 0, len(cols))
			row = append(row, grp.key...)
			for j, a := range aggs {
				row = append(row, grp.accs[j].result(a.Kind, opt.Precision))
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// aggTypes declares the output kinds of a GroupBy. Keys keep the kind declared
// on the input. A count is an integer, an average a decimal, and a sum takes
// the declared kind of its input column.
func aggTypes(in map[string]Kind, keys []string, aggs []Agg) map[string]Kind {
	out := make(map[string]Kind, len(keys)+len(aggs))
	for _, k := range keys {
		if d, ok := in[k]; ok {
			out[k] = d
		}
	}
	for _, a := range aggs {
		switch a.Kind {
		case AggCount:
			out[a.As] = KindInt
		case AggAvg:
			out[a.As] = KindDecimal
		case AggSum:
			if d, ok := in[a.Column]; ok {
				out[a.As] = d
			}
		}
	}
	return out
}

// groupKey builds a composite key. NULL is encoded distinctly from the empty
// string so NULL keys form their own group.
func groupKey(r Row, pos []int) string {
	var b strings.Builder
	for i, ci := range pos {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		s, ok := KeyString(r[ci])
		if !ok {
			b.WriteByte('\x00')
			continue
		}
		b.WriteByte('\x01')
		b.WriteString(s)
	}
	return b.String()
}

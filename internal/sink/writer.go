package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"salesetl/internal/objstore"
	"salesetl/internal/table"
)

// PartFile is the object name of every data file.
const PartFile = "part-00000"

// HiveNull names the partition of rows whose partition value is NULL.
const HiveNull = "__HIVE_DEFAULT_PARTITION__"

// Writer writes tables under prefixes of an object store. Every Write*
// method replaces the whole prefix.
type Writer struct {
	Store     objstore.Store
	Precision int32

	// Workers bounds concurrent object uploads. Values below 1 mean 1.
	Workers int

	Logger *log.Logger
}

func (w *Writer) logf(format string, args ...any) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
	}
}

// Written describes the outcome of one table write.
type Written struct {
	Table string   `json:"table"`
	Rows  int      `json:"rows"`
	Files []string `json:"files"`
	Bytes int      `json:"bytes"`
}

type part struct {
	key  string
	rows *table.Table
}

// WriteParquet deletes prefix and writes t beneath it. With partitionBy the
// rows are split Hive-style into prefix/col=value/... directories, one file
// per directory, and the partition columns are dropped from the files.
func (w *Writer) WriteParquet(ctx context.Context, t *table.Table, prefix string, partitionBy ...string) (*Written, error) {
	parts, err := split(t, prefix, partitionBy)
	if err != nil {
		return nil, err
	}
	if err := w.Store.DeletePrefix(ctx, prefix); err != nil {
		return nil, err
	}

	res := &Written{Table: t.Name, Rows: t.Len(), Files: make([]string, len(parts))}
	sizes := make([]int, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(w.Workers, 1))
	for i, p := range parts {
		g.Go(func() error {
			b, err := EncodeParquet(p.rows)
			if err != nil {
				return err
			}
			if err := w.Store.Put(gctx, p.key, b); err != nil {
				return err
			}
			res.Files[i] = p.key
			sizes[i] = len(b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("write %s: %w", prefix, err)
	}
	for _, n := range sizes {
		res.Bytes += n
	}
	w.logf("load: table=%s format=parquet rows=%d files=%d bytes=%d dest=%s/%s",
		t.Name, res.Rows, len(res.Files), res.Bytes, w.Store, prefix)
	return res, nil
}

// split groups t by partition columns. An unpartitioned table is one part.
// Kinds are resolved on the whole table and declared on every part, so all
// partition files share one schema. Parts are ordered by their typed
// partition values.
func split(t *table.Table, prefix string, partitionBy []string) ([]part, error) {
	if len(partitionBy) == 0 {
		return []part{{key: objstore.Join(prefix, PartFile+".parquet"), rows: t}}, nil
	}

	pos := make([]int, len(partitionBy))
	keep := make([]string, 0, len(t.Columns))
	for i, c := range partitionBy {
		if pos[i] = t.Index(c); pos[i] < 0 {
			return nil, &table.MissingColumnError{Table: t.Name, Column: c}
		}
	}
	for _, c := range t.Columns {
		if !contains(partitionBy, c) {
			keep = append(keep, c)
		}
	}
	kinds, err := t.KindMap()
	if err != nil {
		return nil, err
	}
	body, err := t.Project(t.Name, keep...)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		dir  string
		vals table.Row
		rows *table.Table
	}
	byDir := map[string]*bucket{}
	var buckets []*bucket
	for ri, r := range t.Rows {
		segs := make([]string, len(pos))
		vals := make(table.Row, len(pos))
		for i, ci := range pos {
			v, ok := table.KeyString(r[ci])
			if !ok {
				v = HiveNull
			}
			segs[i] = partitionBy[i] + "=" + v
			vals[i] = r[ci]
		}
		dir := strings.Join(segs, "/")
		b, ok := byDir[dir]
		if !ok {
			pt := table.New(t.Name, keep...)
			pt.Types = kinds
			b = &bucket{dir: dir, vals: vals, rows: pt}
			byDir[dir] = b
			buckets = append(buckets, b)
		}
		b.rows.Rows = append(b.rows.Rows, body.Rows[ri])
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		for k := range pos {
			if c := table.Compare(buckets[i].vals[k], buckets[j].vals[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	parts := make([]part, len(buckets))
	for i, b := range buckets {
		parts[i] = part{key: objstore.Join(prefix, b.dir, PartFile+".parquet"), rows: b.rows}
	}
	return parts, nil
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// WriteCSV deletes prefix and writes t as prefix/part-00000.csv.
func (w *Writer) WriteCSV(ctx context.Context, t *table.Table, prefix string) (*Written, error) {
	b, err := EncodeCSV(t, w.Precision)
	if err != nil {
		return nil, err
	}
	if err := w.Store.DeletePrefix(ctx, prefix); err != nil {
		return nil, err
	}
	key := objstore.Join(prefix, PartFile+".csv")
	if err := w.Store.Put(ctx, key, b); err != nil {
		return nil, err
	}
	w.logf("load: table=%s format=csv rows=%d bytes=%d dest=%s/%s", t.Name, t.Len(), len(b), w.Store, key)
	return &Written{Table: t.Name, Rows: t.Len(), Files: []string{key}, Bytes: len(b)}, nil
}

// WriteJSON writes v, indented, to key.
func (w *Writer) WriteJSON(ctx context.Context, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	b = append(b, '\n')
	return w.Store.Put(ctx, key, b)
}

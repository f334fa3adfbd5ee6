package pipeline

import (
	"context"
	"errors"
	"fmt"

	"salesetl/internal/config"
	"salesetl/internal/objstore"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/schema"
	"salesetl/internal/table"
)

// ErrNoInput is returned by Extract when a source location holds no CSV
// objects.
var ErrNoInput = errors.New("no csv input")

const salesSource = schema.Sales

// Inputs are the three raw sources, all cells still text.
type Inputs struct {
	Sales     *table.Table
	Products  *table.Table
	Customers *table.Table
}

// sourcePaths pairs each source name with its configured path.
func sourcePaths(p config.Pipeline) [3][2]string {
	return [3][2]string{
		{schema.Sales, p.Sources.Sales},
		{schema.Products, p.Sources.Products},
		{schema.Customers, p.Sources.Customers},
	}
}

// Extract reads every *.csv object under prefix into one table named name.
// Objects are read in key order and concatenated by column name; the first
// object fixes the column set. Rows the CSV reader rejects are passed to
// onErr with the object key and line.
func Extract(ctx context.Context, store objstore.Store, name, prefix string, opt config.Options, onErr func(key string, line int, err error)) (*table.Table, []string, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s: list %s: %w", name, prefix, err)
	}
	keys = objstore.Filter(keys, ".csv")
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("extract %s: %s/%s: %w", name, store, prefix, ErrNoInput)
	}

	var out *table.Table
	for _, key := range keys {
		t, err := readObject(ctx, objstore.Object{Store: store, Key: key}, name, opt, func(line int, err error) {
			if onErr != nil {
				onErr(key, line, err)
			}
		})
		if err != nil {
			return nil, nil, fmt.Errorf("extract %s: %w", name, err)
		}
		if out == nil {
			out = t
			continue
		}
		table.Concat(out, t)
	}
	return out, keys, nil
}

func readObject(ctx context.Context, src objstore.Source, name string, opt config.Options, onErr func(line int, err error)) (*table.Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	t, err := csvparser.ReadTable(ctx, rc, name, opt, onErr)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", src, err)
	}
	return t, nil
}

// extractAll reads the three configured sources from store.
func extractAll(ctx context.Context, rc *RunContext, rep *Report, store objstore.Store) (Inputs, error) {
	var in Inputs
	dst := map[string]**table.Table{
		schema.Sales:     &in.Sales,
		schema.Products:  &in.Products,
		schema.Customers: &in.Customers,
	}
	for _, sp := range sourcePaths(rc.Settings) {
		name, prefix := sp[0], sp[1]
		stats := rep.source(name)
		t, keys, err := Extract(ctx, store, name, prefix, rc.Settings.Parser.Options, func(key string, line int, err error) {
			stats.Rejected++
			rep.addParseError(fmt.Sprintf("%s line %d: %v", key, line, err))
		})
		if err != nil {
			return Inputs{}, err
		}
		stats.Files = keys
		stats.InputRows = t.Len()
		*dst[name] = t
		rc.logf("extract: source=%s files=%d rows=%d rejected=%d columns=%d",
			name, len(keys), t.Len(), stats.Rejected, len(t.Columns))
	}
	return in, nil
}

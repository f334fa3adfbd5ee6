package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/ddl"
	"salesetl/internal/table"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize, and
// calls copyFn for each non-empty batch. It returns the total number of rows
// reported by copyFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled. Progress is logged on
// each successful flush.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("loader: COPY failed after=%d total=%d err=%v", n, total, err)
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Printf(
			"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
			batches, rps, n, total,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// ReplaceOptions tunes Replace.
type ReplaceOptions struct {
	// Schema qualifies the table name on backends that support schemas.
	Schema string

	// BatchSize is the number of rows per CopyFrom call. Default 5000.
	BatchSize int

	// Keys become the primary key of the created table.
	Keys []string
}

// Replace drops t's table in the warehouse, recreates it from the inferred
// column types and bulk-loads every row. Decimal cells are sent as float64.
func Replace(ctx context.Context, repo Repository, t *table.Table, opt ReplaceOptions) (int64, error) {
	d := repo.Dialect()
	def, err := ddl.FromTable(t, opt.Schema, d, opt.Keys...)
	if err != nil {
		return 0, fmt.Errorf("infer table definition: %w", err)
	}
	create, err := ddl.BuildCreateTableSQL(def, d)
	if err != nil {
		return 0, err
	}
	if err := repo.Exec(ctx, ddl.BuildDropTableSQL(def, d)); err != nil {
		return 0, fmt.Errorf("drop %s: %w", t.Name, err)
	}
	if err := repo.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", t.Name, err)
	}

	batch := opt.BatchSize
	if batch <= 0 {
		batch = 5000
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	in := make(chan []any, batch)
	go func() {
		defer close(in)
		for _, r := range t.Rows {
			row := make([]any, len(r))
			for i, v := range r {
				row[i] = driverValue(v)
			}
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	n, err := LoadBatches(ctx, t.Columns, in, batch, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return repo.CopyFrom(ctx, def, cols, rows)
	})
	if err != nil {
		return n, fmt.Errorf("load %s: %w", t.Name, err)
	}
	return n, nil
}

func driverValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return v
}

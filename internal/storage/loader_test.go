package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/ddl"
	"salesetl/internal/table"
)

// TestLoadBatches_Basic verifies rows are grouped into batches and copyFn is
// called with the expected counts.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 8)
	for i := 0; i < 7; i++ {
		in <- []any{i, "x"}
	}
	close(in)

	var calls int32
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c1", "c2"}, in, 3, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total rows %d, want 7", total)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("copyFn calls %d, want 3 (3+3+1)", got)
	}
}

// TestLoadBatches_ErrorPropagation ensures the first copy error is propagated
// and processing stops after that batch.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 5)
	for i := 0; i < 5; i++ {
		in <- []any{i}
	}
	close(in)

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c"}, in, 2, copyFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want error %v, got %v", wantErr, err)
	}
	if total != 2 {
		t.Fatalf("total rows %d, want 2", total)
	}
}

// TestLoadBatches_ContextCancel checks the loader exits on context cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []any)

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, []string{"c"}, in, 2, func(context.Context, []string, [][]any) (int64, error) {
			return 0, nil
		})
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}

// recordingRepo captures statements and copied rows.
type recordingRepo struct {
	mu     sync.Mutex
	stmts  []string
	rows   [][]any
	copies int
	failOn string
}

func (r *recordingRepo) CopyFrom(_ context.Context, _ ddl.TableDef, _ []string, rows [][]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.copies++
	r.rows = append(r.rows, rows...)
	return int64(len(rows)), nil
}

func (r *recordingRepo) Exec(_ context.Context, sql string) error {
	if r.failOn != "" && strings.HasPrefix(sql, r.failOn) {
		return errors.New("exec failed")
	}
	r.stmts = append(r.stmts, sql)
	return nil
}

func (r *recordingRepo) Dialect() ddl.Dialect { return ddl.Postgres }
func (r *recordingRepo) Close()               {}

func TestReplace_DropsCreatesAndLoads(t *testing.T) {
	t.Parallel()

	tb := table.New("agg_city_sales", "city", "total_revenue")
	for i := 0; i < 5; i++ {
		_ = tb.Append(table.Row{"c", decimal.RequireFromString("1.25")})
	}

	repo := &recordingRepo{}
	n, err := Replace(context.Background(), repo, tb, ReplaceOptions{Schema: "analytics", BatchSize: 2})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n != 5 || repo.copies != 3 {
		t.Fatalf("n=%d copies=%d, want 5 rows in 3 batches", n, repo.copies)
	}
	if len(repo.stmts) != 2 ||
		!strings.HasPrefix(repo.stmts[0], `DROP TABLE IF EXISTS "analytics"."agg_city_sales"`) ||
		!strings.HasPrefix(repo.stmts[1], `CREATE TABLE "analytics"."agg_city_sales"`) {
		t.Fatalf("statements = %q", repo.stmts)
	}
	if v, ok := repo.rows[0][1].(float64); !ok || v != 1.25 {
		t.Fatalf("decimal cell sent as %T %v, want float64 1.25", repo.rows[0][1], repo.rows[0][1])
	}
}

func TestReplace_CreateFailureStopsLoad(t *testing.T) {
	t.Parallel()

	tb := table.New("t", "a")
	_ = tb.Append(table.Row{"x"})
	repo := &recordingRepo{failOn: "CREATE"}
	if _, err := Replace(context.Background(), repo, tb, ReplaceOptions{}); err == nil {
		t.Fatal("want error")
	}
	if repo.copies != 0 {
		t.Fatalf("copies = %d after failed CREATE", repo.copies)
	}
}

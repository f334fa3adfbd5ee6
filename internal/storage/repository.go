// Package storage loads output tables into an optional SQL warehouse.
//
// Backends (postgres, sqlite, mssql) register a Factory at init time; callers
// open one through New with only a Config and stay backend-agnostic. Replace
// drops, recreates and bulk-loads one table.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"salesetl/internal/ddl"
)

// Repository is the minimal surface a warehouse backend provides.
type Repository interface {
	// CopyFrom bulk-inserts rows (aligned to columns) into the table and
	// returns the number of rows written.
	CopyFrom(ctx context.Context, t ddl.TableDef, columns []string, rows [][]any) (int64, error)

	// Exec runs one statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// Dialect describes quoting and column types for DDL.
	Dialect() ddl.Dialect

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind, replacing any previous
// registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

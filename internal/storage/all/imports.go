// Package all wires all built-in warehouse backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories with the storage package. After the import these kinds are
// available to storage.New:
//
//   - "postgres" (salesetl/internal/storage/postgres)
//   - "mssql"    (salesetl/internal/storage/mssql)
//   - "sqlite"   (salesetl/internal/storage/sqlite)
//
// Typical usage (in cmd/etl or a similar wiring layer):
//
//	import _ "salesetl/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: p.Warehouse.Kind, DSN: p.Warehouse.DSN})
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//	n, err := storage.Replace(ctx, repo, fact, storage.ReplaceOptions{Schema: p.Warehouse.Schema})
package all

import (
	_ "salesetl/internal/storage/mssql"
	_ "salesetl/internal/storage/postgres"
	_ "salesetl/internal/storage/sqlite"
)

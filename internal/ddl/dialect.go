package ddl

import (
	"strings"

	"salesetl/internal/table"
)

// Dialect captures the SQL differences between warehouse backends: identifier
// quoting, the column type chosen for each value kind, and whether table names
// may be schema-qualified.
type Dialect struct {
	Name string

	// Open and Close delimit a quoted identifier; Close doubles inside names.
	Open, Close string

	// Types maps a column kind to its SQL type. KindNull columns use the
	// KindString type.
	Types map[table.Kind]string

	// Schemas reports whether TableDef.Schema is honored.
	Schemas bool
}

// Postgres quotes with double quotes and writes decimals as DOUBLE PRECISION.
var Postgres = Dialect{
	Name: "postgres", Open: `"`, Close: `"`, Schemas: true,
	Types: map[table.Kind]string{
		table.KindString:  "TEXT",
		table.KindInt:     "BIGINT",
		table.KindDecimal: "DOUBLE PRECISION",
		table.KindDate:    "DATE",
	},
}

// SQLite stores dates as ISO-8601 TEXT.
var SQLite = Dialect{
	Name: "sqlite", Open: `"`, Close: `"`,
	Types: map[table.Kind]string{
		table.KindString:  "TEXT",
		table.KindInt:     "INTEGER",
		table.KindDecimal: "REAL",
		table.KindDate:    "TEXT",
	},
}

// MSSQL quotes with [brackets].
var MSSQL = Dialect{
	Name: "mssql", Open: `[`, Close: `]`, Schemas: true,
	Types: map[table.Kind]string{
		table.KindString:  "NVARCHAR(MAX)",
		table.KindInt:     "BIGINT",
		table.KindDecimal: "FLOAT",
		table.KindDate:    "DATE",
	},
}

// Quote quotes a single identifier segment.
func (d Dialect) Quote(id string) string {
	return d.Open + strings.ReplaceAll(id, d.Close, d.Close+d.Close) + d.Close
}

// QualifiedName returns the quoted, possibly schema-qualified table name.
func (d Dialect) QualifiedName(t TableDef) string {
	if d.Schemas && strings.TrimSpace(t.Schema) != "" {
		return d.Quote(t.Schema) + "." + d.Quote(t.Name)
	}
	return d.Quote(t.Name)
}

// TypeFor returns the SQL type for kind.
func (d Dialect) TypeFor(kind table.Kind) string {
	if typ, ok := d.Types[kind]; ok {
		return typ
	}
	return d.Types[table.KindString]
}

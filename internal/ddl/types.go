package ddl

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; the dialect quotes it at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DATE)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name and an ordered list of columns. Schema is
// optional; dialects that have no schemas (SQLite) ignore it.
type TableDef struct {
	Schema  string
	Name    string
	Columns []ColumnDef
}

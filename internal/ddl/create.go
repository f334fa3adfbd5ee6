// Package ddl defines a small model for warehouse table definitions and
// renders CREATE/DROP statements for the supported SQL dialects.
//
// Table definitions are inferred from the in-memory tables the pipeline
// produces (FromTable), so every output table can be recreated from scratch
// before it is bulk-loaded.
package ddl

import (
	"fmt"
	"strings"

	"salesetl/internal/table"
)

// FromTable infers a TableDef for t. Column types come from t.Kinds, so
// declared types hold even for an empty table. Every column is nullable except
// those listed in keys, which also form the primary key.
func FromTable(t *table.Table, schema string, d Dialect, keys ...string) (TableDef, error) {
	kinds, err := t.Kinds()
	if err != nil {
		return TableDef{}, err
	}
	pk := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !t.Has(k) {
			return TableDef{}, &table.MissingColumnError{Table: t.Name, Column: k}
		}
		pk[k] = true
	}
	def := TableDef{Schema: schema, Name: t.Name, Columns: make([]ColumnDef, len(t.Columns))}
	for i, c := range t.Columns {
		def.Columns[i] = ColumnDef{
			Name:       c,
			SQLType:    d.TypeFor(kinds[i]),
			Nullable:   !pk[c],
			PrimaryKey: pk[c],
		}
	}
	return def, nil
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.Name must be non-empty.
//   - Each column must have a non-empty Name and SQLType.
//   - A column is rendered as <quoted-name> <SQLType> [NOT NULL]; primary-key
//     columns are always NOT NULL.
//   - Primary-key columns are collected into a trailing PRIMARY KEY clause in
//     column order.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", t.Name)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.Quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", d.QualifiedName(t), strings.Join(cols, ",\n  ")), nil
}

// BuildDropTableSQL renders a DROP TABLE IF EXISTS statement.
func BuildDropTableSQL(t TableDef, d Dialect) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QualifiedName(t))
}

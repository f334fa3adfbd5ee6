// Package sink encodes tables into output files and writes them to an
// object store: Parquet for the fact and summary tables, a flat CSV export,
// and JSON documents such as the run report.
package sink

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/shopspring/decimal"

	"salesetl/internal/table"
)

// ArrowSchema maps the column kinds of t onto an Arrow schema. Declared
// kinds (Table.Types) take precedence over inference. Decimals are written as
// float64; undeclared all-NULL columns as nullable strings.
func ArrowSchema(t *table.Table) (*arrow.Schema, []table.Kind, error) {
	kinds, err := t.Kinds()
	if err != nil {
		return nil, nil, err
	}
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		var dt arrow.DataType
		switch kinds[i] {
		case table.KindInt:
			dt = arrow.PrimitiveTypes.Int64
		case table.KindDecimal:
			dt = arrow.PrimitiveTypes.Float64
		case table.KindDate:
			dt = arrow.FixedWidthTypes.Date32
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: c, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), kinds, nil
}

// EncodeParquet renders t as a single Snappy-compressed Parquet file.
func EncodeParquet(t *table.Table) ([]byte, error) {
	schema, kinds, err := ArrowSchema(t)
	if err != nil {
		return nil, err
	}

	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, r := range t.Rows {
		for ci, v := range r {
			if err := appendValue(b.Field(ci), kinds[ci], v); err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", t.Name, t.Columns[ci], err)
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("parquet writer for %s: %w", t.Name, err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("parquet write %s: %w", t.Name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet close %s: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

func appendValue(fb array.Builder, kind table.Kind, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	switch kind {
	case table.KindInt:
		n, ok := table.ToInt64(v)
		if !ok {
			return fmt.Errorf("want int, got %T", v)
		}
		fb.(*array.Int64Builder).Append(n)
	case table.KindDecimal:
		d, ok := table.ToDecimal(v)
		if !ok {
			return fmt.Errorf("want decimal, got %T", v)
		}
		fb.(*array.Float64Builder).Append(d.InexactFloat64())
	case table.KindDate:
		tm, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("want date, got %T", v)
		}
		fb.(*array.Date32Builder).Append(arrow.Date32FromTime(tm))
	default:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		fb.(*array.StringBuilder).Append(s)
	}
	return nil
}

// formatDecimal is shared by the text encoders. A negative precision prints
// the value as is.
func formatDecimal(d decimal.Decimal, precision int32) string {
	if precision < 0 {
		return d.String()
	}
	return d.StringFixed(precision)
}

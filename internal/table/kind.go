package table

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the value type a column holds, as seen by writers that need a
// fixed physical schema.
type Kind int

const (
	// KindNull marks a column whose every value is nil.
	KindNull Kind = iota
	KindString
	KindInt
	KindDecimal
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func kindOf(v any) (Kind, bool) {
	switch v.(type) {
	case nil:
		return KindNull, true
	case string:
		return KindString, true
	case int64, int:
		return KindInt, true
	case decimal.Decimal, float64:
		return KindDecimal, true
	case time.Time:
		return KindDate, true
	}
	return KindNull, false
}

// Kinds returns one Kind per column. Declared Types win; other columns are
// inferred from the values present. Integer columns that also hold decimals
// widen to KindDecimal; any other mix, or values that contradict a declared
// kind, is an error.
func (t *Table) Kinds() ([]Kind, error) {
	kinds := make([]Kind, len(t.Columns))
	for _, r := range t.Rows {
		for ci, v := range r {
			k, ok := kindOf(v)
			if !ok {
				return nil, fmt.Errorf("table %s column %s: unsupported value type %T", t.Name, t.Columns[ci], v)
			}
			cur := kinds[ci]
			switch {
			case k == KindNull || k == cur:
			case cur == KindNull:
				kinds[ci] = k
			case (cur == KindInt && k == KindDecimal) || (cur == KindDecimal && k == KindInt):
				kinds[ci] = KindDecimal
			default:
				return nil, fmt.Errorf("table %s column %s: mixed %s and %s values", t.Name, t.Columns[ci], cur, k)
			}
		}
	}
	for ci, c := range t.Columns {
		d, ok := t.Types[c]
		if !ok || d == KindNull {
			continue
		}
		switch cur := kinds[ci]; {
		case cur == KindNull || cur == d:
			kinds[ci] = d
		case cur == KindInt && d == KindDecimal:
			kinds[ci] = d
		default:
			return nil, fmt.Errorf("table %s column %s: declared %s but holds %s values", t.Name, c, d, cur)
		}
	}
	return kinds, nil
}

// KindMap returns Kinds keyed by column name.
func (t *Table) KindMap() (map[string]Kind, error) {
	kinds, err := t.Kinds()
	if err != nil {
		return nil, err
	}
	m := make(map[string]Kind, len(kinds))
	for i, c := range t.Columns {
		m[c] = kinds[i]
	}
	return m, nil
}

package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/table"
)

// EncodeCSV renders t with a header row. Decimals are printed with exactly
// precision places, dates as YYYY-MM-DD and NULL as an empty field.
func EncodeCSV(t *table.Table, precision int32) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	rec := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, v := range r {
			s, err := FormatCell(v, precision)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", t.Name, t.Columns[i], err)
			}
			rec[i] = s
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatCell renders one cell as text.
func FormatCell(v any, precision int32) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case decimal.Decimal:
		return formatDecimal(x, precision), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case time.Time:
		return x.Format(time.DateOnly), nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}

package transformer

import (
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/schema"
	"salesetl/internal/table"
)

// DefaultPrecision is the number of decimal places money columns are rounded
// to when Options.Precision is negative.
const DefaultPrecision = 2

// Options configures enrichment and fact building.
type Options struct {
	// Precision is the decimal places for rounded columns; 0 rounds to whole
	// units. Rounding is half away from zero (2.345 -> 2.35, -2.345 -> -2.35).
	Precision int32

	// DateLayouts are accepted for order_date in addition to
	// DefaultDateLayouts.
	DateLayouts []string
}

func (o Options) precision() int32 {
	if o.Precision < 0 {
		return DefaultPrecision
	}
	return o.Precision
}

// EnrichedColumns is the column order of Enrich's output.
var EnrichedColumns = []string{
	"order_id", "customer_id", "product_id", "order_date", "quantity", "unit_price",
	"total_amount", "order_year", "order_month", "day_of_week",
}

// Enrich coerces the raw sales table and adds the derived columns:
//
//	total_amount = round(quantity * unit_price, p)
//	order_date   = calendar date (UTC midnight)
//	order_year, order_month
//	day_of_week  = 1 (Sunday) .. 7 (Saturday)
//
// Rows whose quantity, unit_price or order_date cannot be parsed are
// quarantined and returned separately. Columns outside the sales contract are
// dropped. A missing contract column is an error; callers validate the schema
// first.
func Enrich(sales *table.Table, opt Options) (*table.Table, []*ParseError, error) {
	cols := make([]string, 0, len(schema.SalesContract.Fields))
	for _, f := range schema.SalesContract.Fields {
		cols = append(cols, f.Name)
	}
	raw, err := sales.Project(sales.Name, cols...)
	if err != nil {
		return nil, nil, err
	}

	typed, quarantined := Coerce(raw, SpecFor(schema.SalesContract, opt.DateLayouts))
	p := opt.precision()
	qi, ui, di := typed.Index("quantity"), typed.Index("unit_price"), typed.Index("order_date")

	out := table.New(sales.Name, EnrichedColumns...)
	out.Rows = make([]table.Row, 0, typed.Len())
	out.Lines = append([]int(nil), typed.Lines...)
	for _, r := range typed.Rows {
		q := r[qi].(int64)
		u := r[ui].(decimal.Decimal)
		d := r[di].(time.Time)

		nr := make(table.Row, 0, len(EnrichedColumns))
		nr = append(nr, r...)
		nr = append(nr,
			TotalAmount(q, u, p),
			int64(d.Year()),
			int64(d.Month()),
			DayOfWeek(d),
		)
		out.Rows = append(out.Rows, nr)
	}
	return out, quarantined, nil
}

// TotalAmount returns round(quantity * unitPrice, p).
func TotalAmount(quantity int64, unitPrice decimal.Decimal, p int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity)).Round(p)
}

// DayOfWeek numbers weekdays from 1 (Sunday) to 7 (Saturday).
func DayOfWeek(d time.Time) int64 {
	return int64(d.Weekday()) + 1
}

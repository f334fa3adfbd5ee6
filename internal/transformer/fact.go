package transformer

import (
	"github.com/shopspring/decimal"

	"salesetl/internal/schema"
	"salesetl/internal/table"
)

// FactName is the relation name of the fact table.
const FactName = "fact_sales"

var hundred = decimal.NewFromInt(100)

// highValueThreshold is the total_amount at and above which an order is
// flagged high value.
var highValueThreshold = decimal.NewFromInt(100)

// Dimension projects a coerced dimension table onto its contract columns so a
// join never picks up stray columns.
func Dimension(t *table.Table, c schema.Contract) (*table.Table, error) {
	cols := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		cols = append(cols, f.Name)
	}
	return t.Project(t.Name, cols...)
}

// BuildFact left-joins enriched sales to products on product_id and then to
// customers on customer_id, derives profit, profit_margin and
// high_value_order, and projects to schema.FactColumns typed by
// schema.FactKinds.
//
// The result has exactly one row per enriched sales row. Unmatched keys leave
// the dimension columns NULL; profit and profit_margin are then NULL too.
func BuildFact(enriched, products, customers *table.Table, opt Options) (*table.Table, error) {
	prod, err := Dimension(products, schema.ProductsContract)
	if err != nil {
		return nil, err
	}
	cust, err := Dimension(customers, schema.CustomersContract)
	if err != nil {
		return nil, err
	}

	withProducts, err := enriched.LeftJoin(prod, "product_id")
	if err != nil {
		return nil, err
	}
	joined, err := withProducts.LeftJoin(cust, "customer_id")
	if err != nil {
		return nil, err
	}

	p := opt.precision()
	qi, ui, ci := joined.Index("quantity"), joined.Index("unit_price"), joined.Index("cost_price")

	joined, err = joined.Derive("profit", func(_ int, r table.Row) any {
		cost, ok := table.ToDecimal(r[ci])
		if !ok {
			return nil
		}
		q, _ := table.ToInt64(r[qi])
		u, _ := table.ToDecimal(r[ui])
		return Profit(q, u, cost, p)
	})
	if err != nil {
		return nil, err
	}

	ti, pi := joined.Index("total_amount"), joined.Index("profit")
	joined, err = joined.Derive("profit_margin", func(_ int, r table.Row) any {
		profit, ok := table.ToDecimal(r[pi])
		if !ok {
			return nil
		}
		total, _ := table.ToDecimal(r[ti])
		m, ok := ProfitMargin(profit, total, p)
		if !ok {
			return nil
		}
		return m
	})
	if err != nil {
		return nil, err
	}

	joined, err = joined.Derive("high_value_order", func(_ int, r table.Row) any {
		total, _ := table.ToDecimal(r[ti])
		return HighValue(total)
	})
	if err != nil {
		return nil, err
	}

	fact, err := joined.Project(FactName, schema.FactColumns...)
	if err != nil {
		return nil, err
	}
	fact.Types = schema.FactKinds
	return fact, nil
}

// Profit returns round((unitPrice - costPrice) * quantity, p).
func Profit(quantity int64, unitPrice, costPrice decimal.Decimal, p int32) decimal.Decimal {
	return unitPrice.Sub(costPrice).Mul(decimal.NewFromInt(quantity)).Round(p)
}

// ProfitMargin returns round(profit / total * 100, p). ok is false when total
// is zero; the margin is then undefined and stored as NULL.
func ProfitMargin(profit, total decimal.Decimal, p int32) (decimal.Decimal, bool) {
	if total.IsZero() {
		return decimal.Zero, false
	}
	return profit.Div(total).Mul(hundred).Round(p), true
}

// HighValue returns "Yes" when total >= 100, otherwise "No".
func HighValue(total decimal.Decimal) string {
	if total.GreaterThanOrEqual(highValueThreshold) {
		return "Yes"
	}
	return "No"
}

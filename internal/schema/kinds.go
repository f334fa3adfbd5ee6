package schema

import "salesetl/internal/table"

// KindOf maps a logical field type onto the physical kind writers use.
func KindOf(typ string) table.Kind {
	switch typ {
	case TypeInt:
		return table.KindInt
	case TypeDecimal:
		return table.KindDecimal
	case TypeDate:
		return table.KindDate
	}
	return table.KindString
}

// derivedKinds covers the fact columns no source contract declares.
var derivedKinds = map[string]table.Kind{
	"order_year":       table.KindInt,
	"order_month":      table.KindInt,
	"day_of_week":      table.KindInt,
	"total_amount":     table.KindDecimal,
	"profit":           table.KindDecimal,
	"profit_margin":    table.KindDecimal,
	"high_value_order": table.KindString,
}

// FactKinds is the fixed physical type of every fact column. Each fact
// partition and each summary is written with these types whatever values it
// happens to hold.
var FactKinds = factKinds()

func factKinds() map[string]table.Kind {
	m := make(map[string]table.Kind, len(FactColumns))
	for _, c := range []Contract{SalesContract, ProductsContract, CustomersContract} {
		for _, f := range c.Fields {
			m[f.Name] = KindOf(f.Type)
		}
	}
	for c, k := range derivedKinds {
		m[c] = k
	}
	return m
}

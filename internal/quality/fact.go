package quality

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"salesetl/internal/table"
)

var hundred = decimal.NewFromInt(100)

// Violation is one broken post-transform invariant.
type Violation struct {
	Check  string `json:"check"`
	Row    int    `json:"row"` // 0-based fact row, -1 for table-level checks
	Detail string `json:"detail"`
}

// InvariantError wraps the violations found by CheckFact. It signals a bug in
// the transform, not bad input.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	n := len(e.Violations)
	if n == 0 {
		return "fact invariants: no violations"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "fact invariants: %d violation(s)", n)
	for i, v := range e.Violations {
		if i == maxListed {
			fmt.Fprintf(&b, "; ... (+%d more)", n-maxListed)
			break
		}
		fmt.Fprintf(&b, "; %s row=%d %s", v.Check, v.Row, v.Detail)
	}
	return b.String()
}

// CheckFact verifies the fact table against its derivation rules:
//
//	len(fact)        == wantRows
//	total_amount     == round(quantity * unit_price, p)
//	profit           == round((unit_price - cost_price) * quantity, p), nil without cost_price
//	profit_margin    == round(profit / total_amount * 100, p), nil when total_amount is 0
//	high_value_order == "Yes" iff total_amount >= 100
func CheckFact(fact *table.Table, wantRows int, precision int32) []Violation {
	var out []Violation
	if fact.Len() != wantRows {
		out = append(out, Violation{
			Check:  "cardinality",
			Row:    -1,
			Detail: fmt.Sprintf("fact has %d rows, want %d", fact.Len(), wantRows),
		})
	}
	for _, c := range []string{"quantity", "unit_price", "cost_price", "total_amount", "profit", "profit_margin", "high_value_order"} {
		if !fact.Has(c) {
			return append(out, Violation{Check: "columns", Row: -1, Detail: "missing column " + c})
		}
	}
	qi, ui, ci := fact.Index("quantity"), fact.Index("unit_price"), fact.Index("cost_price")
	ti, pi, mi, hi := fact.Index("total_amount"), fact.Index("profit"), fact.Index("profit_margin"), fact.Index("high_value_order")

	for i, r := range fact.Rows {
		q, okq := table.ToDecimal(r[qi])
		u, oku := table.ToDecimal(r[ui])
		total, okt := table.ToDecimal(r[ti])
		if !okq || !oku || !okt {
			out = append(out, Violation{Check: "total_amount", Row: i, Detail: "non-numeric quantity, unit_price or total_amount"})
			continue
		}
		if want := q.Mul(u).Round(precision); !total.Equal(want) {
			out = append(out, Violation{Check: "total_amount", Row: i, Detail: fmt.Sprintf("got %s want %s", total, want)})
		}

		var profit *decimal.Decimal
		if cost, ok := table.ToDecimal(r[ci]); ok {
			want := u.Sub(cost).Mul(q).Round(precision)
			got, ok := table.ToDecimal(r[pi])
			if !ok || !got.Equal(want) {
				out = append(out, Violation{Check: "profit", Row: i, Detail: fmt.Sprintf("got %v want %s", r[pi], want)})
			} else {
				profit = &got
			}
		} else if r[pi] != nil {
			out = append(out, Violation{Check: "profit", Row: i, Detail: "profit set without cost_price"})
		}

		switch {
		case profit == nil || total.IsZero():
			if r[mi] != nil {
				out = append(out, Violation{Check: "profit_margin", Row: i, Detail: fmt.Sprintf("got %v want null", r[mi])})
			}
		default:
			want := profit.Div(total).Mul(hundred).Round(precision)
			got, ok := table.ToDecimal(r[mi])
			if !ok || !got.Equal(want) {
				out = append(out, Violation{Check: "profit_margin", Row: i, Detail: fmt.Sprintf("got %v want %s", r[mi], want)})
			}
		}

		wantFlag := "No"
		if total.GreaterThanOrEqual(hundred) {
			wantFlag = "Yes"
		}
		if r[hi] != wantFlag {
			out = append(out, Violation{Check: "high_value_order", Row: i, Detail: fmt.Sprintf("got %v want %s", r[hi], wantFlag)})
		}
	}
	return out
}

// Package summary derives the five pre-aggregated summary tables from the fact
// table. Each summary is a pure function of the fact table: the same fact
// rows always produce the same output rows in the same order.
package summary

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"salesetl/internal/table"
)

// Definition is one group-by-aggregate pass.
type Definition struct {
	Name string
	Keys []string
	Aggs []table.Agg

	// Order is the documented sort. Ties are broken by Keys ascending.
	Order []table.SortKey
}

// Output returns the destination prefix of the summary, e.g. "agg_city_sales".
func (d Definition) Output() string { return "agg_" + d.Name }

var (
	DailySales = Definition{
		Name: "daily_sales",
		Keys: []string{"order_date"},
		Aggs: []table.Agg{
			table.Count("order_id", "total_orders"),
			table.Sum("quantity", "total_items_sold"),
			table.Sum("total_amount", "total_revenue"),
			table.Sum("profit", "total_profit"),
			table.Avg("total_amount", "avg_order_value"),
		},
		Order: []table.SortKey{table.Asc("order_date")},
	}

	ProductPerformance = Definition{
		Name: "product_performance",
		Keys: []string{"product_id", "product_name", "category", "brand"},
		Aggs: []table.Agg{
			table.Count("order_id", "times_ordered"),
			table.Sum("quantity", "total_quantity_sold"),
			table.Sum("total_amount", "total_revenue"),
			table.Sum("profit", "total_profit"),
			table.Avg("profit_margin", "avg_profit_margin"),
		},
		Order: []table.SortKey{table.Desc("total_revenue")},
	}

	CustomerSummary = Definition{
		Name: "customer_summary",
		Keys: []string{"customer_id", "first_name", "last_name", "customer_segment"},
		Aggs: []table.Agg{
			table.Count("order_id", "total_orders"),
			table.Sum("quantity", "total_items_purchased"),
			table.Sum("total_amount", "total_spent"),
			table.Avg("total_amount", "avg_order_value"),
		},
		Order: []table.SortKey{table.Desc("total_spent")},
	}

	CitySales = Definition{
		Name: "city_sales",
		Keys: []string{"shipping_city", "shipping_country"},
		Aggs: []table.Agg{
			table.Count("order_id", "total_orders"),
			table.Sum("total_amount", "total_revenue"),
			table.Sum("profit", "total_profit"),
		},
		Order: []table.SortKey{table.Desc("total_revenue")},
	}

	PaymentAnalysis = Definition{
		Name: "payment_analysis",
		Keys: []string{"payment_method"},
		Aggs: []table.Agg{
			table.Count("order_id", "total_transactions"),
			table.Sum("total_amount", "total_amount"),
			table.Avg("total_amount", "avg_transaction_value"),
		},
		Order: []table.SortKey{table.Desc("total_amount")},
	}
)

// All lists the summaries in output order.
var All = []Definition{DailySales, ProductPerformance, CustomerSummary, CitySales, PaymentAnalysis}

// Options tunes Build.
type Options struct {
	Partitions int
	Precision  int32
}

// Build evaluates d over fact. fact is only read.
func Build(ctx context.Context, fact *table.Table, d Definition, opt Options) (*table.Table, error) {
	out, err := fact.GroupBy(ctx, d.Name, d.Keys, d.Aggs, table.GroupOptions{
		Partitions: opt.Partitions,
		Precision:  opt.Precision,
	})
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", d.Name, err)
	}
	order := append([]table.SortKey(nil), d.Order...)
	for _, k := range d.Keys {
		order = append(order, table.Asc(k))
	}
	if err := out.Sort(order...); err != nil {
		return nil, fmt.Errorf("summary %s: %w", d.Name, err)
	}
	return out, nil
}

// BuildAll evaluates defs concurrently and returns the results in defs order.
func BuildAll(ctx context.Context, fact *table.Table, defs []Definition, opt Options, logger *log.Logger) ([]*table.Table, error) {
	out := make([]*table.Table, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range defs {
		g.Go(func() error {
			t, err := Build(gctx, fact, d, opt)
			if err != nil {
				return err
			}
			out[i] = t
			if logger != nil {
				logger.Printf("aggregate: summary=%s groups=%d", d.Name, t.Len())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

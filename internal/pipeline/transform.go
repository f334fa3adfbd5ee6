package pipeline

import (
	"context"
	"errors"
	"fmt"

	"salesetl/internal/quality"
	"salesetl/internal/schema"
	"salesetl/internal/summary"
	"salesetl/internal/table"
	"salesetl/internal/transformer"
)

// Result holds the relations a transform produced.
type Result struct {
	Fact      *table.Table
	Summaries []*table.Table // in summary.All order

	// Quarantined lists the rows left out because a value did not parse,
	// across all three sources.
	Quarantined []*transformer.ParseError

	// Integrity holds the dangling-key violations that were tolerated.
	Integrity []*quality.ReferentialIntegrityError
}

// Transform turns the raw inputs into the fact and summary tables.
//
// Stages run strictly in order:
//
//	validate   schema of all three sources
//	keys       order_id, product_id and customer_id non-null and unique
//	integrity  sales -> products and sales -> customers
//	enrich     typed sales with derived columns
//	fact       join to both dimensions
//	verify     fact invariants
//	aggregate  the five summaries
//
// A schema or key error aborts before anything is derived. Integrity compares
// the raw sales keys with every key present in the dimension sources, so a
// dimension row quarantined for a bad cost_price still resolves. Dangling keys
// are recorded on rep and abort only when strict_integrity is set. A broken fact
// invariant is always fatal. rep must not be nil.
func Transform(ctx context.Context, rc *RunContext, in Inputs, rep *Report) (*Result, error) {
	if in.Sales == nil || in.Products == nil || in.Customers == nil {
		return nil, errors.New("transform: missing input table")
	}
	res := &Result{}
	var products, customers *table.Table

	quarantine := func(source string, errs []*transformer.ParseError) {
		if len(errs) == 0 {
			return
		}
		rep.source(source).Quarantined += len(errs)
		for _, e := range errs {
			rep.addParseError(e.Error())
		}
		res.Quarantined = append(res.Quarantined, errs...)
		rc.Metrics.Rows(source, "quarantined", int64(len(errs)))
		rc.logf("validate: source=%s quarantined=%d", source, len(errs))
	}

	err := rc.stage(rep, "validate", func() error {
		for _, c := range []struct {
			t *table.Table
			c schema.Contract
		}{
			{in.Sales, schema.SalesContract},
			{in.Products, schema.ProductsContract},
			{in.Customers, schema.CustomersContract},
		} {
			if err := schema.Validate(c.t, c.c); err != nil {
				return err
			}
			rc.Metrics.Rows(c.c.Name, "input", int64(c.t.Len()))
			rc.logf("validate: source=%s rows=%d columns=%d ok", c.c.Name, c.t.Len(), len(c.t.Columns))
		}

		for _, k := range []struct {
			t   *table.Table
			col string
		}{
			{in.Sales, schema.SalesContract.Key},
			{in.Products, schema.ProductsContract.Key},
			{in.Customers, schema.CustomersContract.Key},
		} {
			if err := quality.CheckKey(k.t, k.col); err != nil {
				return err
			}
		}

		var pq, cq []*transformer.ParseError
		products, pq = transformer.Coerce(in.Products, transformer.SpecFor(schema.ProductsContract, nil))
		customers, cq = transformer.Coerce(in.Customers, transformer.SpecFor(schema.CustomersContract, nil))
		quarantine(schema.Products, pq)
		quarantine(schema.Customers, cq)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	err = rc.stage(rep, "integrity", func() error {
		var violations []error
		for _, rel := range []struct {
			key string
			dim *table.Table
		}{
			{"product_id", in.Products},
			{"customer_id", in.Customers},
		} {
			err := quality.CheckReferences(in.Sales, rel.key, rel.dim, rel.key)
			var rie *quality.ReferentialIntegrityError
			switch {
			case err == nil:
				rc.logf("integrity: relation=%s.%s -> %s ok", schema.Sales, rel.key, rel.dim.Name)
			case errors.As(err, &rie):
				rep.addIntegrity(rie)
				res.Integrity = append(res.Integrity, rie)
				rc.Metrics.Rows(schema.Sales, "dangling", int64(rie.Rows))
				rc.logf("integrity: %v", rie)
				violations = append(violations, err)
			default:
				return err
			}
		}
		if len(violations) > 0 && rc.Settings.StrictIntegrity {
			return errors.Join(violations...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("integrity: %w", err)
	}

	opt := rc.transformOptions()
	var enriched *table.Table
	err = rc.stage(rep, "enrich", func() error {
		var perrs []*transformer.ParseError
		var err error
		enriched, perrs, err = transformer.Enrich(in.Sales, opt)
		if err != nil {
			return err
		}
		quarantine(schema.Sales, perrs)
		rc.logf("enrich: rows=%d quarantined=%d precision=%d", enriched.Len(), len(perrs), opt.Precision)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}

	err = rc.stage(rep, "fact", func() error {
		fact, err := transformer.BuildFact(enriched, products, customers, opt)
		if err != nil {
			return err
		}
		if v := quality.CheckFact(fact, enriched.Len(), opt.Precision); len(v) > 0 {
			return &quality.InvariantError{Violations: v}
		}
		res.Fact = fact
		rep.FactRows = fact.Len()
		rc.logf("fact: table=%s rows=%d columns=%d", fact.Name, fact.Len(), len(fact.Columns))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fact: %w", err)
	}

	err = rc.stage(rep, "aggregate", func() error {
		out, err := summary.BuildAll(ctx, res.Fact, summary.All, summary.Options{
			Partitions: rc.Settings.Runtime.Partitions,
			Precision:  opt.Precision,
		}, rc.Logger)
		if err != nil {
			return err
		}
		for i, d := range summary.All {
			out[i] = renamed(out[i], d.Output())
			rep.Summaries[d.Output()] = out[i].Len()
		}
		res.Summaries = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return res, nil
}

// renamed returns t under another name. Rows are shared.
func renamed(t *table.Table, name string) *table.Table {
	out := table.New(name, t.Columns...)
	out.Rows, out.Lines, out.Types = t.Rows, t.Lines, t.Types
	return out
}

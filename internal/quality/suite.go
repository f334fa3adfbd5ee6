package quality

import (
	"errors"
	"fmt"
	"time"

	"salesetl/internal/schema"
	"salesetl/internal/table"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Sources are the raw inputs the pre-release gate inspects. A nil table means
// the source could not be found.
type Sources struct {
	Sales     *table.Table
	Products  *table.Table
	Customers *table.Table
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // PASS, FAIL
	Detail string `json:"detail,omitempty"`
}

// SuiteResult aggregates every check of a Suite run.
type SuiteResult struct {
	Status      string        `json:"status"` // PASS, FAIL
	Checks      []CheckResult `json:"checks"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Failed returns the failing checks.
func (r *SuiteResult) Failed() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if c.Status != StatusPass {
			out = append(out, c)
		}
	}
	return out
}

// Suite is the pre-release data-quality gate. Unlike the pipeline, it is
// always strict: every dangling key is a failure.
type Suite struct {
	// Callback, when set, is invoked after each check.
	Callback func(name string, passed bool)
}

// Run evaluates every check against src. Checks that depend on a missing
// source or column fail with a detail naming the dependency; they never panic.
func (s *Suite) Run(src Sources) *SuiteResult {
	res := &SuiteResult{StartedAt: time.Now()}
	add := func(name string, err error) {
		cr := CheckResult{Name: name, Status: StatusPass}
		if err != nil {
			cr.Status = StatusFail
			cr.Detail = err.Error()
		}
		res.Checks = append(res.Checks, cr)
		if s.Callback != nil {
			s.Callback(name, err == nil)
		}
	}

	present := func(t *table.Table, name string) error {
		if t == nil {
			return fmt.Errorf("%s not found", name)
		}
		return nil
	}
	add("sales_file_exists", present(src.Sales, schema.Sales))
	add("products_file_exists", present(src.Products, schema.Products))
	add("customers_file_exists", present(src.Customers, schema.Customers))

	add("sales_not_empty", func() error {
		if src.Sales == nil {
			return errSourceMissing(schema.Sales)
		}
		if src.Sales.Len() == 0 {
			return errors.New("sales data is empty")
		}
		return nil
	}())

	columns := func(t *table.Table, c schema.Contract) error {
		if t == nil {
			return errSourceMissing(c.Name)
		}
		return schema.Validate(t, c)
	}
	add("sales_has_required_columns", columns(src.Sales, schema.SalesContract))
	add("products_has_required_columns", columns(src.Products, schema.ProductsContract))
	add("customers_has_required_columns", columns(src.Customers, schema.CustomersContract))

	var keyErr *KeyError
	keyCheck := func() error {
		if src.Sales == nil {
			return errSourceMissing(schema.Sales)
		}
		err := CheckKey(src.Sales, "order_id")
		if err != nil && !errors.As(err, &keyErr) {
			return err
		}
		return nil
	}()
	if keyCheck != nil {
		add("no_duplicate_order_ids", keyCheck)
		add("no_null_order_ids", keyCheck)
	} else {
		var dup, null error
		if keyErr != nil && len(keyErr.Duplicates) > 0 {
			dup = fmt.Errorf("duplicate order_ids found: %s", listStrings(keyErr.Duplicates))
		}
		if keyErr != nil && len(keyErr.NullLines) > 0 {
			null = fmt.Errorf("null order_ids found at line(s) %s", listInts(keyErr.NullLines))
		}
		add("no_duplicate_order_ids", dup)
		add("no_null_order_ids", null)
	}

	refs := func(dim *table.Table, key, dimName string) error {
		if src.Sales == nil {
			return errSourceMissing(schema.Sales)
		}
		if dim == nil {
			return errSourceMissing(dimName)
		}
		return CheckReferences(src.Sales, key, dim, key)
	}
	add("all_products_exist", refs(src.Products, "product_id", schema.Products))
	add("all_customers_exist", refs(src.Customers, "customer_id", schema.Customers))

	res.CompletedAt = time.Now()
	res.Status = StatusPass
	if len(res.Failed()) > 0 {
		res.Status = StatusFail
	}
	return res
}

func errSourceMissing(name string) error {
	return fmt.Errorf("skipped: %s not available", name)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"salesetl/internal/quality"
	"salesetl/internal/schema"
	"salesetl/internal/table"
)

// Check runs the pre-release data-quality suite against the raw sources.
// A source with no objects is reported by the suite as a failed check, not
// as an error; err is only set when the sources cannot be read at all.
func Check(ctx context.Context, rc *RunContext) (*quality.SuiteResult, error) {
	p := rc.Settings
	store, err := openStore(ctx, p.Source, p.AWS)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	var src quality.Sources
	dst := map[string]**table.Table{
		schema.Sales:     &src.Sales,
		schema.Products:  &src.Products,
		schema.Customers: &src.Customers,
	}
	for _, sp := range sourcePaths(p) {
		name, prefix := sp[0], sp[1]
		t, keys, err := Extract(ctx, store, name, prefix, p.Parser.Options, func(key string, line int, err error) {
			rc.logf("check: source=%s %s line %d: %v", name, key, line, err)
		})
		switch {
		case errors.Is(err, ErrNoInput):
			rc.logf("check: source=%s not found under %s/%s", name, store, prefix)
			continue
		case err != nil:
			return nil, err
		}
		rc.logf("check: source=%s files=%d rows=%d", name, len(keys), t.Len())
		*dst[name] = t
	}

	suite := &quality.Suite{
		Callback: func(name string, passed bool) {
			rc.Metrics.Check(name, passed)
		},
	}
	start := rc.now()
	res := suite.Run(src)
	for _, c := range res.Checks {
		if c.Detail != "" {
			rc.logf("check: %s %s: %s", c.Status, c.Name, c.Detail)
			continue
		}
		rc.logf("check: %s %s", c.Status, c.Name)
	}
	var runErr error
	if res.Status != quality.StatusPass {
		runErr = fmt.Errorf("%d check(s) failed", len(res.Failed()))
	}
	rc.Metrics.Step("check", runErr, rc.now().Sub(start))
	rc.logf("summary: checks=%d failed=%d status=%s", len(res.Checks), len(res.Failed()), res.Status)
	return res, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"salesetl/internal/objstore"
	"salesetl/internal/sink"
	"salesetl/internal/storage"
	"salesetl/internal/table"
)

// Output layout under the destination.
const (
	FactCSVPrefix = "fact_sales_csv"
	ReportKey     = "_run_report.json"
)

// FactPartitions are the Hive partition columns of the fact table.
var FactPartitions = []string{"order_year", "order_month"}

// Function variables used as test seams.
var (
	openStore = objstore.Open

	newRepository = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}
)

// Job is one configured pipeline run.
type Job struct {
	rc *RunContext
}

// NewJob returns a job bound to rc.
func NewJob(rc *RunContext) *Job { return &Job{rc: rc} }

// Run executes the whole pipeline: lock the destination, extract, transform,
// write every output and, when configured, load the warehouse. The returned
// report is never nil and describes the run even when it failed.
func (j *Job) Run(ctx context.Context) (rep *Report, err error) {
	rc := j.rc
	p := rc.Settings
	rep = NewReport(rc)
	rc.logf("pipeline: job=%s source=%s destination=%s strict_integrity=%t precision=%d warehouse=%s",
		rc.Job, p.Source, p.Destination, p.StrictIntegrity, rc.Precision(), orNone(p.Warehouse.Kind))

	defer func() {
		rep.finish(rc.now(), err)
		rc.Metrics.Step("run", err, rep.Duration())
		logSummary(rc, rep)
	}()

	lock, err := objstore.AcquireLock(p.Destination)
	if err != nil {
		return rep, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			rc.logf("pipeline: release lock: %v", rerr)
		}
	}()

	src, err := openStore(ctx, p.Source, p.AWS)
	if err != nil {
		return rep, fmt.Errorf("open source: %w", err)
	}
	dst, err := openStore(ctx, p.Destination, p.AWS)
	if err != nil {
		return rep, fmt.Errorf("open destination: %w", err)
	}

	var in Inputs
	if err = rc.stage(rep, "extract", func() error {
		var err error
		in, err = extractAll(ctx, rc, rep, src)
		return err
	}); err != nil {
		return rep, err
	}

	res, err := Transform(ctx, rc, in, rep)
	if err != nil {
		return rep, err
	}

	w := &sink.Writer{
		Store:     dst,
		Precision: rc.Precision(),
		Workers:   p.Runtime.Workers,
		Logger:    rc.Logger,
	}
	if err = rc.stage(rep, "emit", func() error {
		out, err := emit(ctx, w, res)
		rep.Outputs = out
		return err
	}); err != nil {
		return rep, fmt.Errorf("emit: %w", err)
	}
	for _, o := range rep.Outputs {
		rc.Metrics.Rows(o.Table, "written", int64(o.Rows))
		rc.Metrics.TableSize(o.Table, o.Rows)
	}

	if p.Warehouse.Enabled() {
		if err = rc.stage(rep, "warehouse", func() error {
			loaded, err := loadWarehouse(ctx, rc, res)
			rep.Warehouse = loaded
			return err
		}); err != nil {
			return rep, fmt.Errorf("warehouse: %w", err)
		}
	}

	// The report is written last so its presence marks a complete run.
	rep.finish(rc.now(), nil)
	if err = w.WriteJSON(ctx, ReportKey, rep); err != nil {
		return rep, fmt.Errorf("write report: %w", err)
	}
	return rep, nil
}

// emit writes the fact table (Parquet, partitioned, and flat CSV) and every
// summary. Tables are written concurrently; the result follows input order.
func emit(ctx context.Context, w *sink.Writer, res *Result) ([]*sink.Written, error) {
	type job struct {
		write func(context.Context) (*sink.Written, error)
	}
	jobs := []job{
		{func(ctx context.Context) (*sink.Written, error) {
			return w.WriteParquet(ctx, res.Fact, res.Fact.Name, FactPartitions...)
		}},
		{func(ctx context.Context) (*sink.Written, error) {
			return w.WriteCSV(ctx, renamed(res.Fact, FactCSVPrefix), FactCSVPrefix)
		}},
	}
	for _, t := range res.Summaries {
		jobs = append(jobs, job{func(ctx context.Context) (*sink.Written, error) {
			return w.WriteParquet(ctx, t, t.Name)
		}})
	}

	out := make([]*sink.Written, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(w.Workers, 1))
	for i, jb := range jobs {
		g.Go(func() error {
			wr, err := jb.write(gctx)
			if err != nil {
				return err
			}
			out[i] = wr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// loadWarehouse replaces every output table in the configured warehouse.
func loadWarehouse(ctx context.Context, rc *RunContext, res *Result) (map[string]int64, error) {
	wh := rc.Settings.Warehouse
	repo, err := newRepository(ctx, storage.Config{Kind: wh.Kind, DSN: wh.DSN})
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	type target struct {
		t    *table.Table
		keys []string
	}
	targets := []target{{res.Fact, []string{"order_id"}}}
	for _, t := range res.Summaries {
		targets = append(targets, target{t: t})
	}

	loaded := make(map[string]int64, len(targets))
	for _, tg := range targets {
		n, err := storage.Replace(ctx, repo, tg.t, storage.ReplaceOptions{
			Schema:    wh.Schema,
			BatchSize: wh.BatchSize,
			Keys:      tg.keys,
		})
		loaded[tg.t.Name] = n
		if err != nil {
			return loaded, err
		}
		rc.logf("load: warehouse=%s table=%s rows=%d", wh.Kind, tg.t.Name, n)
	}
	return loaded, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// IsConfigError reports whether err means the run could not start at all
// (destination locked, source missing) rather than failing on the data.
func IsConfigError(err error) bool {
	return errors.Is(err, objstore.ErrLocked) || errors.Is(err, ErrNoInput)
}

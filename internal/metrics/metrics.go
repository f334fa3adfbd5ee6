// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the sales ETL.
//
// It exposes a narrow Backend interface (counters, gauges, timing
// observations), a Recorder that binds a backend to one job, and a global,
// pluggable backend that defaults to a no-op, so instrumentation is always
// safe to call even when no real backend is configured. Concrete metric
// systems live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal    = "etl_step_total"
	StepDuration = "etl_step_duration_seconds"
	RowsTotal    = "etl_rows_total"
	TableRows    = "etl_table_rows"
	ChecksTotal  = "etl_quality_checks_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// SetGauge records the latest value of a gauge.
	SetGauge(name string, value float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) SetGauge(name string, value float64, labels Labels)         {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// Recorder records the metrics of one job to one backend. A nil Recorder, or
// one without a Backend, records to the global backend.
type Recorder struct {
	Backend Backend
	Job     string
}

// NewRecorder binds b to job. A nil b selects the global backend at record
// time.
func NewRecorder(b Backend, job string) *Recorder {
	return &Recorder{Backend: b, Job: job}
}

func (r *Recorder) target() (Backend, string) {
	if r == nil {
		return backend, ""
	}
	if r.Backend == nil {
		return backend, r.Job
	}
	return r.Backend, r.Job
}

// Step measures latency and success/failure of one pipeline stage.
func (r *Recorder) Step(step string, err error, d time.Duration) {
	b, job := r.target()
	recordStep(b, job, step, err, d)
}

// Rows counts rows of a table by kind. See RecordRows.
func (r *Recorder) Rows(table, kind string, delta int64) {
	b, job := r.target()
	recordRows(b, job, table, kind, delta)
}

// TableSize sets the row count of an output table.
func (r *Recorder) TableSize(table string, rows int) {
	b, job := r.target()
	recordTableSize(b, job, table, rows)
}

// Check counts one data-quality check outcome.
func (r *Recorder) Check(check string, passed bool) {
	b, job := r.target()
	recordCheck(b, job, check, passed)
}

// Flush flushes the recorder's backend.
func (r *Recorder) Flush() error {
	b, _ := r.target()
	return b.Flush()
}

// RecordStep is a convenience for the common pattern:
// measure latency + success/failure per pipeline stage.
func RecordStep(job, step string, err error, d time.Duration) {
	recordStep(backend, job, step, err, d)
}

func recordStep(b Backend, job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows counts rows of a table by kind.
//
// Kinds used by the pipeline:
//   - "input"        rows read from a source
//   - "quarantined"  rows excluded by a parse error
//   - "dangling"     rows whose foreign key has no dimension match
//   - "written"      rows written to an output
func RecordRows(job, table, kind string, delta int64) {
	recordRows(backend, job, table, kind, delta)
}

func recordRows(b Backend, job, table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	b.IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
		"kind":  kind,
	})
}

// RecordTableSize sets the row count of an output table.
func RecordTableSize(job, table string, rows int) {
	recordTableSize(backend, job, table, rows)
}

func recordTableSize(b Backend, job, table string, rows int) {
	b.SetGauge(TableRows, float64(rows), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordCheck counts one data-quality check outcome.
func RecordCheck(job, check string, passed bool) {
	recordCheck(backend, job, check, passed)
}

func recordCheck(b Backend, job, check string, passed bool) {
	status := "pass"
	if !passed {
		status = "fail"
	}
	b.IncCounter(ChecksTotal, 1, Labels{
		"job":    job,
		"check":  check,
		"status": status,
	})
}

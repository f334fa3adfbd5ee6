// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch job has no long-lived HTTP endpoint to scrape, so collectors live in
// a private registry that Flush pushes to a Pushgateway under the job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"salesetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // etl_step_total
	stepDuration *prometheus.SummaryVec // etl_step_duration_seconds
	rowCounter   *prometheus.CounterVec // etl_rows_total
	tableRows    *prometheus.GaugeVec   // etl_table_rows
	checkCounter *prometheus.CounterVec // etl_quality_checks_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "sales_etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline stages in seconds, by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row counts per table and kind (input, quarantined, dangling, written).",
		}, []string{"table", "kind"}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.TableRows,
			Help: "Row count of each output table in the last run.",
		}, []string{"table"}),
		checkCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ChecksTotal,
			Help: "Data-quality check outcomes by check and status.",
		}, []string{"check", "status"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":  b.stepCounter,
		"step summary":  b.stepDuration,
		"row counter":   b.rowCounter,
		"table gauge":   b.tableRows,
		"check counter": b.checkCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["table"], labels["kind"]).Add(delta)
		}
	case metrics.ChecksTotal:
		if b.checkCounter != nil {
			b.checkCounter.WithLabelValues(labels["check"], labels["status"]).Add(delta)
		}
	}
}

// SetGauge implements metrics.Backend.
func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if name != metrics.TableRows || b.tableRows == nil {
		return
	}
	b.tableRows.WithLabelValues(labels["table"]).Set(value)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}

package main

import (
	"io"
	"log"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

// setupMetrics opens the configured metrics backend and returns it with a
// function that flushes it. The backend is nil when metrics are disabled or
// the backend fails to initialize.
func setupMetrics(p config.Pipeline, verbose bool, out io.Writer) (metrics.Backend, func()) {
	logger := log.New(out, "", log.LstdFlags)
	flush := func() {}

	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "pushgateway":
		gwURL := p.Metrics.PushgatewayURL
		if gwURL == "" {
			gwURL = defaultPushgatewayURL
		}
		b, err = prompush.NewBackend(p.Job, gwURL)
		if err == nil {
			logger.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, p.Metrics.Backend, p.Job)
		}

	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.DatadogAddr,
			Namespace:  "salesetl.",
			GlobalTags: []string{"service:salesetl", "job:" + p.Job},
		})
		if err == nil {
			logger.Printf("metrics: addr=%v, backend=%v, job_name=%v", p.Metrics.DatadogAddr, p.Metrics.Backend, p.Job)
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			logger.Printf("metrics: disabled (backend=%q)", p.Metrics.Backend)
		}
		return nil, flush

	default:
		logger.Printf("metrics: unknown backend %q; metrics disabled", p.Metrics.Backend)
		return nil, flush
	}

	if err != nil {
		logger.Printf("metrics: failed to init %s backend: %v; using nop", p.Metrics.Backend, err)
		return nil, flush
	}
	return b, func() {
		if err := b.Flush(); err != nil {
			logger.Printf("metrics: flush error: %v", err)
		}
	}
}

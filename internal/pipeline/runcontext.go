// Package pipeline sequences one sales ETL run: extract the three raw sources,
// validate and transform them into the fact and summary tables, write the
// outputs, and optionally mirror them into a SQL warehouse.
//
// Everything a run needs travels on an explicit RunContext, so two runs in the
// same process share no state.
package pipeline

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/transformer"
)

// RunContext is the execution context of a single run.
type RunContext struct {
	ID       string
	Job      string
	Settings config.Pipeline
	Logger   *log.Logger

	// Metrics receives the run's steps, row counts and check outcomes.
	Metrics *metrics.Recorder

	// Now is the clock used for report timestamps and stage timings.
	Now func() time.Time
}

// NewRunContext returns a context for one run of p. Log lines go to out
// (os.Stderr when nil) prefixed with "run=<id> ". Metrics go to the global
// backend until the caller sets Metrics.
func NewRunContext(p config.Pipeline, out io.Writer) *RunContext {
	if out == nil {
		out = os.Stderr
	}
	id := uuid.NewString()
	job := p.Job
	if job == "" {
		job = config.DefaultJob
	}
	return &RunContext{
		ID:       id,
		Job:      job,
		Settings: p,
		Logger:   log.New(out, "run="+id[:8]+" ", log.LstdFlags|log.Lmsgprefix),
		Metrics:  metrics.NewRecorder(nil, job),
		Now:      time.Now,
	}
}

func (rc *RunContext) now() time.Time {
	if rc.Now == nil {
		return time.Now()
	}
	return rc.Now()
}

func (rc *RunContext) logf(format string, args ...any) {
	if rc.Logger != nil {
		rc.Logger.Printf(format, args...)
	}
}

// Precision is the rounding precision of the run.
func (rc *RunContext) Precision() int32 {
	return int32(rc.Settings.Places())
}

func (rc *RunContext) transformOptions() transformer.Options {
	return transformer.Options{
		Precision:   rc.Precision(),
		DateLayouts: rc.Settings.DateLayouts,
	}
}

// stage runs fn as a named step: it is timed, recorded on rep and pushed to
// metrics whether it succeeds or not.
func (rc *RunContext) stage(rep *Report, name string, fn func() error) error {
	start := rc.now()
	err := fn()
	d := rc.now().Sub(start)
	rc.Metrics.Step(name, err, d)
	if rep != nil {
		rep.addStage(name, d, err)
	}
	if err != nil {
		rc.logf("%s: failed after %s: %v", name, d.Truncate(time.Millisecond), err)
	}
	return err
}

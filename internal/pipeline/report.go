package pipeline

import (
	"sort"
	"sync"
	"time"

	"salesetl/internal/quality"
	"salesetl/internal/sink"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// sampleSize is how many distinct error messages a report keeps.
const sampleSize = 20

// SourceStats counts the rows of one raw input.
type SourceStats struct {
	Files []string `json:"files"`

	// InputRows is the number of rows read from Files.
	InputRows int `json:"input_rows"`

	// Rejected rows could not be read as CSV (wrong width, bad quoting) and
	// are not part of InputRows.
	Rejected int `json:"rejected_rows"`

	// Quarantined rows were read but held a value that could not be parsed.
	Quarantined int `json:"quarantined_rows"`
}

// IntegrityViolation is one dangling foreign-key relation.
type IntegrityViolation struct {
	Relation string   `json:"relation"`
	Missing  []string `json:"missing_keys"`
	Rows     int      `json:"rows"`
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
	Failed  bool    `json:"failed,omitempty"`
}

// ErrorSample keeps the total count of errors and the first few messages.
type ErrorSample struct {
	Count int            `json:"count"`
	First []string       `json:"first,omitempty"`
	ByMsg map[string]int `json:"-"`
}

// Report is the observable outcome of one run. It is logged at the end of
// every run and written next to the outputs as _run_report.json.
type Report struct {
	RunID       string    `json:"run_id"`
	Job         string    `json:"job"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Source      string `json:"source"`
	Destination string `json:"destination"`

	Sources     map[string]*SourceStats `json:"sources"`
	Integrity   []IntegrityViolation    `json:"integrity_violations"`
	FactRows    int                     `json:"fact_rows"`
	Summaries   map[string]int          `json:"summaries"`
	Outputs     []*sink.Written         `json:"outputs,omitempty"`
	Warehouse   map[string]int64        `json:"warehouse,omitempty"`
	ParseErrors ErrorSample             `json:"parse_errors"`
	Stages      []StageTiming           `json:"stages"`

	mu   sync.Mutex
	errs *errAgg
}

// NewReport starts a report for rc.
func NewReport(rc *RunContext) *Report {
	return &Report{
		RunID:       rc.ID,
		Job:         rc.Job,
		StartedAt:   rc.now(),
		Source:      rc.Settings.Source,
		Destination: rc.Settings.Destination,
		Sources:     map[string]*SourceStats{},
		Summaries:   map[string]int{},
		errs:        newErrAgg(sampleSize),
	}
}

func (r *Report) source(name string) *SourceStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Sources[name]
	if !ok {
		s = &SourceStats{}
		r.Sources[name] = s
	}
	return s
}

func (r *Report) addStage(name string, d time.Duration, err error) {
	r.mu.Lock()
	r.Stages = append(r.Stages, StageTiming{Name: name, Seconds: d.Seconds(), Failed: err != nil})
	r.mu.Unlock()
}

func (r *Report) addParseError(msg string) {
	r.errs.add(msg)
}

func (r *Report) addIntegrity(e *quality.ReferentialIntegrityError) {
	r.mu.Lock()
	r.Integrity = append(r.Integrity, IntegrityViolation{Relation: e.Relation, Missing: e.Missing, Rows: e.Rows})
	r.mu.Unlock()
}

// finish stamps the outcome of the run.
func (r *Report) finish(now time.Time, err error) {
	r.CompletedAt = now
	r.Status = StatusSuccess
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
	r.ParseErrors = r.errs.sample()
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.CompletedAt.Sub(r.StartedAt) }

// errAgg aggregates error messages: it counts all of them and keeps the first
// limit for display.
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) sample() ErrorSample {
	if a == nil {
		return ErrorSample{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	by := make(map[string]int, len(a.buckets))
	for k, v := range a.buckets {
		by[k] = v
	}
	return ErrorSample{Count: a.count, First: append([]string(nil), a.first...), ByMsg: by}
}

// logSummary prints the final statistics of the run.
//
// For every source:
//
//	input_rows == accepted + quarantined
//
// and for sales, accepted == fact_rows.
func logSummary(rc *RunContext, r *Report) {
	names := make([]string, 0, len(r.Sources))
	for n := range r.Sources {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := r.Sources[n]
		rc.logf("summary: source=%s files=%d input_rows=%d rejected=%d quarantined=%d",
			n, len(s.Files), s.InputRows, s.Rejected, s.Quarantined)
	}
	for _, v := range r.Integrity {
		rc.logf("summary: integrity relation=%q missing_keys=%d rows=%d", v.Relation, len(v.Missing), v.Rows)
	}

	sums := make([]string, 0, len(r.Summaries))
	for n := range r.Summaries {
		sums = append(sums, n)
	}
	sort.Strings(sums)
	for _, n := range sums {
		rc.logf("summary: table=%s rows=%d", n, r.Summaries[n])
	}

	if r.ParseErrors.Count > 0 {
		rc.logf("parse errors: %d (showing first %d)", r.ParseErrors.Count, len(r.ParseErrors.First))
		for i, s := range r.ParseErrors.First {
			rc.logf("  #%03d: %s", i+1, s)
		}
	}

	rc.logf("summary: status=%s fact_rows=%d outputs=%d duration=%s",
		r.Status, r.FactRows, len(r.Outputs), r.Duration().Truncate(time.Millisecond))

	if s, ok := r.Sources[salesSource]; ok && r.Status == StatusSuccess {
		if accepted := s.InputRows - s.Quarantined; accepted != r.FactRows {
			rc.logf("WARNING: row accounting mismatch: sales accepted=%d fact=%d (delta=%d)",
				accepted, r.FactRows, accepted-r.FactRows)
		}
	}
}

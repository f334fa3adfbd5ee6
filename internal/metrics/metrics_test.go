package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsGauges     []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) SetGauge(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsGauges = append(f.callsGauges, counterCall{name, value, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	// Success case.
	RecordStep("jobA", "extract", nil, 2*time.Second)

	// Failure case.
	err := errors.New("boom")
	RecordStep("jobB", "load", err, 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	// First call: success.
	cc0 := fb.callsCounters[0]
	if cc0.name != "etl_step_total" || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=etl_step_total, delta=1", cc0)
	}
	if got := cc0.labels["job"]; got != "jobA" {
		t.Fatalf("counter[0].labels[job]=%q; want %q", got, "jobA")
	}
	if got := cc0.labels["step"]; got != "extract" {
		t.Fatalf("counter[0].labels[step]=%q; want %q", got, "extract")
	}
	if got := cc0.labels["status"]; got != "success" {
		t.Fatalf("counter[0].labels[status]=%q; want %q", got, "success")
	}

	h0 := fb.callsHistograms[0]
	if h0.name != "etl_step_duration_seconds" {
		t.Fatalf("hist[0].name=%q; want etl_step_duration_seconds", h0.name)
	}
	if h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0].value=%v; want ~2.0", h0.value)
	}

	// Second call: failure.
	cc1 := fb.callsCounters[1]
	if cc1.labels["job"] != "jobB" || cc1.labels["step"] != "load" {
		t.Fatalf("counter[1] labels job/step = %v; want jobB/load", cc1.labels)
	}
	if cc1.labels["status"] != "failure" {
		t.Fatalf("counter[1].labels[status]=%q; want %q", cc1.labels["status"], "failure")
	}

	h1 := fb.callsHistograms[1]
	if h1.value < 1.5-0.001 || h1.value > 1.5+0.001 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordRowsTableSizeAndCheck(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	backend = fb

	RecordRows("sales_etl", "sales_data", "input", 3)
	RecordRows("sales_etl", "sales_data", "quarantined", 0) // ignored
	RecordCheck("sales_etl", "all_products_exist", false)
	RecordTableSize("sales_etl", "fact_sales", 42)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}

	c0 := fb.callsCounters[0]
	if c0.name != RowsTotal || c0.delta != 3 {
		t.Fatalf("counter[0] = %#v; want name=%s, delta=3", c0, RowsTotal)
	}
	if c0.labels["table"] != "sales_data" || c0.labels["kind"] != "input" {
		t.Fatalf("counter[0] labels = %v", c0.labels)
	}

	c1 := fb.callsCounters[1]
	if c1.name != ChecksTotal || c1.labels["check"] != "all_products_exist" || c1.labels["status"] != "fail" {
		t.Fatalf("counter[1] = %#v", c1)
	}

	if len(fb.callsGauges) != 1 {
		t.Fatalf("expected 1 gauge call, got %d", len(fb.callsGauges))
	}
	if g := fb.callsGauges[0]; g.name != TableRows || g.delta != 42 || g.labels["table"] != "fact_sales" {
		t.Fatalf("gauge = %#v", g)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)

	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	// SetBackend(nil) should not nil out the backend.
	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}

func TestRecorder_UsesItsOwnBackend(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	global := &fakeBackend{}
	backend = global

	a, b := &fakeBackend{}, &fakeBackend{}
	ra, rb := NewRecorder(a, "run_a"), NewRecorder(b, "run_b")
	ra.Step("extract", nil, time.Second)
	ra.Rows("fact_sales", "written", 4)
	rb.Check("all_products_exist", true)
	rb.TableSize("agg_city_sales", 3)
	if err := ra.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(a.callsCounters) != 2 || a.callsCounters[0].labels["job"] != "run_a" || a.flushCount != 1 {
		t.Fatalf("recorder a: counters=%v flushes=%d", a.callsCounters, a.flushCount)
	}
	if len(b.callsCounters) != 1 || len(b.callsGauges) != 1 || b.callsGauges[0].labels["job"] != "run_b" {
		t.Fatalf("recorder b: counters=%v gauges=%v", b.callsCounters, b.callsGauges)
	}
	if len(global.callsCounters)+len(global.callsGauges)+len(global.callsHistograms) != 0 {
		t.Fatal("recorders with a backend wrote to the global backend")
	}

	NewRecorder(nil, "run_c").Rows("sales_data", "input", 1)
	if len(global.callsCounters) != 1 || global.callsCounters[0].labels["job"] != "run_c" {
		t.Fatalf("nil-backend recorder: global counters = %v", global.callsCounters)
	}
}

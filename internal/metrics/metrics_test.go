package metrics

import (
	"sync"
	"testing"
)

type recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	flushed  int
}

func (r *recorder) IncCounter(name string, delta float64, _ Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *recorder) ObserveHistogram(name string, v float64, _ Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[name] = append(r.samples[name], v)
}

func (r *recorder) Flush() error {
	r.flushed++
	return nil
}

// TestSetBackend verifies the facade forwards to the installed backend and
// falls back to the no-op on nil.
func TestSetBackend(t *testing.T) {
	r := &recorder{counters: map[string]float64{}, samples: map[string][]float64{}}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter(RowsTotal, 3, nil)
	IncCounter(RowsTotal, 2, nil)
	ObserveHistogram(RunDurationSeconds, 0.5, Labels{"status": "ok"})
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if r.counters[RowsTotal] != 5 {
		t.Fatalf("rows=%v", r.counters[RowsTotal])
	}
	if len(r.samples[RunDurationSeconds]) != 1 || r.flushed != 1 {
		t.Fatalf("unexpected recorder state: %+v", r)
	}

	SetBackend(nil)
	IncCounter(RowsTotal, 1, nil)
	if r.counters[RowsTotal] != 5 {
		t.Fatalf("nil backend still forwarded")
	}
}

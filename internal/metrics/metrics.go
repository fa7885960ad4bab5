// Package metrics is the backend-agnostic metrics facade used by the
// extraction engine. Packages record through the package-level functions;
// main installs a concrete Backend (or leaves the no-op default).
package metrics

import "sync"

// Metric names emitted by the inspector.
const (
	RunsTotal          = "inspector_runs_total"
	RowsTotal          = "inspector_rows_total"
	RunDurationSeconds = "inspector_run_duration_seconds"
	PagesTotal         = "inspector_pages_total"
	SessionsTotal      = "inspector_sessions_total"
	WebhookTotal       = "inspector_webhook_total"
)

// Labels are metric dimensions, e.g. {"status": "ok"}.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits anything the backend has buffered.
func Flush() error {
	return current().Flush()
}

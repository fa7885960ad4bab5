// Package paginate drives an extraction across a sequence of page states.
//
// Each step activates a transition (click a "next" control or scroll one
// viewport), waits for the page to settle, runs one extraction pass and
// appends its rows. Rows are appended as-is: the driver never deduplicates,
// so callers that revisit content must dedupe downstream.
package paginate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"inspector/internal/dom"
	"inspector/internal/extracthtml"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further steps can run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Trigger selects the page transition performed by each step.
type Trigger string

const (
	TriggerClick  Trigger = "click"
	TriggerScroll Trigger = "scroll"
)

var (
	// ErrAlreadyStarted is returned when a session is run twice.
	ErrAlreadyStarted = errors.New("paginate: session already started")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("paginate: invalid config")
)

// ControlNotFoundError ends a session whose control selector stopped
// resolving. It matches dom.ErrControlNotFound under errors.Is.
type ControlNotFoundError struct {
	Selector string
	Page     int
}

func (e *ControlNotFoundError) Error() string {
	return fmt.Sprintf("%s: control %q not found before page %d", extracthtml.CodeControlNotFound, e.Selector, e.Page)
}

func (e *ControlNotFoundError) Is(target error) bool {
	return target == dom.ErrControlNotFound
}

// Code returns the error code reported in terminal events.
func (e *ControlNotFoundError) Code() string { return extracthtml.CodeControlNotFound }

// Config describes one pagination run.
type Config struct {
	ControlSelector string
	MaxPages        int           // 0 runs until the control disappears
	Delay           time.Duration // settle wait after each transition
	Trigger         Trigger       // "" is click

	Rules   []extracthtml.FieldRule
	Options extracthtml.Options

	// IncludeCurrent extracts the page as it is before the first
	// transition. Its rows seed the accumulation under page 0 and it does
	// not count towards MaxPages.
	IncludeCurrent bool
}

func (c *Config) validate() error {
	if c.Trigger == "" {
		c.Trigger = TriggerClick
	}
	switch {
	case len(c.Rules) == 0:
		return extracthtml.ErrNoSelectors
	case c.Trigger != TriggerClick && c.Trigger != TriggerScroll:
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidConfig, c.Trigger)
	case c.Trigger == TriggerClick && c.ControlSelector == "":
		return fmt.Errorf("%w: click trigger needs a control selector", ErrInvalidConfig)
	case c.Trigger == TriggerScroll && c.MaxPages == 0:
		return fmt.Errorf("%w: scroll trigger needs max pages", ErrInvalidConfig)
	case c.MaxPages < 0:
		return fmt.Errorf("%w: max pages must not be negative", ErrInvalidConfig)
	case c.Delay < 0:
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Outcome is a session's final result.
type Outcome struct {
	SessionID string
	Status    Status
	Reason    string
	Err       error
	Pages     int // completed steps, page 0 excluded
	Rows      []extracthtml.Row
	Summaries map[int][]extracthtml.SummaryEntry
}

// State is a point-in-time view of a session.
type State struct {
	Status      Status
	Active      bool
	CurrentPage int
	RowsSoFar   int
}

// Session is the accumulated state of one pagination run. Its mutable
// fields are only written by the driver goroutine running it.
type Session struct {
	ID  string
	cfg Config

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}

	mu          sync.Mutex
	status      Status
	currentPage int
	rows        []extracthtml.Row
	summaries   map[int][]extracthtml.SummaryEntry
	outcome     Outcome
}

// NewSession validates cfg and returns an idle session.
func NewSession(cfg Config) (*Session, error) {
	cfg.Rules = append([]extracthtml.FieldRule(nil), cfg.Rules...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.NewString(),
		cfg:       cfg,
		cancelCh:  make(chan struct{}),
		done:      make(chan struct{}),
		status:    StatusIdle,
		summaries: make(map[int][]extracthtml.SummaryEntry),
	}, nil
}

// Config returns the validated configuration.
func (s *Session) Config() Config { return s.cfg }

// Cancel asks the session to stop before its next step. A step already in
// flight finishes its extraction first. Cancelling a finished session, or
// cancelling twice, does nothing.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

func (s *Session) cancelRequested() bool {
	select {
	case <-s.cancelCh:
		return true
	default:
		return false
	}
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome returns the final result. It is only meaningful after Done.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// State reports the session's progress.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Status:      s.status,
		Active:      s.status == StatusRunning,
		CurrentPage: s.currentPage,
		RowsSoFar:   len(s.rows),
	}
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusIdle {
		return ErrAlreadyStarted
	}
	s.status = StatusRunning
	return nil
}

// record appends one pass and returns the new total row count.
func (s *Session) record(page int, res *extracthtml.Result) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPage = page
	s.rows = append(s.rows, res.Rows...)
	s.summaries[page] = res.Summary
	return len(s.rows)
}

// finish moves the session to a terminal state and builds its outcome.
// The caller closes done once observers have been told.
func (s *Session) finish(status Status, reason string, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := Outcome{
		SessionID: s.ID,
		Status:    status,
		Reason:    reason,
		Err:       err,
		Pages:     s.currentPage,
		Rows:      s.rows,
		Summaries: s.summaries,
	}
	if o.Reason == "" && err != nil {
		o.Reason = err.Error()
	}
	s.status = status
	s.outcome = o
	return o
}

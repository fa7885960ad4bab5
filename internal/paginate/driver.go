package paginate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inspector/internal/dom"
	"inspector/internal/extracthtml"
	"inspector/internal/logger"
	"inspector/internal/metrics"
)

// SettleFunc waits for the page to finish reacting to a transition. It
// should return early with ctx.Err() when ctx is done.
type SettleFunc func(ctx context.Context, page dom.Page) error

// FixedDelay waits d regardless of what the page does. Content that takes
// longer than d to appear is missed by the following extraction.
func FixedDelay(d time.Duration) SettleFunc {
	return func(ctx context.Context, _ dom.Page) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

// EventKind distinguishes progress from terminal events.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventTerminal EventKind = "terminal"
)

// Event is delivered to the observer after every page and once at the end.
// It holds copies; observers never share state with the session.
type Event struct {
	Kind      EventKind
	SessionID string
	Page      int
	RowsSoFar int
	Summary   []extracthtml.SummaryEntry
	Status    Status
	Reason    string
	Code      string
}

// Driver runs sessions against one page. Sessions on the same page must
// not run concurrently.
type Driver struct {
	page     dom.Page
	log      logger.Logger
	settle   SettleFunc
	observer func(Event)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithSettle replaces the session's fixed delay with f.
func WithSettle(f SettleFunc) Option {
	return func(d *Driver) { d.settle = f }
}

// WithObserver receives progress and terminal events, synchronously, on
// the driver goroutine.
func WithObserver(f func(Event)) Option {
	return func(d *Driver) { d.observer = f }
}

// New returns a Driver over page.
func New(page dom.Page, opts ...Option) *Driver {
	d := &Driver{page: page, log: logger.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start validates cfg and runs a new session in its own goroutine.
func (d *Driver) Start(ctx context.Context, cfg Config) (*Session, error) {
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	go d.loop(ctx, s)
	return s, nil
}

// Run executes s to completion on the calling goroutine.
func (d *Driver) Run(ctx context.Context, s *Session) (Outcome, error) {
	if err := s.begin(); err != nil {
		return Outcome{}, err
	}
	return d.loop(ctx, s), nil
}

func (d *Driver) loop(ctx context.Context, s *Session) Outcome {
	cfg := s.cfg
	log := d.log.With(logger.String("session", s.ID), logger.String("trigger", string(cfg.Trigger)))
	log.Info("pagination started",
		logger.String("control", cfg.ControlSelector),
		logger.Int("max_pages", cfg.MaxPages),
		logger.Duration("delay", cfg.Delay))

	settle := d.settle
	if settle == nil {
		settle = FixedDelay(cfg.Delay)
	}

	if cfg.IncludeCurrent {
		if err := d.extract(ctx, s, 0); err != nil {
			return d.end(log, s, StatusFailed, "", err)
		}
	}

	for page := 1; cfg.MaxPages == 0 || page <= cfg.MaxPages; page++ {
		if s.cancelRequested() || ctx.Err() != nil {
			return d.end(log, s, StatusCancelled, "cancelled", nil)
		}

		if err := d.transition(ctx, cfg, page); err != nil {
			metrics.IncCounter(metrics.PagesTotal, 1, metrics.Labels{"status": "failed"})
			return d.end(log, s, StatusFailed, "", err)
		}

		// The transition already happened, so this page is extracted even
		// if the wait is interrupted.
		interrupted := false
		if err := settle(ctx, d.page); err != nil {
			if ctx.Err() == nil {
				return d.end(log, s, StatusFailed, "", fmt.Errorf("settle: %w", err))
			}
			interrupted = true
		}

		if err := d.extract(context.WithoutCancel(ctx), s, page); err != nil {
			metrics.IncCounter(metrics.PagesTotal, 1, metrics.Labels{"status": "failed"})
			return d.end(log, s, StatusFailed, "", err)
		}
		metrics.IncCounter(metrics.PagesTotal, 1, metrics.Labels{"status": "ok"})

		if interrupted {
			return d.end(log, s, StatusCancelled, "cancelled", nil)
		}
	}
	return d.end(log, s, StatusCompleted, "", nil)
}

// transition performs the step's page change.
func (d *Driver) transition(ctx context.Context, cfg Config, page int) error {
	if cfg.Trigger == TriggerScroll {
		if err := d.page.Scroll(ctx); err != nil {
			return fmt.Errorf("scroll before page %d: %w", page, err)
		}
		return nil
	}

	ctrl, err := d.page.Control(ctx, cfg.ControlSelector)
	if err != nil {
		if errors.Is(err, dom.ErrControlNotFound) {
			return &ControlNotFoundError{Selector: cfg.ControlSelector, Page: page}
		}
		return fmt.Errorf("locate control before page %d: %w", page, err)
	}
	if err := ctrl.Activate(ctx); err != nil {
		return fmt.Errorf("activate control for page %d: %w", page, err)
	}
	return nil
}

func (d *Driver) extract(ctx context.Context, s *Session, page int) error {
	snap, err := d.page.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot page %d: %w", page, err)
	}
	res, err := extracthtml.Run(snap, s.cfg.Rules, s.cfg.Options)
	if err != nil {
		return fmt.Errorf("extract page %d: %w", page, err)
	}

	total := s.record(page, res)
	d.log.Debug("page extracted",
		logger.String("session", s.ID),
		logger.Int("page", page),
		logger.Int("rows", len(res.Rows)),
		logger.Int("rows_so_far", total))

	d.emit(Event{
		Kind:      EventProgress,
		SessionID: s.ID,
		Page:      page,
		RowsSoFar: total,
		Summary:   append([]extracthtml.SummaryEntry(nil), res.Summary...),
		Status:    StatusRunning,
	})
	return nil
}

func (d *Driver) end(log logger.Logger, s *Session, status Status, reason string, err error) Outcome {
	o := s.finish(status, reason, err)

	ev := Event{
		Kind:      EventTerminal,
		SessionID: s.ID,
		Page:      o.Pages,
		RowsSoFar: len(o.Rows),
		Status:    status,
		Reason:    o.Reason,
	}
	var cnf *ControlNotFoundError
	if errors.As(err, &cnf) {
		ev.Code = cnf.Code()
	}

	fields := []logger.Field{
		logger.String("status", string(status)),
		logger.Int("pages", o.Pages),
		logger.Int("rows", len(o.Rows)),
	}
	if err != nil {
		log.Warn("pagination stopped", append(fields, logger.Error(err))...)
	} else {
		log.Info("pagination finished", fields...)
	}
	metrics.IncCounter(metrics.SessionsTotal, 1, metrics.Labels{"status": string(status)})

	d.emit(ev)
	close(s.done)
	return o
}

func (d *Driver) emit(ev Event) {
	if d.observer != nil {
		d.observer(ev)
	}
}

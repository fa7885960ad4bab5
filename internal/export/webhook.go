package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"inspector/internal/extracthtml"
	"inspector/internal/logger"
	"inspector/internal/metrics"
)

// Payload is the body POSTed to a webhook.
type Payload struct {
	Data    []extracthtml.Row          `json:"data"`
	Summary []extracthtml.SummaryEntry `json:"summary"`
}

// Webhook POSTs JSON to a URL with retry and exponential backoff.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithRetries sets the maximum number of retries. Default: 3.
func WithRetries(n int) WebhookOption {
	return func(w *Webhook) {
		if n >= 0 {
			w.maxRetries = n
		}
	}
}

// WithBackoff sets the first retry delay; each further retry doubles it.
// Default: 1s.
func WithBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l logger.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWebhook creates a Webhook targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		log:        logger.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Send delivers rows and summary. Non-2xx responses and transport errors
// are retried until the retry budget is spent.
func (w *Webhook) Send(ctx context.Context, rows []extracthtml.Row, summary []extracthtml.SummaryEntry) error {
	if rows == nil {
		rows = []extracthtml.Row{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Payload{Data: rows, Summary: summary}); err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	body := buf.Bytes()

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.log.Warn("webhook request failed", logger.Int("attempt", attempt+1), logger.Error(err))
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.IncCounter(metrics.WebhookTotal, 1, metrics.Labels{"status": "ok"})
			w.log.Info("webhook delivered", logger.Int("rows", len(rows)), logger.Int("attempt", attempt+1))
			return nil
		}
		lastErr = fmt.Errorf("webhook: status %d", resp.StatusCode)
		w.log.Warn("webhook bad status", logger.Int("attempt", attempt+1), logger.Int("status", resp.StatusCode))
	}

	metrics.IncCounter(metrics.WebhookTotal, 1, metrics.Labels{"status": "failed"})
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}

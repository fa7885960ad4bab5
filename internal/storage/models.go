package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inspector/internal/extracthtml"
)

// Template is a named, reusable rule set.
type Template struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Rules     []extracthtml.FieldRule `json:"selectors"`
	CreatedAt time.Time               `json:"createdAt"`
}

// RunRecord is one persisted extraction result.
type RunRecord struct {
	ID        string                     `json:"id"`
	Source    string                     `json:"source"`
	CreatedAt time.Time                  `json:"timestamp"`
	Rows      []extracthtml.Row          `json:"data"`
	Summary   []extracthtml.SummaryEntry `json:"summary"`
}

// RunFromResult converts an extraction result into a record ready to save.
func RunFromResult(res *extracthtml.Result) RunRecord {
	if res == nil {
		return RunRecord{}
	}
	return RunRecord{
		Source:    res.Source,
		CreatedAt: res.Timestamp,
		Rows:      res.Rows,
		Summary:   res.Summary,
	}
}

// Activity log kinds.
const (
	LogInspector  = "inspector"
	LogAuto       = "auto"
	LogPagination = "pagination"
	LogScroll     = "scroll"
	LogTemplate   = "template"
	LogError      = "error"
)

// LogEntry is one activity log line.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"type"`
	Message   string    `json:"message"`
}

// NormalizeName trims name and collapses inner whitespace runs to one space,
// so lookups by name are insensitive to incidental spacing.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// PrepareTemplate validates t and fills its ID and CreatedAt. Backends call
// it before writing.
func PrepareTemplate(t Template, now time.Time) (Template, error) {
	t.Name = NormalizeName(t.Name)
	if t.Name == "" {
		return Template{}, fmt.Errorf("storage: template name is required")
	}
	if len(t.Rules) == 0 {
		return Template{}, fmt.Errorf("storage: template %q: %w", t.Name, extracthtml.ErrNoSelectors)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = now.UTC()
	return t, nil
}

// PrepareRun fills the ID and CreatedAt of r.
func PrepareRun(r RunRecord, now time.Time) RunRecord {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

// PrepareLog fills the ID and Timestamp of e.
func PrepareLog(e LogEntry, now time.Time) (LogEntry, error) {
	if strings.TrimSpace(e.Kind) == "" {
		return LogEntry{}, fmt.Errorf("storage: log entry kind is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// EncodeRules and DecodeRules convert a rule set to and from its stored text.
func EncodeRules(rules []extracthtml.FieldRule) (string, error) {
	b, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("encode rules: %w", err)
	}
	return string(b), nil
}

func DecodeRules(s string) ([]extracthtml.FieldRule, error) {
	var rules []extracthtml.FieldRule
	if err := json.Unmarshal([]byte(s), &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rules, nil
}

// EncodeRunData returns the stored text for the rows and summary of r.
func EncodeRunData(r RunRecord) (rows, summary string, err error) {
	data := r.Rows
	if data == nil {
		data = []extracthtml.Row{}
	}
	rb, err := json.Marshal(data)
	if err != nil {
		return "", "", fmt.Errorf("encode rows: %w", err)
	}
	sum := r.Summary
	if sum == nil {
		sum = []extracthtml.SummaryEntry{}
	}
	sb, err := json.Marshal(sum)
	if err != nil {
		return "", "", fmt.Errorf("encode summary: %w", err)
	}
	return string(rb), string(sb), nil
}

// DecodeRunData fills the rows and summary of r from their stored text.
func DecodeRunData(r *RunRecord, rows, summary string) error {
	if err := json.Unmarshal([]byte(rows), &r.Rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return fmt.Errorf("decode summary: %w", err)
	}
	return nil
}

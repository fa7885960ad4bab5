// Package extracthtml is the selector-driven extraction engine: it resolves
// field rules against a document, extracts one value per matched node and
// aligns the per-field matches into rows.
package extracthtml

import (
	"time"

	"inspector/internal/metrics"
)

// Run performs one extraction pass over doc.
//
// Every rule is resolved independently; a rule that matches nothing (or is
// missing its name or selector) contributes a zero count to the summary and
// no keys to any row. Only an empty rule set is an error.
func Run(doc Document, rules []FieldRule, opts Options) (*Result, error) {
	if len(rules) == 0 {
		metrics.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": "no_selectors"})
		return nil, ErrNoSelectors
	}
	start := time.Now()

	fields := make([]FieldNodes, 0, len(rules))
	summary := make([]SummaryEntry, 0, len(rules))
	for _, rule := range rules {
		var nodes []MatchedNode
		if !rule.inert() {
			nodes = Resolve(doc, rule.Selector)
		}
		fields = append(fields, FieldNodes{Rule: rule, Nodes: nodes})
		summary = append(summary, SummaryEntry{
			Name:     rule.Name,
			Selector: rule.Selector,
			Count:    len(nodes),
			Type:     rule.declaredType(),
			Attr:     optional(rule.Attr),
		})
	}

	res := &Result{
		Rows:      Align(fields, opts),
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	}
	if doc != nil {
		res.Source = doc.URL()
	}

	metrics.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": "ok"})
	metrics.IncCounter(metrics.RowsTotal, float64(len(res.Rows)), nil)
	metrics.ObserveHistogram(metrics.RunDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"status": "ok"})
	return res, nil
}

package extracthtml

import "time"

// ValueType selects how a matched node becomes a value.
type ValueType string

const (
	TypeAuto      ValueType = "auto"
	TypeText      ValueType = "text"
	TypeHTML      ValueType = "html"
	TypeAttribute ValueType = "attribute"
)

// FieldRule is one named extraction instruction.
type FieldRule struct {
	Name     string    `json:"name"`
	Selector string    `json:"selector"`
	Type     ValueType `json:"type,omitempty"` // "" behaves as auto
	Attr     string    `json:"attr,omitempty"` // used when the resolved type is attribute
}

// inert reports whether the rule can never match anything.
func (r FieldRule) inert() bool {
	return r.Name == "" || r.Selector == ""
}

func (r FieldRule) declaredType() ValueType {
	if r.Type == "" {
		return TypeAuto
	}
	return r.Type
}

// RuleFile is the on-disk template format.
type RuleFile struct {
	Name  string      `json:"name,omitempty"`
	Rules []FieldRule `json:"selectors"`
}

// ExtractedField is the value of one field for one row.
type ExtractedField struct {
	Name     string    `json:"name"`
	Type     ValueType `json:"type"`
	Attr     string    `json:"attr,omitempty"`
	Value    string    `json:"value"`
	Selector string    `json:"selector"`
	XPath    string    `json:"xpath"`
}

// FieldMeta is stored under the __meta_<name> shadow key.
type FieldMeta struct {
	Selector string    `json:"selector"`
	XPath    string    `json:"xpath"`
	Attr     *string   `json:"attr"`
	Type     ValueType `json:"type"`
}

// SummaryEntry reports one rule's match count for a pass.
type SummaryEntry struct {
	Name     string    `json:"name"`
	Selector string    `json:"selector"`
	Count    int       `json:"count"`
	Type     ValueType `json:"type"`
	Attr     *string   `json:"attr"`
}

// Options toggle the shadow keys added to each row.
type Options struct {
	IncludeOuterHTML bool `json:"include_outer_html,omitempty"`
	IncludeMetadata  bool `json:"include_metadata,omitempty"`
}

// Result is the output of one extraction pass. It is never modified after
// Run returns it.
type Result struct {
	Rows      []Row          `json:"data"`
	Summary   []SummaryEntry `json:"summary"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

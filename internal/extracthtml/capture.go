package extracthtml

import (
	"time"

	"github.com/google/uuid"

	"inspector/internal/dom"
)

// CaptureOptions override what Capture would otherwise infer.
type CaptureOptions struct {
	Name         string
	Type         ValueType
	Attr         string
	IncludeOuter bool
}

// Capture is the full record of one picked element.
type Capture struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Timestamp  time.Time         `json:"timestamp"`
	Selector   string            `json:"selector"`
	XPath      string            `json:"xpath"`
	CustomName string            `json:"customName"`
	Type       ValueType         `json:"type"`
	Attr       string            `json:"attr,omitempty"`
	Value      string            `json:"value"`
	InnerText  string            `json:"innerText"`
	InnerHTML  string            `json:"innerHTML"`
	OuterHTML  string            `json:"outerHTML,omitempty"`
	Attributes map[string]string `json:"attributes"`
	TagName    string            `json:"tagName"`
}

// CaptureElement records el as it would be shown to the user when picked.
func CaptureElement(doc Document, el *dom.Element, opts CaptureOptions) Capture {
	n := MatchedNode{Element: el, Selector: el.CSSPath(), XPath: el.XPath()}

	name := opts.Name
	if name == "" {
		name = InferName(el)
	}
	if name == "" {
		name = el.Tag()
	}

	f := Extract(n, FieldRule{Name: name, Selector: n.Selector, Type: opts.Type, Attr: opts.Attr})

	c := Capture{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Selector:   n.Selector,
		XPath:      n.XPath,
		CustomName: name,
		Type:       f.Type,
		Attr:       f.Attr,
		Value:      f.Value,
		InnerText:  el.InnerText(),
		InnerHTML:  el.InnerHTML(),
		Attributes: el.Attributes(),
		TagName:    el.Tag(),
	}
	if doc != nil {
		c.URL = doc.URL()
	}
	if opts.IncludeOuter {
		c.OuterHTML = el.OuterHTML()
	}
	return c
}

// ToRule turns a capture into a replayable rule keyed on its CSS path.
func (c Capture) ToRule() FieldRule {
	return FieldRule{Name: c.CustomName, Selector: c.Selector, Type: c.Type, Attr: c.Attr}
}

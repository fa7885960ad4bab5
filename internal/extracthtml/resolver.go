package extracthtml

import "inspector/internal/dom"

// Document is the read-only view the engine queries. *dom.Snapshot
// implements it.
type Document interface {
	QueryAll(selector string) []*dom.Element
	URL() string
}

// MatchedNode is one resolved element together with paths computed from
// its position in the tree, independent of the selector that found it.
type MatchedNode struct {
	Element  *dom.Element
	Selector string
	XPath    string
}

// Resolve returns the nodes matching selector in document order. Empty or
// invalid selectors resolve to nothing.
func Resolve(doc Document, selector string) []MatchedNode {
	if doc == nil || selector == "" {
		return nil
	}
	els := doc.QueryAll(selector)
	if len(els) == 0 {
		return nil
	}

	out := make([]MatchedNode, len(els))
	for i, el := range els {
		out[i] = MatchedNode{Element: el, Selector: el.CSSPath(), XPath: el.XPath()}
	}
	return out
}

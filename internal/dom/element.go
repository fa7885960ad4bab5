package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a read-only handle to one element of a Snapshot.
type Element struct {
	sel  *goquery.Selection
	node *html.Node
}

func newElement(sel *goquery.Selection) *Element {
	return &Element{sel: sel, node: sel.Get(0)}
}

// Node returns the underlying parsed node.
func (e *Element) Node() *html.Node { return e.node }

// Tag returns the lowercase tag name.
func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

// ID returns the id attribute, or "".
func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

// Classes returns the class list in attribute order.
func (e *Element) Classes() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

// Attr returns the named attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Attributes returns a copy of all attributes.
func (e *Element) Attributes() map[string]string {
	out := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		out[key] = a.Val
	}
	return out
}

// InnerHTML returns the serialized children of the element.
func (e *Element) InnerHTML() string {
	s, err := e.sel.Html()
	if err != nil {
		return ""
	}
	return s
}

// OuterHTML returns the serialized element including its own tag.
func (e *Element) OuterHTML() string {
	s, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return ""
	}
	return s
}

// InnerText returns the rendered text of the element, see RenderText.
func (e *Element) InnerText() string {
	return RenderText(e.node)
}

// CSSPath returns a short CSS path identifying the element.
func (e *Element) CSSPath() string { return CSSPath(e.node) }

// XPath returns an absolute XPath identifying the element.
func (e *Element) XPath() string { return XPath(e.node) }

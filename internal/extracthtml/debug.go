package extracthtml

import (
	"fmt"
	"io"
)

// DebugPrintSelector prints every match of selector with its computed paths,
// followed by its rendered text (textOnly) or outer HTML.
func DebugPrintSelector(w io.Writer, doc Document, selector string, textOnly bool) error {
	nodes := Resolve(doc, selector)
	if len(nodes) == 0 {
		_, err := fmt.Fprintf(w, "no matches for %q\n", selector)
		return err
	}

	for i, n := range nodes {
		body := n.Element.OuterHTML()
		if textOnly {
			body = n.Element.InnerText()
		}
		if _, err := fmt.Fprintf(w, "[%d] css: %s\n    xpath: %s\n%s\n\n", i, n.Selector, n.XPath, body); err != nil {
			return err
		}
	}
	return nil
}

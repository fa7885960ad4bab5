package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxCSSPathSegments bounds how far CSSPath walks up the tree.
const maxCSSPathSegments = 6

// CSSPath builds a "tag.class:nth-of-type(k) > ..." path for n.
//
// Elements with an id short-circuit to "#id". Otherwise ancestors are walked
// until one with an id is found (emitted as the leading "#id") or the path
// grows past maxCSSPathSegments. Each segment carries at most two classes and
// an :nth-of-type index only when same-tag siblings exist.
func CSSPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if id := attr(n, "id"); id != "" {
		return "#" + CSSEscape(id)
	}

	var path []string
	for el := n; el != nil && el.Type == html.ElementNode; {
		seg := strings.ToLower(el.Data)
		if classes := strings.Fields(attr(el, "class")); len(classes) > 0 {
			if len(classes) > 2 {
				classes = classes[:2]
			}
			for _, c := range classes {
				seg += "." + CSSEscape(c)
			}
		}
		if pos, total := typeIndex(el); total > 1 {
			seg += fmt.Sprintf(":nth-of-type(%d)", pos)
		}
		path = append([]string{seg}, path...)

		parent := el.Parent
		if parent != nil && parent.Type == html.ElementNode {
			if id := attr(parent, "id"); id != "" {
				path = append([]string{"#" + CSSEscape(id)}, path...)
				break
			}
		}
		el = parent
		if len(path) > maxCSSPathSegments {
			break
		}
	}
	return strings.Join(path, " > ")
}

// XPath builds an absolute "/html/body/div[2]" path for n, or
// "//*[@id='x']" when n has an id.
func XPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if id := attr(n, "id"); id != "" {
		return fmt.Sprintf("//*[@id='%s']", id)
	}

	var parts []string
	for el := n; el != nil && el.Type == html.ElementNode; el = el.Parent {
		index := 1
		for s := el.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == el.Data {
				index++
			}
		}
		part := strings.ToLower(el.Data)
		if index > 1 {
			part = fmt.Sprintf("%s[%d]", part, index)
		}
		parts = append([]string{part}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

// typeIndex returns the 1-based position of n among its same-tag siblings
// and the number of such siblings (n included).
func typeIndex(n *html.Node) (pos, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			pos = total
		}
	}
	return pos, total
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

// CSSEscape escapes s for use as a CSS identifier, following the CSSOM
// serialize-an-identifier algorithm.
func CSSEscape(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 1 && r >= '0' && r <= '9' && runes[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(runes) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

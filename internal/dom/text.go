package dom

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// skippedTags never contribute rendered text.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "title": true, "iframe": true, "object": true,
}

// blockTags start and end on their own line when rendered.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "details": true, "dialog": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "summary": true, "table": true,
	"tbody": true, "thead": true, "tfoot": true, "tr": true, "ul": true,
	"caption": true, "option": true,
}

// RenderText approximates the browser's innerText for n: hidden and
// non-rendered subtrees are skipped, whitespace runs collapse to one space,
// block boundaries and <br> become newlines and table cells are separated by
// tabs. The result is trimmed.
func RenderText(n *html.Node) string {
	if n == nil {
		return ""
	}
	w := &textWriter{}
	switch {
	case n.Type == html.TextNode:
		w.text(n.Data)
	case n.Type == html.ElementNode && strings.EqualFold(n.Data, "pre"):
		w.pre++
		w.children(n)
	default:
		w.children(n)
	}
	return strings.TrimSpace(w.b.String())
}

type textWriter struct {
	b      strings.Builder
	breaks int
	space  bool
	tab    bool
	pre    int
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *textWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	tag := strings.ToLower(n.Data)
	if skippedTags[tag] || isHidden(n) {
		return
	}

	switch tag {
	case "br":
		w.breaks++
		return
	case "td", "th":
		if prevElement(n) != nil {
			w.tab = true
		}
	case "pre":
		w.pre++
		defer func() { w.pre-- }()
	}

	block := blockTags[tag]
	if block {
		w.blockBreak()
	}
	w.children(n)
	if block {
		w.blockBreak()
	}
}

func (w *textWriter) text(s string) {
	if w.pre > 0 {
		if s == "" {
			return
		}
		w.flush()
		w.b.WriteString(s)
		return
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			w.space = true
			continue
		}
		w.flush()
		w.b.WriteRune(r)
	}
}

// flush writes the pending separator before the next visible character.
// Separators at the very start are dropped.
func (w *textWriter) flush() {
	if w.b.Len() > 0 {
		switch {
		case w.breaks > 0:
			w.b.WriteString(strings.Repeat("\n", w.breaks))
		case w.tab:
			w.b.WriteByte('\t')
		case w.space:
			w.b.WriteByte(' ')
		}
	}
	w.breaks, w.space, w.tab = 0, false, false
}

func (w *textWriter) blockBreak() {
	if w.breaks < 1 {
		w.breaks = 1
	}
}

func isHidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

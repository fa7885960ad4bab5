// Package dom models the document the extraction engine reads from.
//
// A Snapshot is a parsed, read-only view of a page at one point in time.
// A Page is the injected capability that produces snapshots and activates
// pagination controls; the engine never owns or mutates the underlying
// document beyond that single permitted side effect.
package dom

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Snapshot is a parsed document plus the location it was taken from.
type Snapshot struct {
	doc     *goquery.Document
	url     string
	takenAt time.Time
}

// Parse reads HTML from r and returns a Snapshot tagged with url.
func Parse(r io.Reader, url string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Snapshot{doc: doc, url: url, takenAt: time.Now().UTC()}, nil
}

// ParseString is Parse for an in-memory HTML string.
func ParseString(src, url string) (*Snapshot, error) {
	return Parse(strings.NewReader(src), url)
}

// URL returns the location the snapshot was taken from (may be empty).
func (s *Snapshot) URL() string {
	if s == nil {
		return ""
	}
	return s.url
}

// TakenAt returns when the snapshot was parsed.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Document exposes the underlying goquery document for read-only helpers.
func (s *Snapshot) Document() *goquery.Document { return s.doc }

// QueryAll returns every element matching selector, in document order.
//
// Selectors starting with "/", "./" or "(" are evaluated as XPath; anything
// else is a CSS selector. An empty or invalid selector yields no elements.
func (s *Snapshot) QueryAll(selector string) []*Element {
	selector = strings.TrimSpace(selector)
	if selector == "" || s == nil || s.doc == nil {
		return nil
	}
	if IsXPath(selector) {
		return s.queryXPath(selector)
	}

	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}

	var out []*Element
	s.doc.FindMatcher(m).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, newElement(sel))
	})
	return out
}

// Query returns the first element matching selector.
func (s *Snapshot) Query(selector string) (*Element, bool) {
	all := s.QueryAll(selector)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

func (s *Snapshot) queryXPath(expr string) []*Element {
	if len(s.doc.Nodes) == 0 {
		return nil
	}
	nodes, err := htmlquery.QueryAll(s.doc.Nodes[0], expr)
	if err != nil {
		return nil
	}

	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		out = append(out, newElement(goquery.NewDocumentFromNode(n).Selection))
	}
	return out
}

// IsXPath reports whether selector should be evaluated as XPath.
func IsXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") ||
		strings.HasPrefix(selector, "./") ||
		strings.HasPrefix(selector, "(")
}

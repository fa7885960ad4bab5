// Package static implements dom.Page over fetched HTML documents.
//
// Activating a control follows its href: the target is resolved against the
// current location, fetched through the Loader and replaces the current
// snapshot. Scrolling cannot reveal anything in a static document.
package static

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"inspector/internal/dom"
)

// Page is a dom.Page backed by server-rendered HTML.
type Page struct {
	loader *Loader

	mu   sync.Mutex
	snap *dom.Snapshot
}

// Open fetches pageURL and returns a Page positioned on it.
func Open(ctx context.Context, loader *Loader, pageURL string) (*Page, error) {
	src, err := loader.Load(ctx, Input{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", pageURL, err)
	}
	return FromHTML(loader, src, pageURL)
}

// FromHTML returns a Page over already-loaded HTML. loader may be nil, in
// which case controls cannot be followed.
func FromHTML(loader *Loader, src, pageURL string) (*Page, error) {
	snap, err := dom.ParseString(src, pageURL)
	if err != nil {
		return nil, err
	}
	return &Page{loader: loader, snap: snap}, nil
}

// Snapshot returns the current document.
func (p *Page) Snapshot(_ context.Context) (*dom.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, nil
}

// Control locates a followable link matching selector.
func (p *Page) Control(_ context.Context, selector string) (dom.Control, error) {
	p.mu.Lock()
	snap := p.snap
	p.mu.Unlock()

	el, ok := snap.Query(selector)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dom.ErrControlNotFound, selector)
	}
	href, _ := el.Attr("href")
	if !followable(href) {
		return nil, fmt.Errorf("%w: %q has no followable href", dom.ErrControlNotFound, selector)
	}
	if p.loader == nil {
		return nil, fmt.Errorf("static: no loader to follow %q", href)
	}

	var base *url.URL
	if snap.URL() != "" {
		base, _ = url.Parse(snap.URL())
	}
	return &link{page: p, target: ResolveHref(base, strings.TrimSpace(href))}, nil
}

// Scroll always fails: a static document has no lazily loaded content.
func (p *Page) Scroll(_ context.Context) error {
	return dom.ErrScrollUnsupported
}

func (p *Page) navigate(ctx context.Context, target string) error {
	src, err := p.loader.Load(ctx, Input{URL: target})
	if err != nil {
		return fmt.Errorf("follow %s: %w", target, err)
	}
	snap, err := dom.ParseString(src, target)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	return nil
}

type link struct {
	page   *Page
	target string
}

func (l *link) Activate(ctx context.Context) error {
	return l.page.navigate(ctx, l.target)
}

// followable reports whether href points at another document.
func followable(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	if h == "" || strings.HasPrefix(h, "#") {
		return false
	}
	return !strings.HasPrefix(h, "javascript:") && !strings.HasPrefix(h, "mailto:")
}

// ResolveHref resolves href against base, returning an absolute URL string.
// If href is invalid, it is returned unchanged.
func ResolveHref(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

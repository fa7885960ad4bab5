package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"inspector/internal/dom"
	"inspector/internal/logger"
)

// Page is a dom.Page over one Chrome tab.
type Page struct {
	mu   sync.Mutex
	page *rod.Page
	log  logger.Logger
}

// Snapshot serializes the live DOM and parses it.
func (p *Page) Snapshot(ctx context.Context) (*dom.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("live: serialize dom: %w", err)
	}

	var pageURL string
	if info, err := p.page.Info(); err == nil {
		pageURL = info.URL
	}
	return dom.ParseString(res.Value.Str(), pageURL)
}

// Control finds the first element matching selector. XPath selectors are
// routed the same way Snapshot.QueryAll routes them.
func (p *Page) Control(ctx context.Context, selector string) (dom.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg := p.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if dom.IsXPath(selector) {
		els, err = pg.ElementsX(selector)
	} else {
		els, err = pg.Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("live: query %q: %w", selector, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", dom.ErrControlNotFound, selector)
	}
	return &button{page: p, el: els[0]}, nil
}

// Scroll moves the viewport down by one window height.
func (p *Page) Scroll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.page.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
		return fmt.Errorf("live: scroll: %w", err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Close()
}

type button struct {
	page *Page
	el   *rod.Element
}

func (b *button) Activate(ctx context.Context) error {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()

	if err := b.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("live: click: %w", err)
	}
	return nil
}

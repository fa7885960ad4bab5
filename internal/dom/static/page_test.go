package static

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"inspector/internal/dom"
)

func pagedServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/list":   `<ul><li>a</li><li>b</li></ul><a class="next" href="/list/2">next</a>`,
		"/list/2": `<ul><li>c</li></ul><a class="next" href="#">next</a>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestPage_FollowControl verifies activating a link replaces the snapshot
// with the linked document.
func TestPage_FollowControl(t *testing.T) {
	t.Parallel()

	srv := pagedServer(t)
	ctx := context.Background()
	p, err := Open(ctx, NewLoader(srv.Client(), 2*time.Second), srv.URL+"/list")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	snap, _ := p.Snapshot(ctx)
	if n := len(snap.QueryAll("li")); n != 2 {
		t.Fatalf("page 1: expected 2 items, got %d", n)
	}

	ctrl, err := p.Control(ctx, "a.next")
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if err := ctrl.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	snap, _ = p.Snapshot(ctx)
	if n := len(snap.QueryAll("li")); n != 1 {
		t.Fatalf("page 2: expected 1 item, got %d", n)
	}
	if snap.URL() != srv.URL+"/list/2" {
		t.Fatalf("page 2 url: %q", snap.URL())
	}

	// The last page links to "#", which cannot be followed.
	if _, err := p.Control(ctx, "a.next"); !errors.Is(err, dom.ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound, got %v", err)
	}
}

func TestPage_ControlMissing(t *testing.T) {
	t.Parallel()

	p, err := FromHTML(nil, `<p>no links</p>`, "https://example.com/")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if _, err := p.Control(context.Background(), "a.next"); !errors.Is(err, dom.ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound, got %v", err)
	}
	if err := p.Scroll(context.Background()); !errors.Is(err, dom.ErrScrollUnsupported) {
		t.Fatalf("expected ErrScrollUnsupported, got %v", err)
	}
}

func TestFollowable(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"":                   false,
		"#":                  false,
		"#top":               false,
		"javascript:void(0)": false,
		"mailto:a@b.c":       false,
		"/page/2":            true,
		"?page=2":            true,
		"https://x.test/2":   true,
	}
	for href, want := range tests {
		if got := followable(href); got != want {
			t.Fatalf("followable(%q): want %v got %v", href, want, got)
		}
	}
}

func TestResolveHref(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.com/a/b?page=1")
	tests := []struct {
		href string
		want string
	}{
		{href: "/x", want: "https://example.com/x"},
		{href: "c", want: "https://example.com/a/c"},
		{href: "?page=2", want: "https://example.com/a/b?page=2"},
		{href: "https://other.test/z", want: "https://other.test/z"},
	}
	for _, tt := range tests {
		if got := ResolveHref(base, tt.href); got != tt.want {
			t.Fatalf("ResolveHref(%q): want %q got %q", tt.href, tt.want, got)
		}
	}
	if got := ResolveHref(nil, "/x"); got != "/x" {
		t.Fatalf("nil base: %q", got)
	}
}

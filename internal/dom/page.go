package dom

import (
	"context"
	"errors"
)

var (
	// ErrControlNotFound is returned by Page.Control when no element matches
	// the control selector (or the match cannot be activated).
	ErrControlNotFound = errors.New("dom: control not found")

	// ErrScrollUnsupported is returned by pages that cannot reveal more
	// content by scrolling (e.g. a fetched static document).
	ErrScrollUnsupported = errors.New("dom: scroll not supported")
)

// Page is the live, externally-owned document the engine reads from.
//
// Implementations serialize their own access; callers must not issue
// overlapping calls on the same Page.
type Page interface {
	// Snapshot captures the current state of the document.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Control locates a pagination control by selector. It returns an error
	// wrapping ErrControlNotFound when nothing matches.
	Control(ctx context.Context, selector string) (Control, error)

	// Scroll advances the viewport by one screen.
	Scroll(ctx context.Context) error
}

// Control is an activatable element, typically a "next page" link or button.
type Control interface {
	Activate(ctx context.Context) error
}

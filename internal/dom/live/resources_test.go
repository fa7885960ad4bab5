package live

import (
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	t.Parallel()

	blocked := map[string]bool{"images": true, "fonts": true, "xhr": true}
	tests := map[string]bool{
		"Image":      true,
		"Font":       true,
		"Stylesheet": false,
		"Media":      false,
		"XHR":        true,
		"Document":   false,
	}
	for typ, want := range tests {
		if got := shouldBlock(blocked, typ); got != want {
			t.Fatalf("shouldBlock(%q): want %v got %v", typ, want, got)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()
	if c.NavigateTimeout != 30*time.Second {
		t.Fatalf("NavigateTimeout: %v", c.NavigateTimeout)
	}
}

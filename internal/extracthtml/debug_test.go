package extracthtml

import (
	"bytes"
	"strings"
	"testing"
)

// TestDebugPrintSelector_TextOnly verifies text mode prints paths and the
// rendered text of each match.
func TestDebugPrintSelector_TextOnly(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<ul><li class="i">  A  </li><li class="i">B</li></ul>`)
	var buf bytes.Buffer

	if err := DebugPrintSelector(&buf, doc, "li.i", true); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}

	want := "[0] css: html > body > ul > li.i:nth-of-type(1)\n    xpath: /html/body/ul/li\nA\n\n" +
		"[1] css: html > body > ul > li.i:nth-of-type(2)\n    xpath: /html/body/ul/li[2]\nB\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\nwant=%q\ngot=%q", want, buf.String())
	}
}

// TestDebugPrintSelector_OuterHTML verifies the non-text mode prints outer HTML.
func TestDebugPrintSelector_OuterHTML(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div id="x"><span>Hi</span></div>`)
	var buf bytes.Buffer

	if err := DebugPrintSelector(&buf, doc, "div#x", false); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `<div id="x"><span>Hi</span></div>`) || !strings.Contains(out, "css: #x") {
		t.Fatalf("unexpected outer html output: %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("expected trailing blank line, got %q", out)
	}
}

func TestDebugPrintSelector_NoMatches(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := DebugPrintSelector(&buf, mustDoc(t, `<p>x</p>`), "table", false); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if buf.String() != "no matches for \"table\"\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

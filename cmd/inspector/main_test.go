package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const listingHTML = `<html><body>
<div class="card"><h2 class="title">Alpha</h2><span class="price">10</span></div>
<div class="card"><h2 class="title">Beta</h2><span class="price">20</span></div>
</body></html>`

const rulesJSON = `{
	"name": "products",
	"selectors": [
		{"name":"title","selector":".title","type":"text"},
		{"name":"price","selector":".price","type":"text"}
	]
}`

type result struct {
	code   int
	stdout string
	stderr string
}

// runCLI invokes run() with its own storage file so tests stay independent.
func runCLI(t *testing.T, db string, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{}, args...)
	if db != "" {
		full = append(full, "--db", db)
	}
	code := run(context.Background(), full, strings.NewReader(stdin), &stdout, &stderr, http.DefaultClient)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeRules(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(rulesJSON), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "inspector.db")
}

func decodeRows(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("stdout is not a JSON array: %v; out=%s", err, out)
	}
	return rows
}

// TestRun_ExtractStdinJSON verifies the "stdin + rules" happy path.
//
// We test via run() (not main()) so the test is fast, deterministic,
// and does not require an OS-level subprocess.
func TestRun_ExtractStdinJSON(t *testing.T) {
	t.Parallel()

	res := runCLI(t, tempDB(t), listingHTML, "extract", "--rules", writeRules(t))
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	rows := decodeRows(t, res.stdout)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %s", len(rows), res.stdout)
	}
	if rows[0]["title"] != "Alpha" || rows[1]["price"] != "20" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestRun_ExtractCSV(t *testing.T) {
	t.Parallel()

	res := runCLI(t, tempDB(t), listingHTML, "extract", "--rules", writeRules(t), "--format", "csv")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	want := "\"title\",\"price\"\n\"Alpha\",\"10\"\n\"Beta\",\"20\"\n"
	if res.stdout != want {
		t.Fatalf("want %q\ngot  %q", want, res.stdout)
	}
}

func TestRun_ExtractMeta(t *testing.T) {
	t.Parallel()

	res := runCLI(t, tempDB(t), listingHTML, "extract", "--rules", writeRules(t), "--meta")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	rows := decodeRows(t, res.stdout)
	meta, ok := rows[0]["__meta_title"].(map[string]any)
	if !ok {
		t.Fatalf("missing __meta_title: %#v", rows[0])
	}
	if meta["selector"] == "" || meta["xpath"] == "" {
		t.Fatalf("meta lacks paths: %#v", meta)
	}
}

func TestRun_ExtractURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, listingHTML)
	}))
	defer srv.Close()

	res := runCLI(t, tempDB(t), "", "extract", "--rules", writeRules(t), "--url", srv.URL)
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	if rows := decodeRows(t, res.stdout); len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestRun_ExtractDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.html", "a.html"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(listingHTML), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	res := runCLI(t, tempDB(t), "", "extract", "--rules", writeRules(t), "--dir", dir)
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	rows := decodeRows(t, res.stdout)
	if len(rows) != 4 || rows[0]["source_file"] != "a.html" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	rules := writeRules(t)
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing_rules", args: []string{"extract"}},
		{name: "bad_format", args: []string{"extract", "--rules", rules, "--format", "xml"}},
		{name: "rules_and_template", args: []string{"extract", "--rules", rules, "--template", "x"}},
		{name: "unknown_flag", args: []string{"extract", "--nope"}},
		{name: "unknown_command", args: []string{"bogus"}},
		{name: "live_without_url", args: []string{"extract", "--rules", rules, "--live"}},
		{name: "dir_with_csv", args: []string{"extract", "--rules", rules, "--dir", ".", "--format", "csv"}},
		{name: "scroll_without_live", args: []string{"paginate", "--rules", rules, "--trigger", "scroll", "--max-pages", "2"}},
		{name: "click_without_control", args: []string{"paginate", "--rules", rules}},
		{name: "select_needs_selector", args: []string{"select"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tempDB(t), listingHTML, tt.args...)
			if res.code != 2 {
				t.Fatalf("expected exit 2, got %d; stderr=%s", res.code, res.stderr)
			}
		})
	}
}

func TestRun_RuntimeErrorExitsOne(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	res := runCLI(t, tempDB(t), "", "extract", "--rules", writeRules(t), "--url", srv.URL)
	if res.code != 1 {
		t.Fatalf("expected exit 1, got %d; stderr=%s", res.code, res.stderr)
	}
	if !strings.Contains(res.stderr, "http status 410") {
		t.Fatalf("stderr lacks status: %s", res.stderr)
	}
}

// pagedServer serves /list/1 .. /list/n; every page but the last links to
// the next one.
func pagedServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page int
		if _, err := fmt.Sscanf(r.URL.Path, "/list/%d", &page); err != nil || page < 1 || page > n {
			http.NotFound(w, r)
			return
		}
		next := ""
		if page < n {
			next = fmt.Sprintf(`<a class="next" href="/list/%d">next</a>`, page+1)
		}
		fmt.Fprintf(w, `<html><body><div class="card"><h2 class="title">item %d</h2><span class="price">%d</span></div>%s</body></html>`,
			page, page*10, next)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestRun_PaginateUntilControlDisappears verifies an unbounded click session
// ends successfully on the last page with rows from every page in order.
func TestRun_PaginateUntilControlDisappears(t *testing.T) {
	t.Parallel()

	srv := pagedServer(t, 3)
	res := runCLI(t, tempDB(t), "", "paginate",
		"--rules", writeRules(t), "--url", srv.URL+"/list/1",
		"--control", "a.next", "--delay", "0s")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	rows := decodeRows(t, res.stdout)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %s", len(rows), res.stdout)
	}
	for i, row := range rows {
		if want := fmt.Sprintf("item %d", i+1); row["title"] != want {
			t.Fatalf("row %d: want %q got %v", i, want, row["title"])
		}
	}
}

func TestRun_PaginateMaxPages(t *testing.T) {
	t.Parallel()

	srv := pagedServer(t, 5)
	res := runCLI(t, tempDB(t), "", "paginate",
		"--rules", writeRules(t), "--url", srv.URL+"/list/1",
		"--control", "a.next", "--delay", "0s", "--max-pages", "2", "--include-current=false")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	rows := decodeRows(t, res.stdout)
	if len(rows) != 2 || rows[0]["title"] != "item 2" || rows[1]["title"] != "item 3" {
		t.Fatalf("unexpected rows: %s", res.stdout)
	}
}

func TestRun_PaginateControlMissingOnFirstStep(t *testing.T) {
	t.Parallel()

	srv := pagedServer(t, 1)
	res := runCLI(t, tempDB(t), "", "paginate",
		"--rules", writeRules(t), "--url", srv.URL+"/list/1",
		"--control", "a.next", "--delay", "0s", "--include-current=false")
	if res.code != 1 {
		t.Fatalf("expected exit 1, got %d; stderr=%s", res.code, res.stderr)
	}
	if !strings.Contains(res.stderr, "CONTROL_NOT_FOUND") {
		t.Fatalf("stderr lacks error code: %s", res.stderr)
	}
}

func TestRun_SelectText(t *testing.T) {
	t.Parallel()

	res := runCLI(t, tempDB(t), listingHTML, "select", ".title", "--text")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "[0] css:") || !strings.Contains(res.stdout, "Alpha\n") || !strings.Contains(res.stdout, "Beta\n") {
		t.Fatalf("unexpected output: %q", res.stdout)
	}
	if strings.Contains(res.stdout, "<h2") {
		t.Fatalf("text mode printed HTML: %q", res.stdout)
	}
}

// TestRun_TemplateLifecycle saves a template, extracts with it and deletes it.
func TestRun_TemplateLifecycle(t *testing.T) {
	t.Parallel()
	db := tempDB(t)

	res := runCLI(t, db, "", "template", "save", "--rules", writeRules(t))
	if res.code != 0 {
		t.Fatalf("save returned %d; stderr=%s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, `saved template "products"`) {
		t.Fatalf("unexpected save output: %q", res.stdout)
	}

	res = runCLI(t, db, "", "template", "list")
	if res.code != 0 || !strings.Contains(res.stdout, "products") {
		t.Fatalf("list: code=%d out=%q stderr=%s", res.code, res.stdout, res.stderr)
	}

	res = runCLI(t, db, "", "template", "show", "products")
	if res.code != 0 {
		t.Fatalf("show returned %d; stderr=%s", res.code, res.stderr)
	}
	var shown struct {
		Name      string           `json:"name"`
		Selectors []map[string]any `json:"selectors"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &shown); err != nil || len(shown.Selectors) != 2 {
		t.Fatalf("show output: %v %q", err, res.stdout)
	}

	res = runCLI(t, db, listingHTML, "extract", "--template", "products")
	if res.code != 0 {
		t.Fatalf("extract returned %d; stderr=%s", res.code, res.stderr)
	}
	if rows := decodeRows(t, res.stdout); len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if res = runCLI(t, db, "", "template", "delete", "products"); res.code != 0 {
		t.Fatalf("delete returned %d; stderr=%s", res.code, res.stderr)
	}
	if res = runCLI(t, db, "", "template", "show", "products"); res.code != 1 {
		t.Fatalf("show after delete: expected exit 1, got %d", res.code)
	}
}

// TestRun_SaveRecordsRunAndActivity verifies --save stores the run and an
// activity entry, and that the run can be exported again.
func TestRun_SaveRecordsRunAndActivity(t *testing.T) {
	t.Parallel()
	db := tempDB(t)

	res := runCLI(t, db, listingHTML, "extract", "--rules", writeRules(t), "--save")
	if res.code != 0 {
		t.Fatalf("extract returned %d; stderr=%s", res.code, res.stderr)
	}

	res = runCLI(t, db, "", "logs", "--json")
	if res.code != 0 {
		t.Fatalf("logs returned %d; stderr=%s", res.code, res.stderr)
	}
	var entries []struct {
		Kind    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &entries); err != nil || len(entries) != 1 {
		t.Fatalf("logs output: %v %q", err, res.stdout)
	}
	if entries[0].Kind != "auto" || entries[0].Message != "scrape products: 2 fields, 2 rows" {
		t.Fatalf("unexpected entry: %#v", entries[0])
	}

	res = runCLI(t, db, "", "runs", "list")
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if res.code != 0 || len(lines) != 2 {
		t.Fatalf("runs list: code=%d out=%q", res.code, res.stdout)
	}
	id := strings.Fields(lines[1])[0]

	res = runCLI(t, db, "", "runs", "export", id, "--format", "csv")
	if res.code != 0 || !strings.HasPrefix(res.stdout, "\"title\",\"price\"\n") {
		t.Fatalf("runs export: code=%d out=%q stderr=%s", res.code, res.stdout, res.stderr)
	}

	if res = runCLI(t, db, "", "logs", "--clear"); res.code != 0 {
		t.Fatalf("logs --clear returned %d", res.code)
	}
	if res = runCLI(t, db, "", "logs"); res.code != 0 || res.stdout != "" {
		t.Fatalf("logs after clear: code=%d out=%q", res.code, res.stdout)
	}
}

func TestRun_Webhook(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := runCLI(t, tempDB(t), listingHTML, "extract", "--rules", writeRules(t), "--webhook", srv.URL)
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	data, _ := body["data"].([]any)
	summary, _ := body["summary"].([]any)
	if len(data) != 2 || len(summary) != 2 {
		t.Fatalf("unexpected webhook payload: %#v", body)
	}
}

func TestRun_SelectAsRules(t *testing.T) {
	t.Parallel()

	res := runCLI(t, tempDB(t), listingHTML, "select", ".title", "--as-rules")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	var rf struct {
		Selectors []struct {
			Name     string `json:"name"`
			Selector string `json:"selector"`
			Type     string `json:"type"`
		} `json:"selectors"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &rf); err != nil {
		t.Fatalf("decode: %v; out=%s", err, res.stdout)
	}
	if len(rf.Selectors) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rf.Selectors))
	}
	if rf.Selectors[0].Name != "alpha" || rf.Selectors[1].Name != "beta" || rf.Selectors[0].Type != "text" {
		t.Fatalf("unexpected rules: %#v", rf.Selectors)
	}
	if rf.Selectors[0].Selector == rf.Selectors[1].Selector {
		t.Fatalf("captured selectors should differ per element: %q", rf.Selectors[0].Selector)
	}
}

func TestRun_SelectCapture(t *testing.T) {
	t.Parallel()

	res := runCLI(t, tempDB(t), listingHTML, "select", ".price", "--capture")
	if res.code != 0 {
		t.Fatalf("run returned %d; stderr=%s", res.code, res.stderr)
	}
	var caps []map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &caps); err != nil || len(caps) != 2 {
		t.Fatalf("decode: %v; out=%s", err, res.stdout)
	}
	if caps[1]["value"] != "20" || caps[1]["tagName"] != "span" {
		t.Fatalf("unexpected capture: %#v", caps[1])
	}
	if _, ok := caps[1]["outerHTML"]; ok {
		t.Fatalf("outerHTML present without --outer")
	}
}

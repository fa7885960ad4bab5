// Command inspector extracts rows of named fields from web pages using CSS
// or XPath selector rules, optionally following pagination.
//
// Usage (fetch URL):
//
//	inspector extract --rules rules.json --url "https://example.com/list"
//
// Usage (stdin, CSV out):
//
//	cat page.html | inspector extract --rules rules.json --format csv
//
// Usage (saved template, live browser, pagination):
//
//	inspector paginate --template products --url "https://example.com/list" --live --control "a.next" --max-pages 5
//
// Debug (print matches for a selector):
//
//	cat page.html | inspector select "div.card h2" --text
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(
		ctx,
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	)
	stop()
	os.Exit(code)
}

// run is split out from main so we can unit test the command without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	a := newApp(stdin, stdout, stderr, httpClient)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	if isUsage(err) {
		return 2
	}
	return 1
}

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func isUsage(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports unknown subcommands as plain errors.
	return strings.HasPrefix(err.Error(), "unknown command")
}

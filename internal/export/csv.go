// Package export serializes extracted rows and delivers them downstream.
package export

import (
	"strings"

	"inspector/internal/extracthtml"
)

// Headers returns the union of non-shadow keys across rows, in the order
// they were first seen.
func Headers(rows []extracthtml.Row) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		for _, k := range r.FieldKeys() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// ToCSV renders rows with a header line. Every field is quoted, embedded
// quotes are doubled, missing keys become "" and lines are joined with
// "\n" without a trailing newline. No rows yields "".
func ToCSV(rows []extracthtml.Row) string {
	if len(rows) == 0 {
		return ""
	}
	headers := Headers(rows)

	var b strings.Builder
	writeLine(&b, headers)
	for _, r := range rows {
		b.WriteByte('\n')
		vals := make([]string, len(headers))
		for i, h := range headers {
			vals[i], _ = r.Value(h)
		}
		writeLine(&b, vals)
	}
	return b.String()
}

func writeLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

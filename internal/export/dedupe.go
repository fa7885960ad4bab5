package export

import (
	"crypto/sha256"
	"sort"
	"strings"

	"inspector/internal/extracthtml"
)

// Dedupe drops rows whose non-shadow fields repeat an earlier row exactly.
// The first occurrence is kept and order is preserved.
func Dedupe(rows []extracthtml.Row) []extracthtml.Row {
	seen := make(map[[sha256.Size]byte]bool, len(rows))
	out := make([]extracthtml.Row, 0, len(rows))
	for _, r := range rows {
		k := RowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// RowKey hashes a row's fields in sorted key order as key=value pairs
// separated by the ASCII unit separator.
func RowKey(r extracthtml.Row) [sha256.Size]byte {
	keys := r.FieldKeys()
	sort.Strings(keys)

	var b strings.Builder
	b.Grow(len(keys) * 24)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		v, _ := r.Value(k)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return sha256.Sum256([]byte(b.String()))
}

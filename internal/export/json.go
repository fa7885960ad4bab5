package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"inspector/internal/extracthtml"
)

// ToJSON renders rows as an indented JSON array without HTML escaping.
func ToJSON(rows []extracthtml.Row) ([]byte, error) {
	if rows == nil {
		rows = []extracthtml.Row{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

package extracthtml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	metaPrefix  = "__meta_"
	outerPrefix = "__outer_"
)

// IsShadowKey reports whether key carries per-field metadata rather than a
// field value. Shadow keys never become CSV columns.
func IsShadowKey(key string) bool {
	return strings.HasPrefix(key, metaPrefix) || strings.HasPrefix(key, outerPrefix)
}

// MetaKey returns the shadow key holding name's FieldMeta.
func MetaKey(name string) string { return metaPrefix + name }

// OuterKey returns the shadow key holding name's outer HTML.
func OuterKey(name string) string { return outerPrefix + name }

// Row maps field names to values, remembering the order keys were first set.
// Field values are strings; shadow keys may hold other JSON values.
type Row struct {
	keys []string
	vals map[string]any
}

// NewRow returns an empty row.
func NewRow() Row {
	return Row{vals: make(map[string]any)}
}

// Set stores v under key. Setting an existing key replaces its value and
// keeps its original position.
func (r *Row) Set(key string, v any) {
	if r.vals == nil {
		r.vals = make(map[string]any)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

// Get returns the raw value stored under key.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.vals[key]
	return v, ok
}

// Value returns key's value rendered as a string.
func (r Row) Value(key string) (string, bool) {
	v, ok := r.vals[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Keys returns every key in insertion order.
func (r Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// FieldKeys returns the non-shadow keys in insertion order.
func (r Row) FieldKeys() []string {
	out := make([]string, 0, len(r.keys))
	for _, k := range r.keys {
		if !IsShadowKey(k) {
			out = append(out, k)
		}
	}
	return out
}

// Len is the number of keys, shadow keys included.
func (r Row) Len() int { return len(r.keys) }

// Clone returns a copy that shares no key slice or map with r.
func (r Row) Clone() Row {
	c := Row{keys: append([]string(nil), r.keys...), vals: make(map[string]any, len(r.vals))}
	for k, v := range r.vals {
		c.vals[k] = v
	}
	return c
}

// MarshalJSON writes the row as an object with keys in insertion order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		vb, err := marshalNoEscape(r.vals[k])
		if err != nil {
			return nil, fmt.Errorf("row key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping key order. String values stay
// strings; anything else is decoded generically.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object")
	}

	*r = NewRow()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row key %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

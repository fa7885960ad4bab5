package extracthtml

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"inspector/internal/dom"
)

// typeRule is one row of the auto type inference table.
type typeRule struct {
	match func(el *dom.Element, rule FieldRule) bool
	typ   ValueType
}

// typeInference is consulted in order when a rule's type is auto. The first
// matching row wins; anything left over is text.
var typeInference = []typeRule{
	{match: func(_ *dom.Element, r FieldRule) bool { return r.Attr != "" }, typ: TypeAttribute},
	{match: tagIn("img", "video", "audio", "source"), typ: TypeAttribute},
}

// attrProbe is one row of the attribute inference table.
type attrProbe struct {
	tag  string // empty matches any tag
	attr string
}

// attrProbes picks the attribute for attribute-typed rules without one.
// A probe matches when the tag fits and the attribute is non-empty.
var attrProbes = []attrProbe{
	{tag: "img", attr: "src"},
	{tag: "a", attr: "href"},
	{attr: "data-value"},
	{attr: "content"},
}

const defaultAttr = "href"

func tagIn(tags ...string) func(*dom.Element, FieldRule) bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return func(el *dom.Element, _ FieldRule) bool { return set[el.Tag()] }
}

// ResolveType returns the concrete value type for rule applied to el.
func ResolveType(el *dom.Element, rule FieldRule) ValueType {
	if t := rule.declaredType(); t != TypeAuto {
		return t
	}
	for _, row := range typeInference {
		if row.match(el, rule) {
			return row.typ
		}
	}
	return TypeText
}

// ResolveAttr returns the attribute an attribute-typed rule reads from el.
func ResolveAttr(el *dom.Element, rule FieldRule) string {
	if rule.Attr != "" {
		return rule.Attr
	}
	for _, p := range attrProbes {
		if p.tag != "" && el.Tag() != p.tag {
			continue
		}
		if v, ok := el.Attr(p.attr); ok && v != "" {
			return p.attr
		}
	}
	return defaultAttr
}

// Extract computes the value of rule for one matched node. The node is
// only read.
func Extract(n MatchedNode, rule FieldRule) ExtractedField {
	el := n.Element
	f := ExtractedField{
		Name:     rule.Name,
		Type:     ResolveType(el, rule),
		Selector: n.Selector,
		XPath:    n.XPath,
	}

	switch f.Type {
	case TypeHTML:
		f.Value = strings.TrimSpace(el.InnerHTML())
	case TypeAttribute:
		f.Attr = ResolveAttr(el, rule)
		f.Value, _ = el.Attr(f.Attr)
	default:
		f.Type = TypeText
		f.Value = el.InnerText()
	}
	return f
}

// nameAttrs are label-like attributes checked first by InferName.
var nameAttrs = []string{"aria-label", "data-name", "name"}

const maxNameText = 30

// InferName suggests a field name for el. It returns "" when nothing
// usable is found; callers then fall back to the tag name.
func InferName(el *dom.Element) string {
	for _, a := range nameAttrs {
		if v, ok := el.Attr(a); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if id := el.ID(); id != "" {
		return id
	}
	if text := el.InnerText(); text != "" && len([]rune(text)) <= maxNameText {
		if slug := Slugify(text); slug != "" {
			return slug
		}
	}
	if cls := el.Classes(); len(cls) > 0 {
		return cls[0]
	}
	return ""
}

// Slugify lowercases s, folds diacritics, turns whitespace runs into "_"
// and drops everything outside [a-z0-9_].
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
		default:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte('_')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

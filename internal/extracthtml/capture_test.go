package extracthtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureElement(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div id="grid"><img class="thumb" src="/i/1.jpg" alt="One"></div>`)
	el, ok := doc.Query("img")
	require.True(t, ok)

	c := CaptureElement(doc, el, CaptureOptions{IncludeOuter: true})
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "https://shop.test/list", c.URL)
	assert.Equal(t, "#grid > img.thumb", c.Selector)
	assert.Equal(t, "thumb", c.CustomName)
	assert.Equal(t, TypeAttribute, c.Type)
	assert.Equal(t, "src", c.Attr)
	assert.Equal(t, "/i/1.jpg", c.Value)
	assert.Equal(t, "img", c.TagName)
	assert.Equal(t, "One", c.Attributes["alt"])
	assert.Contains(t, c.OuterHTML, `src="/i/1.jpg"`)

	rule := c.ToRule()
	assert.Equal(t, FieldRule{Name: "thumb", Selector: "#grid > img.thumb", Type: TypeAttribute, Attr: "src"}, rule)

	// Replaying the rule finds the same element.
	res, err := Run(doc, []FieldRule{rule}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	v, _ := res.Rows[0].Value("thumb")
	assert.Equal(t, "/i/1.jpg", v)
}

func TestCaptureElement_Overrides(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<p>   </p>`)
	el, ok := doc.Query("p")
	require.True(t, ok)

	c := CaptureElement(doc, el, CaptureOptions{})
	assert.Equal(t, "p", c.CustomName, "falls back to tag name")
	assert.Empty(t, c.OuterHTML)

	c = CaptureElement(doc, el, CaptureOptions{Name: "para", Type: TypeHTML})
	assert.Equal(t, "para", c.CustomName)
	assert.Equal(t, TypeHTML, c.Type)
}

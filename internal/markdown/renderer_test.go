package markdown

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	renderer := NewRenderer()
	require.NotNil(t, renderer)
	require.NotNil(t, renderer.md)
	require.NotNil(t, renderer.sanitizer)
}

func TestRenderer_RenderHTML_BasicMarkdown(t *testing.T) {
	renderer := NewRenderer()
	var buf bytes.Buffer

	content := "# Hello World\n\nThis is a **test**."
	err := renderer.RenderHTML(&buf, content)
	require.NoError(t, err)

	result := buf.String()
	assert.Contains(t, result, "<h1")
	assert.Contains(t, result, "Hello World")
	assert.Contains(t, result, "<strong>test</strong>")
}

func TestRenderer_RenderString_GitHubFlavoredMarkdown(t *testing.T) {
	renderer := NewRenderer()

	content := "| A | B |\n|---|---|\n| 1 | 2 |"
	result, err := renderer.RenderString(content)
	require.NoError(t, err)

	assert.Contains(t, result, "<table>")
	assert.Contains(t, result, "<td>1</td>")
}

func TestRenderer_RenderString_StripsScripts(t *testing.T) {
	renderer := NewRenderer()

	result, err := renderer.RenderString("hello <script>alert(1)</script> world")
	require.NoError(t, err)

	assert.NotContains(t, result, "<script>")
	assert.Contains(t, result, "hello")
}

func TestRenderer_Sanitize(t *testing.T) {
	renderer := NewRenderer()

	clean := renderer.Sanitize(`<p onclick="evil()">ok</p><script>bad()</script>`)
	assert.NotContains(t, clean, "onclick")
	assert.NotContains(t, clean, "script")
	assert.Contains(t, clean, "<p>ok</p>")
}

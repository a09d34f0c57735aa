// Package markdown converts markdown to sanitized HTML for plugins that want
// to emit rich text without shipping their own renderer.
package markdown

import (
	"bytes"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer handles the conversion of markdown to other formats.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewRenderer creates a new instance of the Markdown Renderer.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	sanitizer := bluemonday.UGCPolicy()

	return &Renderer{
		md:        md,
		sanitizer: sanitizer,
	}
}

// RenderHTML converts markdown content to HTML, sanitizes it, and writes it
// to the writer.
func (r *Renderer) RenderHTML(w io.Writer, content string) error {
	var buf bytes.Buffer

	err := r.md.Convert([]byte(content), &buf)
	if err != nil {
		return err
	}

	safeHTML := r.sanitizer.SanitizeBytes(buf.Bytes())

	_, err = w.Write(safeHTML)

	return err
}

// RenderString converts markdown content to sanitized HTML.
func (r *Renderer) RenderString(content string) (string, error) {
	var buf bytes.Buffer

	err := r.RenderHTML(&buf, content)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Sanitize strips unsafe markup from untrusted HTML.
func (r *Renderer) Sanitize(dirty string) string {
	return r.sanitizer.Sanitize(dirty)
}

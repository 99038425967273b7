// Package render turns transcript text into safe HTML.
package render

import (
	"bytes"
	"html"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown converts message content to sanitized HTML.
type Markdown struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// Option configures a Markdown renderer.
type Option func(*markdownConfig)

type markdownConfig struct {
	highlightStyle string
}

// WithHighlighting enables code block highlighting with a chroma style.
func WithHighlighting(style string) Option {
	return func(c *markdownConfig) {
		c.highlightStyle = style
	}
}

// NewMarkdown builds a GFM renderer with a UGC sanitizer.
func NewMarkdown(opts ...Option) *Markdown {
	cfg := &markdownConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	extensions := []goldmark.Extender{extension.GFM}
	if cfg.highlightStyle != "" {
		extensions = append(extensions, highlighting.NewHighlighting(
			highlighting.WithStyle(cfg.highlightStyle),
		))
	}

	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extensions...),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
				gmhtml.WithXHTML(),
			),
		),
		sanitizer: newSanitizer(),
	}
}

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// goldmark-highlighting emits inline styles and classes on code blocks.
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span", "div")
	p.AllowAttrs("style").OnElements("pre", "span")
	return p
}

// Convert renders markdown and sanitizes the result.
func (m *Markdown) Convert(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return m.sanitizer.Sanitize(buf.String()), nil
}

// HTML renders markdown for templates. Conversion failures fall back to
// escaped preformatted text.
func (m *Markdown) HTML(markdown string) template.HTML {
	out, err := m.Convert(markdown)
	if err != nil {
		return template.HTML("<pre>" + html.EscapeString(markdown) + "</pre>")
	}
	return template.HTML(out)
}

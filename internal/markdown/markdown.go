// Package markdown renders comment bodies to HTML that is safe to embed.
package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

type Processor struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Processor {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(goldhtml.WithHardWraps()),
	)

	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &Processor{md: md, policy: p}
}

// Render converts markdown to sanitized HTML. Raw HTML in the input is never
// passed through. If conversion fails the escaped plain text is returned.
func (p *Processor) Render(text string) string {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(text), &buf); err != nil {
		return Escape(text)
	}
	return strings.TrimSpace(p.policy.Sanitize(buf.String()))
}

// Escape renders text without markdown, keeping line breaks.
func Escape(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

package core

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// SanitizerPolicyVersion changes whenever either allow-list below changes.
const SanitizerPolicyVersion = 1

// IngestAllowedTags is the ingestion allow-list: nothing survives.
var IngestAllowedTags = []string{}

// RenderAllowedTags is the render allow-list. No attribute is allowed on any of them.
var RenderAllowedTags = []string{
	"p", "br", "ul", "li", "ol", "strong", "bold", "i", "em",
	"h1", "h2", "h3", "h4", "h5", "h6",
}

var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// ContentSanitizer owns both sanitizing pipelines: StripAll before storage and
// RenderMarkup before display. Each one alone keeps markup injection out.
type ContentSanitizer struct {
	ingest   *bluemonday.Policy
	render   *bluemonday.Policy
	markdown goldmark.Markdown
}

func NewContentSanitizer() *ContentSanitizer {
	ingest := bluemonday.NewPolicy()
	if len(IngestAllowedTags) > 0 {
		ingest.AllowElements(IngestAllowedTags...)
	}

	render := bluemonday.NewPolicy()
	render.AllowElements(RenderAllowedTags...)

	md := goldmark.New(
		// raw HTML passes through goldmark so the render allow-list decides what stays
		goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithUnsafe()),
	)
	return &ContentSanitizer{ingest: ingest, render: render, markdown: md}
}

// StripAll trims text and removes every tag and attribute. Script and style
// contents are dropped with their tags. Entities are decoded afterwards so
// quotes and ampersands are stored as typed; only angle brackets stay escaped,
// which keeps the stored value free of tags.
func (s *ContentSanitizer) StripAll(text string) string {
	cleaned := s.ingest.Sanitize(strings.TrimSpace(text))
	return strings.TrimSpace(angleEscaper.Replace(html.UnescapeString(cleaned)))
}

// RenderMarkup converts markdown to HTML and filters it through the render allow-list.
func (s *ContentSanitizer) RenderMarkup(body string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(body), &buf); err != nil {
		// Fall back to the escaped source rather than failing the page.
		return s.render.Sanitize("<p>" + html.EscapeString(body) + "</p>")
	}
	return s.render.Sanitize(buf.String())
}

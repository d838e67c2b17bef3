package canonical

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	blankLines    = regexp.MustCompile(`\n\s*\n`)
	blockClosings = regexp.MustCompile(`(?i)</(p|div|li|blockquote|h[1-6])>|<br\s*/?>`)
)

// StripHTML removes markup and entities, leaving collapsed plain text.
func StripHTML(s string) string {
	s = blockClosings.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, "")
	return CollapseSpace(html.UnescapeString(s))
}

// Paragraphs renders plain text as escaped <p> blocks. Single newlines become
// <br>. The output depends only on the input.
func Paragraphs(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range blankLines.Split(text, -1) {
		lines := strings.Split(strings.TrimSpace(para), "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(line))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// Image renders an <img> tag with escaped attributes.
func Image(src, alt string) string {
	return fmt.Sprintf(`<img src="%s" alt="%s" loading="lazy">`, html.EscapeString(src), html.EscapeString(alt))
}

// LinkCard renders a link preview card.
func LinkCard(href, title, description, thumb string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<a class="link-card" href="%s">`, html.EscapeString(href))
	if thumb != "" {
		b.WriteString(Image(thumb, title))
	}
	fmt.Fprintf(&b, `<strong>%s</strong>`, html.EscapeString(title))
	if description != "" {
		fmt.Fprintf(&b, `<span>%s</span>`, html.EscapeString(description))
	}
	b.WriteString(`</a>`)
	return b.String()
}

// Blockquote renders quoted text, optionally followed by a note.
func Blockquote(text, note string) string {
	var b strings.Builder
	b.WriteString("<blockquote>")
	b.WriteString(Paragraphs(text))
	b.WriteString("</blockquote>")
	if note = strings.TrimSpace(note); note != "" {
		fmt.Fprintf(&b, `<p class="note">%s</p>`, html.EscapeString(note))
	}
	return b.String()
}

// RenderMarkdown converts markdown (release notes) to HTML. Raw HTML in the
// source is not passed through.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

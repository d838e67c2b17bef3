package publish

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/classify"
	"timeline_sync/internal/domain"
)

const descriptionLength = 200

// RSSGenerator renders an RSS 2.0 channel by hand so element order and
// indentation stay stable for diffing.
type RSSGenerator struct {
	channel Channel
}

func NewRSSGenerator(channel Channel) *RSSGenerator {
	channel.SiteURL = strings.TrimRight(channel.SiteURL, "/")
	return &RSSGenerator{channel: channel}
}

func (g *RSSGenerator) Run(entries []domain.Entry, now time.Time) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", g.channel.Title, 4)
	g.writeElement(&buf, "link", g.channel.SiteURL, 4)
	g.writeElement(&buf, "description", g.channel.Description, 4)
	if g.channel.SiteURL != "" {
		fmt.Fprintf(&buf, "    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			escape(g.channel.SiteURL+"/"+RSSFile))
	}
	g.writeElement(&buf, "language", g.channel.Language, 4)
	g.writeElement(&buf, "lastBuildDate", now.UTC().Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", "timeline-sync", 4)

	for _, e := range entries {
		g.writeItem(&buf, e)
	}

	buf.WriteString("  </channel>\n</rss>\n")
	return buf.String()
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, e domain.Entry) {
	display := classify.DisplayName(e.Type)

	buf.WriteString("    <item>\n")
	buf.WriteString("      <guid isPermaLink=\"false\">")
	_ = xml.EscapeText(buf, []byte(e.ID))
	buf.WriteString("</guid>\n")
	g.writeElement(buf, "title", fmt.Sprintf("[%s] %s", display, e.Title), 6)
	g.writeElement(buf, "link", g.link(e), 6)
	g.writeElement(buf, "description", description(e), 6)
	g.writeElement(buf, "pubDate", e.Timestamp.UTC().Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", e.Author, 6)
	g.writeElement(buf, "category", e.Type, 6)
	if display != e.Type {
		g.writeElement(buf, "category", display, 6)
	}
	buf.WriteString("    </item>\n")
}

// link points blog posts at the site's own page for them.
func (g *RSSGenerator) link(e domain.Entry) string {
	if e.Type == domain.TypeBlog && g.channel.SiteURL != "" {
		return g.channel.SiteURL + "/blog/" + e.NativeID()
	}
	if e.URL != "" {
		return e.URL
	}
	return g.channel.SiteURL
}

func description(e domain.Entry) string {
	if e.ContentHTML == "" {
		return e.Summary
	}
	runes := []rune(canonical.StripHTML(e.ContentHTML))
	if len(runes) > descriptionLength {
		return string(runes[:descriptionLength]) + "..."
	}
	return string(runes)
}

func (g *RSSGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}
	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<" + tag + ">")
	_ = xml.EscapeText(buf, []byte(content))
	buf.WriteString("</" + tag + ">\n")
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

package publish

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"timeline_sync/internal/domain"
	"timeline_sync/internal/storage/jsonfile"
)

const (
	TimelineFile = "timeline.json"
	APIFile      = "api/timeline.json"
	RSSFile      = "rss.xml"
)

// Meta describes the published timeline.
type Meta struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Site        string    `json:"site"`
	TotalItems  int       `json:"total_items"`
	GeneratedAt time.Time `json:"generated_at"`
	Types       []string  `json:"types"`
}

// APIDocument is the body of api/timeline.json.
type APIDocument struct {
	Meta  Meta           `json:"meta"`
	Items []domain.Entry `json:"items"`
}

type Channel struct {
	Title       string
	Description string
	SiteURL     string
	Language    string
	// MaxItems caps the RSS channel only; zero keeps every entry.
	MaxItems int
}

// Writer renders the timeline documents into an output directory.
type Writer struct {
	channel Channel
	rss     *RSSGenerator
}

func NewWriter(channel Channel) *Writer {
	return &Writer{
		channel: channel,
		rss:     NewRSSGenerator(channel),
	}
}

// WriteAll writes timeline.json, api/timeline.json and rss.xml under dir.
func (w *Writer) WriteAll(dir string, entries []domain.Entry, now time.Time) error {
	if entries == nil {
		entries = []domain.Entry{}
	}

	if err := writeJSON(filepath.Join(dir, TimelineFile), entries); err != nil {
		return fmt.Errorf("write %s: %w", TimelineFile, err)
	}

	doc := APIDocument{
		Meta: Meta{
			Title:       w.channel.Title,
			Description: w.channel.Description,
			Site:        w.channel.SiteURL,
			TotalItems:  len(entries),
			GeneratedAt: now.UTC(),
			Types:       Types(entries),
		},
		Items: entries,
	}
	if err := writeJSON(filepath.Join(dir, filepath.FromSlash(APIFile)), doc); err != nil {
		return fmt.Errorf("write %s: %w", APIFile, err)
	}

	items := entries
	if w.channel.MaxItems > 0 && len(items) > w.channel.MaxItems {
		items = items[:w.channel.MaxItems]
	}
	if err := jsonfile.WriteAtomic(filepath.Join(dir, RSSFile), []byte(w.rss.Run(items, now))); err != nil {
		return fmt.Errorf("write %s: %w", RSSFile, err)
	}
	return nil
}

// Types lists the distinct entry types in first-seen order.
func Types(entries []domain.Entry) []string {
	return lo.Uniq(lo.Map(entries, func(e domain.Entry, _ int) string { return e.Type }))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return jsonfile.WriteAtomic(path, append(data, '\n'))
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry types produced by the source adapters. TypePrimer is only ever
// assigned by the classifier.
const (
	TypeBluesky    = "bluesky"
	TypeSaved      = "saved"
	TypePrimer     = "primer"
	TypeRelease    = "release"
	TypeWikipedia  = "wikipedia"
	TypeBlog       = "blog"
	TypeHackerNews = "hackernews"
)

var ErrInvalidEntry = errors.New("invalid entry")

// Entry is the canonical timeline record shared by every source.
type Entry struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Source       string         `json:"source,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary,omitempty"`
	URL          string         `json:"url,omitempty"`
	CanonicalURL string         `json:"canonical_url,omitempty"`
	Author       string         `json:"author,omitempty"`
	Tags         []string       `json:"tags"`
	Media        []Media        `json:"media,omitempty"`
	ContentHTML  string         `json:"content_html,omitempty"`
	ContentText  string         `json:"content_text,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type Media struct {
	Type      string `json:"type"` // "image" or "video"
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// NewID builds the "<source-type>:<native-id>" identity.
func NewID(sourceType, nativeID string) string {
	return sourceType + ":" + nativeID
}

// NativeID returns the part of the id after the source-type prefix.
func (e *Entry) NativeID() string {
	_, native, found := strings.Cut(e.ID, ":")
	if !found {
		return e.ID
	}
	return native
}

// Normalize fills the canonical URL fallbacks and guarantees a non-nil tag slice.
func (e *Entry) Normalize() {
	if e.CanonicalURL == "" {
		e.CanonicalURL = e.URL
	}
	if e.CanonicalURL == "" {
		e.CanonicalURL = e.ID
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.Timestamp = e.Timestamp.UTC()
}

// Validate rejects entries that must never reach a store.
func (e *Entry) Validate() error {
	if e.ID == "" || !strings.Contains(e.ID, ":") {
		return fmt.Errorf("%w: malformed id %q", ErrInvalidEntry, e.ID)
	}
	if e.Type == "" {
		return fmt.Errorf("%w: %s has no type", ErrInvalidEntry, e.ID)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s has no timestamp", ErrInvalidEntry, e.ID)
	}
	return nil
}

// ParseTimestamp accepts the RFC 3339 variants the platforms emit.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidEntry)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable timestamp %q", ErrInvalidEntry, value)
}

// Package blog syncs posts from the site's own RSS or Atom feed.
package blog

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/source"
)

const (
	SourceID   = "blog"
	SourceName = "Blog"

	summaryLength = 280
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

type Config struct {
	FeedURL string
	SiteURL string
}

// Source reads the whole feed as one page. Feeds carry no paging, so the
// engine's watermark does the stopping.
type Source struct {
	client  *source.Client
	parser  *gofeed.Parser
	feedURL string
	siteURL string
	logger  *slog.Logger
}

// New creates a blog feed source.
func New(cfg Config, client *source.Client, logger *slog.Logger) *Source {
	return &Source{
		client:  client,
		parser:  gofeed.NewParser(),
		feedURL: cfg.FeedURL,
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
		logger:  logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// Strategy is watermark based; feeds carry no cursor.
func (s *Source) Strategy() domain.Strategy {
	return domain.StrategyWatermark
}

// FetchPage fetches the whole feed as one page, newest first.
func (s *Source) FetchPage(ctx context.Context, _ domain.Checkpoint, _ string) (domain.Page[*gofeed.Item], error) {
	if s.feedURL == "" {
		return domain.Page[*gofeed.Item]{}, fmt.Errorf("blog feed url: %w", domain.ErrMissingCredential)
	}

	data, err := s.client.GetBody(ctx, s.feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9",
	})
	if err != nil {
		return domain.Page[*gofeed.Item]{}, fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := s.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return domain.Page[*gofeed.Item]{}, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]*gofeed.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item != nil {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return published(items[i]).After(published(items[j]))
	})

	return domain.Page[*gofeed.Item]{Records: items}, nil
}

// ToEntry converts a feed item into a blog entry.
func (s *Source) ToEntry(_ context.Context, item *gofeed.Item) (domain.Entry, error) {
	slug := Slug(item)
	if slug == "" {
		return domain.Entry{}, fmt.Errorf("%w: feed item without link or title", domain.ErrInvalidEntry)
	}
	ts := published(item)
	if ts.IsZero() {
		return domain.Entry{}, fmt.Errorf("%w: post %s has no date", domain.ErrInvalidEntry, slug)
	}

	body := cmp.Or(item.Content, item.Description)
	text := canonical.StripHTML(body)
	summary := canonical.StripHTML(item.Description)
	if summary == "" {
		summary = text
	}

	title := canonical.CollapseSpace(item.Title)
	if title == "" {
		title = canonical.DeriveTitle(text, 80)
	}

	link := item.Link
	if s.siteURL != "" {
		link = s.siteURL + "/blog/" + slug
	}

	var author string
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	} else if item.Author != nil {
		author = item.Author.Name
	}

	var media []domain.Media
	if item.Image != nil && item.Image.URL != "" {
		media = append(media, domain.Media{Type: "image", URL: item.Image.URL, Alt: title, RemoteURL: item.Image.URL})
	}

	return domain.Entry{
		ID:           domain.NewID(domain.TypeBlog, slug),
		Type:         domain.TypeBlog,
		Source:       domain.TypeBlog,
		Timestamp:    ts,
		Title:        title,
		Summary:      canonical.Summarize(summary, summaryLength),
		URL:          link,
		CanonicalURL: canonical.NormalizeURL(link),
		Author:       author,
		Tags:         canonical.MergeTags([]string{domain.TypeBlog}, item.Categories),
		Media:        media,
		ContentHTML:  body,
		ContentText:  text,
		Metadata: map[string]any{
			"word_count": canonical.WordCount(text),
			"feed_link":  item.Link,
		},
	}, nil
}

// Slug is the last path segment of the post link, falling back to a slug of
// the title.
func Slug(item *gofeed.Item) string {
	if u, err := url.Parse(strings.TrimSpace(item.Link)); err == nil {
		segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(segments) > 0 {
			last := strings.TrimSuffix(segments[len(segments)-1], ".html")
			if last != "" {
				return last
			}
		}
	}
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(item.Title), "-"), "-")
}

func published(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return time.Time{}
	}
}

// Package raindrop syncs curated bookmarks and their highlights.
package raindrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/source"
)

const (
	SourceID   = "raindrop"
	SourceName = "Raindrop.io"

	summaryLength = 280
)

type Config struct {
	BaseURL          string
	Token            string
	PageSize         int
	AllowTags        []string
	HiddenTags       []string
	FetchHighlights  bool
	HighlightWorkers int
}

// Source lists all bookmarks newest first. Only bookmarks passing the
// curation allow-list become entries.
type Source struct {
	client     *source.Client
	cache      canonical.MediaCache
	baseURL    string
	token      string
	pageSize   int
	curation   canonical.Curation
	highlights bool
	workers    int
	logger     *slog.Logger
}

// New creates a Raindrop bookmarks source.
func New(cfg Config, client *source.Client, cache canonical.MediaCache, logger *slog.Logger) *Source {
	if cache == nil {
		cache = canonical.Passthrough{}
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 50 {
		cfg.PageSize = 50
	}
	if cfg.HighlightWorkers <= 0 {
		cfg.HighlightWorkers = 4
	}
	return &Source{
		client:     client,
		cache:      cache,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		pageSize:   cfg.PageSize,
		curation:   canonical.NewCuration(cfg.AllowTags, cfg.HiddenTags),
		highlights: cfg.FetchHighlights,
		workers:    cfg.HighlightWorkers,
		logger:     logger.With("source", SourceID),
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

// Strategy is watermark based: the list endpoint has no resumption token and
// bookmarks can be re-tagged after creation.
func (s *Source) Strategy() domain.Strategy {
	return domain.StrategyWatermark
}

// FetchPage fetches one page of bookmarks, with highlights when enabled.
func (s *Source) FetchPage(ctx context.Context, cp domain.Checkpoint, cursor string) (domain.Page[Item], error) {
	if s.token == "" {
		return domain.Page[Item]{}, fmt.Errorf("raindrop token: %w", domain.ErrMissingCredential)
	}

	page := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return domain.Page[Item]{}, fmt.Errorf("parse page cursor %q: %w", cursor, err)
		}
		page = n
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("perpage", strconv.Itoa(s.pageSize))
	query.Set("sort", "-created")

	var resp ListResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/rest/v1/raindrops/0?"+query.Encode(), source.BearerHeaders(s.token), &resp); err != nil {
		return domain.Page[Item]{}, fmt.Errorf("list raindrops: %w", err)
	}
	if !resp.Result {
		return domain.Page[Item]{}, fmt.Errorf("list raindrops: %s", resp.ErrorMessage)
	}

	if s.highlights {
		if err := s.attachHighlights(ctx, cp, resp.Items); err != nil {
			return domain.Page[Item]{}, err
		}
	}

	var next string
	if len(resp.Items) == s.pageSize {
		next = strconv.Itoa(page + 1)
	}
	return domain.Page[Item]{Records: resp.Items, Next: next}, nil
}

// attachHighlights loads highlights for the admitted items of one page with
// bounded concurrency. Failures for a single item only cost its highlights;
// a rate limit aborts the page.
func (s *Source) attachHighlights(ctx context.Context, cp domain.Checkpoint, items []Item) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range items {
		item := &items[i]
		if len(item.Highlights) > 0 || !s.curation.Admit(item.Tags) || s.behind(cp, item) {
			continue
		}

		g.Go(func() error {
			var resp ItemResponse
			endpoint := fmt.Sprintf("%s/rest/v1/raindrop/%d", s.baseURL, item.ID)
			err := s.client.GetJSON(gctx, endpoint, source.BearerHeaders(s.token), &resp)
			if errors.Is(err, domain.ErrRateLimited) {
				return fmt.Errorf("get raindrop %d: %w", item.ID, err)
			}
			if err != nil {
				s.logger.Warn("highlights unavailable", "raindrop_id", item.ID, "error", err)
				return nil
			}
			item.Highlights = resp.Item.Highlights
			return nil
		})
	}

	return g.Wait()
}

// behind reports whether the engine will stop at item anyway.
func (s *Source) behind(cp domain.Checkpoint, item *Item) bool {
	if cp.Full || cp.Since.IsZero() {
		return false
	}
	ts, err := domain.ParseTimestamp(item.Created)
	return err == nil && !ts.After(cp.Since)
}

// ToEntry converts a bookmark into an entry.
func (s *Source) ToEntry(ctx context.Context, item Item) (domain.Entry, error) {
	if !s.curation.Admit(item.Tags) {
		return domain.Entry{}, canonical.ErrFiltered
	}
	if item.ID == 0 {
		return domain.Entry{}, fmt.Errorf("%w: raindrop without id", domain.ErrInvalidEntry)
	}
	ts, err := domain.ParseTimestamp(item.Created)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("raindrop %d: %w", item.ID, err)
	}

	title := canonical.CollapseSpace(item.Title)
	if title == "" {
		title = item.Link
	}

	summary := item.Note
	if strings.TrimSpace(summary) == "" {
		summary = item.Excerpt
	}

	var media []domain.Media
	var body strings.Builder
	if item.Cover != "" {
		cover := s.cache.Cache(ctx, item.Cover)
		media = append(media, domain.Media{Type: "image", URL: cover, Alt: title, RemoteURL: item.Cover})
		body.WriteString(canonical.Image(cover, title))
	}
	if item.Note != "" {
		body.WriteString(canonical.Paragraphs(item.Note))
	}
	if item.Excerpt != "" {
		body.WriteString(canonical.Blockquote(item.Excerpt, ""))
	}
	for _, h := range item.Highlights {
		if strings.TrimSpace(h.Text) != "" {
			body.WriteString(canonical.Blockquote(h.Text, h.Note))
		}
	}

	siteName := item.Domain
	if siteName == "" {
		siteName = canonical.Host(item.Link)
	}

	return domain.Entry{
		ID:           domain.NewID(domain.TypeSaved, strconv.FormatInt(item.ID, 10)),
		Type:         domain.TypeSaved,
		Source:       domain.TypeSaved,
		Timestamp:    ts,
		Title:        title,
		Summary:      canonical.Summarize(summary, summaryLength),
		URL:          item.Link,
		CanonicalURL: canonical.NormalizeURL(item.Link),
		Tags:         canonical.MergeTags([]string{domain.TypeSaved}, s.curation.Visible(item.Tags)),
		Media:        media,
		ContentHTML:  body.String(),
		ContentText:  item.Note,
		Metadata: map[string]any{
			"site_name":       siteName,
			"raindrop_type":   item.Type,
			"highlight_count": len(item.Highlights),
		},
	}, nil
}

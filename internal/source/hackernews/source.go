// Package hackernews syncs a user's stories and comments through the Algolia
// Hacker News search API.
package hackernews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/source"
)

const (
	SourceID   = "hackernews"
	SourceName = "Hacker News"

	itemURL       = "https://news.ycombinator.com/item?id="
	summaryLength = 280
)

type Config struct {
	BaseURL  string
	Username string
	PageSize int
	Workers  int
}

type Source struct {
	client   *source.Client
	baseURL  string
	username string
	pageSize int
	workers  int
	logger   *slog.Logger
}

// New creates a Hacker News source for one user.
func New(cfg Config, client *source.Client, logger *slog.Logger) *Source {
	if cfg.PageSize <= 0 || cfg.PageSize > 1000 {
		cfg.PageSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Source{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		pageSize: cfg.PageSize,
		workers:  cfg.Workers,
		logger:   logger.With("source", SourceID),
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

// Strategy is watermark based; the search index is filtered server side by
// created_at_i as well.
func (s *Source) Strategy() domain.Strategy {
	return domain.StrategyWatermark
}

// FetchPage fetches one page of the user's stories and comments.
func (s *Source) FetchPage(ctx context.Context, cp domain.Checkpoint, cursor string) (domain.Page[Hit], error) {
	if s.username == "" {
		return domain.Page[Hit]{}, fmt.Errorf("hackernews username: %w", domain.ErrMissingCredential)
	}

	page := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return domain.Page[Hit]{}, fmt.Errorf("parse page cursor %q: %w", cursor, err)
		}
		page = n
	}

	query := url.Values{}
	query.Set("tags", "author_"+s.username)
	query.Set("hitsPerPage", strconv.Itoa(s.pageSize))
	query.Set("page", strconv.Itoa(page))
	if !cp.Full && !cp.Since.IsZero() {
		query.Set("numericFilters", fmt.Sprintf("created_at_i>%d", cp.Since.Unix()))
	}

	var resp SearchResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/api/v1/search_by_date?"+query.Encode(), nil, &resp); err != nil {
		return domain.Page[Hit]{}, fmt.Errorf("search items: %w", err)
	}

	if err := s.resolveStories(ctx, resp.Hits); err != nil {
		return domain.Page[Hit]{}, err
	}

	var next string
	if len(resp.Hits) > 0 && resp.Page+1 < resp.NbPages {
		next = strconv.Itoa(resp.Page + 1)
	}
	return domain.Page[Hit]{Records: resp.Hits, Next: next}, nil
}

// resolveStories fills story titles the index left blank on comments.
func (s *Source) resolveStories(ctx context.Context, hits []Hit) error {
	missing := lo.Uniq(lo.FilterMap(hits, func(h Hit, _ int) (int64, bool) {
		return h.StoryID, isComment(h) && h.StoryTitle == "" && h.StoryID != 0
	}))
	if len(missing) == 0 {
		return nil
	}

	var mu sync.Mutex
	stories := make(map[int64]Item, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range missing {
		g.Go(func() error {
			var item Item
			err := s.client.GetJSON(gctx, fmt.Sprintf("%s/api/v1/items/%d", s.baseURL, id), nil, &item)
			if errors.Is(err, domain.ErrRateLimited) {
				return fmt.Errorf("get item %d: %w", id, err)
			}
			if err != nil {
				s.logger.Warn("story unavailable", "story_id", id, "error", err)
				return nil
			}
			mu.Lock()
			stories[id] = item
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range hits {
		if story, ok := stories[hits[i].StoryID]; ok && hits[i].StoryTitle == "" {
			hits[i].StoryTitle = story.Title
			hits[i].StoryURL = story.URL
		}
	}
	return nil
}

// ToEntry converts a search hit into an entry.
func (s *Source) ToEntry(_ context.Context, h Hit) (domain.Entry, error) {
	if h.ObjectID == "" {
		return domain.Entry{}, fmt.Errorf("%w: hit without objectID", domain.ErrInvalidEntry)
	}
	ts, err := domain.ParseTimestamp(h.CreatedAt)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("item %s: %w", h.ObjectID, err)
	}

	discussion := itemURL + h.ObjectID
	metadata := map[string]any{
		"hn_url": discussion,
		"points": h.Points,
	}

	if isComment(h) {
		text := canonical.StripHTML(h.CommentText)
		title := "Comment"
		if h.StoryTitle != "" {
			title = "Comment on " + h.StoryTitle
		}
		metadata["kind"] = "comment"
		metadata["story_id"] = h.StoryID
		if h.StoryURL != "" {
			metadata["story_url"] = h.StoryURL
		}
		return domain.Entry{
			ID:           domain.NewID(domain.TypeHackerNews, h.ObjectID),
			Type:         domain.TypeHackerNews,
			Source:       domain.TypeHackerNews,
			Timestamp:    ts,
			Title:        title,
			Summary:      canonical.Summarize(text, summaryLength),
			URL:          discussion,
			CanonicalURL: discussion,
			Author:       h.Author,
			Tags:         []string{"hackernews", "comment"},
			ContentHTML:  h.CommentText,
			ContentText:  text,
			Metadata:     metadata,
		}, nil
	}

	link := h.URL
	if link == "" {
		link = discussion
	}
	text := canonical.StripHTML(h.StoryText)
	summary := text
	if summary == "" {
		summary = fmt.Sprintf("%d points, %d comments", h.Points, h.NumComments)
	}
	body := canonical.LinkCard(link, h.Title, canonical.Host(link), "")
	if h.StoryText != "" {
		body = h.StoryText
	}
	metadata["kind"] = "story"
	metadata["num_comments"] = h.NumComments
	metadata["site_name"] = canonical.Host(link)

	tags := []string{"hackernews", "story"}
	if lo.Contains(h.Tags, "show_hn") {
		tags = append(tags, "show_hn")
	}
	if lo.Contains(h.Tags, "ask_hn") {
		tags = append(tags, "ask_hn")
	}

	return domain.Entry{
		ID:           domain.NewID(domain.TypeHackerNews, h.ObjectID),
		Type:         domain.TypeHackerNews,
		Source:       domain.TypeHackerNews,
		Timestamp:    ts,
		Title:        canonical.CollapseSpace(h.Title),
		Summary:      canonical.Summarize(summary, summaryLength),
		URL:          link,
		CanonicalURL: canonical.NormalizeURL(link),
		Author:       h.Author,
		Tags:         canonical.MergeTags(tags),
		ContentHTML:  body,
		ContentText:  text,
		Metadata:     metadata,
	}, nil
}

func isComment(h Hit) bool {
	return lo.Contains(h.Tags, "comment") || h.CommentText != ""
}

// Package bluesky syncs a user's own posts from the public AppView API.
package bluesky

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/source"
)

const (
	SourceID   = "bluesky"
	SourceName = "Bluesky"

	titleLength   = 80
	summaryLength = 280
	postType      = "app.bsky.feed.post"
)

type Config struct {
	BaseURL  string
	Handle   string
	PageSize int
}

// Source walks app.bsky.feed.getAuthorFeed newest first. Reposts are
// filtered; only the actor's own posts become entries.
type Source struct {
	client   *source.Client
	cache    canonical.MediaCache
	baseURL  string
	handle   string
	pageSize int
	logger   *slog.Logger
}

// New creates a Bluesky author feed source.
func New(cfg Config, client *source.Client, cache canonical.MediaCache, logger *slog.Logger) *Source {
	if cache == nil {
		cache = canonical.Passthrough{}
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 50
	}
	return &Source{
		client:   client,
		cache:    cache,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		handle:   strings.TrimPrefix(cfg.Handle, "@"),
		pageSize: cfg.PageSize,
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

// Strategy returns cursor; the feed is paged by an opaque cursor.
func (s *Source) Strategy() domain.Strategy {
	return domain.StrategyCursor
}

// FetchPage fetches one page of the author feed.
func (s *Source) FetchPage(ctx context.Context, _ domain.Checkpoint, cursor string) (domain.Page[FeedItem], error) {
	if s.handle == "" {
		return domain.Page[FeedItem]{}, fmt.Errorf("bluesky handle: %w", domain.ErrMissingCredential)
	}

	query := url.Values{}
	query.Set("actor", s.handle)
	query.Set("limit", strconv.Itoa(s.pageSize))
	query.Set("filter", "posts_no_replies")
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var resp FeedResponse
	endpoint := s.baseURL + "/xrpc/app.bsky.feed.getAuthorFeed?" + query.Encode()
	if err := s.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return domain.Page[FeedItem]{}, fmt.Errorf("get author feed: %w", err)
	}

	next := resp.Cursor
	if len(resp.Feed) == 0 {
		next = ""
	}
	return domain.Page[FeedItem]{Records: resp.Feed, Next: next}, nil
}

// ToEntry converts a feed item into an entry. Reposts are filtered.
func (s *Source) ToEntry(ctx context.Context, item FeedItem) (domain.Entry, error) {
	if item.Reason != nil {
		return domain.Entry{}, canonical.ErrFiltered
	}

	post := item.Post
	rkey, err := recordKey(post.URI)
	if err != nil {
		return domain.Entry{}, err
	}

	ts, err := domain.ParseTimestamp(post.Record.CreatedAt)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("post %s: %w", rkey, err)
	}

	handle := post.Author.Handle
	if handle == "" {
		handle = s.handle
	}
	postURL := fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)

	text := strings.TrimSpace(post.Record.Text)
	media, embedHTML := s.renderEmbed(ctx, post.Embed)

	title := canonical.DeriveTitle(text, titleLength)
	if title == "" && post.Embed != nil && post.Embed.External != nil {
		title = post.Embed.External.Title
	}
	if title == "" {
		title = "Bluesky post"
	}

	author := post.Author.DisplayName
	if author == "" {
		author = handle
	}

	metadata := map[string]any{
		"handle":       handle,
		"like_count":   post.LikeCount,
		"repost_count": post.RepostCount,
		"reply_count":  post.ReplyCount,
		"quote_count":  post.QuoteCount,
		"site_name":    "bsky.app",
	}
	if len(post.Record.Langs) > 0 {
		metadata["langs"] = post.Record.Langs
	}
	if post.Embed != nil && post.Embed.External != nil {
		metadata["link"] = post.Embed.External.URI
	}

	return domain.Entry{
		ID:           domain.NewID(domain.TypeBluesky, rkey),
		Type:         domain.TypeBluesky,
		Source:       domain.TypeBluesky,
		Timestamp:    ts,
		Title:        title,
		Summary:      canonical.Summarize(text, summaryLength),
		URL:          postURL,
		CanonicalURL: postURL,
		Author:       author,
		Tags:         canonical.MergeTags([]string{domain.TypeBluesky}, facetTags(post.Record.Facets), canonical.ExtractHashtags(text)),
		Media:        media,
		ContentHTML:  canonical.Paragraphs(text) + embedHTML,
		ContentText:  text,
		Metadata:     metadata,
	}, nil
}

func (s *Source) renderEmbed(ctx context.Context, embed *Embed) ([]domain.Media, string) {
	if embed == nil {
		return nil, ""
	}

	var media []domain.Media
	var b strings.Builder

	switch {
	case len(embed.Images) > 0:
		for _, img := range embed.Images {
			remote := img.Fullsize
			if remote == "" {
				remote = img.Thumb
			}
			if remote == "" {
				continue
			}
			local := s.cache.Cache(ctx, remote)
			media = append(media, domain.Media{Type: "image", URL: local, Alt: img.Alt, RemoteURL: remote})
			b.WriteString(canonical.Image(local, img.Alt))
		}
	case embed.External != nil:
		ext := embed.External
		var thumb string
		if ext.Thumb != "" {
			thumb = s.cache.Cache(ctx, ext.Thumb)
		}
		b.WriteString(canonical.LinkCard(ext.URI, ext.Title, ext.Description, thumb))
	case embed.Playlist != "":
		// HLS playlists are not cacheable as a single file.
		media = append(media, domain.Media{Type: "video", URL: embed.Playlist, Alt: embed.Alt, RemoteURL: embed.Playlist})
		if embed.Thumbnail != "" {
			b.WriteString(canonical.Image(s.cache.Cache(ctx, embed.Thumbnail), embed.Alt))
		}
	case embed.Media != nil:
		return s.renderEmbed(ctx, embed.Media)
	}

	return media, b.String()
}

// recordKey extracts the rkey from at://<did>/app.bsky.feed.post/<rkey>.
func recordKey(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	parts := strings.Split(rest, "/")
	if !ok || len(parts) != 3 || parts[1] != postType || parts[2] == "" {
		return "", fmt.Errorf("%w: post uri %q", domain.ErrInvalidEntry, uri)
	}
	return parts[2], nil
}

func facetTags(facets []Facet) []string {
	var tags []string
	for _, facet := range facets {
		for _, feature := range facet.Features {
			if strings.HasSuffix(feature.Type, "#tag") && feature.Tag != "" {
				tags = append(tags, feature.Tag)
			}
		}
	}
	return tags
}

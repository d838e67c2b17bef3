// Package github syncs the releases of one repository.
package github

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

const summaryLength = 280

type Config struct {
	BaseURL  string
	Repo     string // owner/name
	Token    string
	PageSize int
}

// Source pages through a repository's releases, newest first. One Source
// serves one repository so each repository gets its own store.
type Source struct {
	client   *source.Client
	baseURL  string
	owner    string
	repo     string
	token    string
	pageSize int
	logger   *slog.Logger
}

// New creates a releases source for one "owner/repo".
func New(cfg Config, client *source.Client, logger *slog.Logger) (*Source, error) {
	owner, repo, ok := strings.Cut(strings.Trim(cfg.Repo, "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("parse repository %q: want owner/name", cfg.Repo)
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 30
	}

	s := &Source{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		owner:    owner,
		repo:     repo,
		token:    cfg.Token,
		pageSize: cfg.PageSize,
	}
	s.logger = logger.With("source", s.ID())
	return s, nil
}

// ID is unique per repository, e.g. "release-golang-go".
func (s *Source) ID() string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", domain.TypeRelease, s.owner, s.repo))
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return "GitHub Releases " + s.owner + "/" + s.repo
}

// Strategy returns cursor; pages are numbered.
func (s *Source) Strategy() domain.Strategy {
	return domain.StrategyCursor
}

// FetchPage fetches one page of releases.
func (s *Source) FetchPage(ctx context.Context, _ domain.Checkpoint, cursor string) (domain.Page[Release], error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return domain.Page[Release]{}, fmt.Errorf("parse page cursor %q: %w", cursor, err)
		}
		page = n
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(s.pageSize))
	query.Set("page", strconv.Itoa(page))
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases?%s",
		s.baseURL, url.PathEscape(s.owner), url.PathEscape(s.repo), query.Encode())

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	var releases []Release
	if err := s.client.GetJSON(ctx, endpoint, headers, &releases); err != nil {
		return domain.Page[Release]{}, fmt.Errorf("list releases: %w", err)
	}

	var next string
	if len(releases) == s.pageSize {
		next = strconv.Itoa(page + 1)
	}
	return domain.Page[Release]{Records: releases, Next: next}, nil
}

// ToEntry converts a release into an entry. Drafts are filtered.
func (s *Source) ToEntry(_ context.Context, rel Release) (domain.Entry, error) {
	if rel.Draft {
		return domain.Entry{}, canonical.ErrFiltered
	}
	if rel.ID == 0 {
		return domain.Entry{}, fmt.Errorf("%w: release without id", domain.ErrInvalidEntry)
	}

	published := rel.PublishedAt
	if published == "" {
		published = rel.CreatedAt
	}
	ts, err := domain.ParseTimestamp(published)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("release %d: %w", rel.ID, err)
	}

	name := strings.TrimSpace(rel.Name)
	if name == "" {
		name = rel.TagName
	}
	title := s.repo + " " + name
	if name != rel.TagName && rel.TagName != "" {
		title += " (" + rel.TagName + ")"
	}

	body, err := canonical.RenderMarkdown(rel.Body)
	if err != nil {
		s.logger.Warn("release notes not rendered", "release_id", rel.ID, "error", err)
		body = canonical.Paragraphs(rel.Body)
	}

	summary := canonical.Summarize(canonical.StripHTML(body), summaryLength)
	if summary == "" {
		summary = fmt.Sprintf("Released %s of %s/%s", rel.TagName, s.owner, s.repo)
	}

	downloads := 0
	for _, asset := range rel.Assets {
		downloads += asset.DownloadCount
	}

	tags := []string{"github", s.repo}
	if rel.Prerelease {
		tags = append(tags, "prerelease")
	}

	return domain.Entry{
		ID:          domain.NewID(domain.TypeRelease, strconv.FormatInt(rel.ID, 10)),
		Type:        domain.TypeRelease,
		Source:      domain.TypeRelease,
		Timestamp:   ts,
		Title:       title,
		Summary:     summary,
		URL:         rel.HTMLURL,
		Author:      rel.Author.Login,
		Tags:        canonical.MergeTags(tags),
		ContentHTML: body,
		ContentText: rel.Body,
		Metadata: map[string]any{
			"repo":        s.owner + "/" + s.repo,
			"tag_name":    rel.TagName,
			"prerelease":  rel.Prerelease,
			"asset_count": len(rel.Assets),
			"downloads":   downloads,
		},
	}, nil
}

// Package wikipedia syncs a user's edits through the MediaWiki action API.
package wikipedia

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/source"
)

const (
	SourceID   = "wikipedia"
	SourceName = "Wikipedia Edits"

	summaryLength = 280
)

type Config struct {
	BaseURL  string // e.g. https://en.wikipedia.org
	Username string
	PageSize int
}

// Source pages list=usercontribs newest first using uccontinue.
type Source struct {
	client   *source.Client
	baseURL  string
	username string
	pageSize int
	logger   *slog.Logger
}

// New creates a Wikipedia contributions source.
func New(cfg Config, client *source.Client, logger *slog.Logger) *Source {
	if cfg.PageSize <= 0 || cfg.PageSize > 500 {
		cfg.PageSize = 50
	}
	return &Source{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
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

// Strategy returns cursor; the API continues with uccontinue.
func (s *Source) Strategy() domain.Strategy {
	return domain.StrategyCursor
}

// FetchPage fetches one page of user contributions.
func (s *Source) FetchPage(ctx context.Context, _ domain.Checkpoint, cursor string) (domain.Page[Contribution], error) {
	if s.username == "" {
		return domain.Page[Contribution]{}, fmt.Errorf("wikipedia username: %w", domain.ErrMissingCredential)
	}

	query := url.Values{}
	query.Set("action", "query")
	query.Set("list", "usercontribs")
	query.Set("ucuser", s.username)
	query.Set("uclimit", strconv.Itoa(s.pageSize))
	query.Set("ucprop", "ids|title|timestamp|comment|size|sizediff|flags")
	query.Set("format", "json")
	query.Set("formatversion", "2")
	if cursor != "" {
		query.Set("uccontinue", cursor)
	}

	var resp ContribsResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"/w/api.php?"+query.Encode(), nil, &resp); err != nil {
		return domain.Page[Contribution]{}, fmt.Errorf("list contributions: %w", err)
	}
	if resp.Error != nil {
		if resp.Error.Code == "ratelimited" {
			return domain.Page[Contribution]{}, fmt.Errorf("list contributions: %w: %s", domain.ErrRateLimited, resp.Error.Info)
		}
		return domain.Page[Contribution]{}, fmt.Errorf("list contributions: %s: %s", resp.Error.Code, resp.Error.Info)
	}

	var next string
	if resp.Continue != nil {
		next = resp.Continue.UCContinue
	}
	return domain.Page[Contribution]{Records: resp.Query.UserContribs, Next: next}, nil
}

// ToEntry converts a contribution into an entry.
func (s *Source) ToEntry(_ context.Context, c Contribution) (domain.Entry, error) {
	if c.RevID == 0 {
		return domain.Entry{}, fmt.Errorf("%w: contribution without revid", domain.ErrInvalidEntry)
	}
	ts, err := domain.ParseTimestamp(c.Timestamp)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("revision %d: %w", c.RevID, err)
	}

	pageURL := s.pageURL(c.Title)
	diffURL := s.diffURL(c)
	comment := cleanComment(c.Comment)

	summary := comment
	if summary == "" {
		if c.New {
			summary = "Created " + c.Title
		} else {
			summary = "Edited " + c.Title
		}
	}

	body := fmt.Sprintf(`<p>%s <a href="%s">%s</a> (%s bytes)</p>`,
		verb(c), html.EscapeString(pageURL), html.EscapeString(c.Title), signed(c.SizeDiff))
	if comment != "" {
		body += canonical.Paragraphs(comment)
	}

	tags := []string{"wikipedia"}
	if c.NS != 0 {
		tags = append(tags, "talk")
	}

	return domain.Entry{
		ID:           domain.NewID(domain.TypeWikipedia, strconv.FormatInt(c.RevID, 10)),
		Type:         domain.TypeWikipedia,
		Source:       domain.TypeWikipedia,
		Timestamp:    ts,
		Title:        c.Title,
		Summary:      canonical.Summarize(summary, summaryLength),
		URL:          diffURL,
		CanonicalURL: diffURL,
		Author:       c.User,
		Tags:         canonical.MergeTags(tags),
		ContentHTML:  body,
		Metadata: map[string]any{
			"page_url":  pageURL,
			"page_id":   c.PageID,
			"namespace": c.NS,
			"size":      c.Size,
			"size_diff": c.SizeDiff,
			"minor":     c.Minor,
			"new_page":  c.New,
		},
	}, nil
}

func (s *Source) pageURL(title string) string {
	return s.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (s *Source) diffURL(c Contribution) string {
	if c.ParentID == 0 {
		return fmt.Sprintf("%s/w/index.php?oldid=%d", s.baseURL, c.RevID)
	}
	return fmt.Sprintf("%s/w/index.php?diff=%d&oldid=%d", s.baseURL, c.RevID, c.ParentID)
}

// cleanComment drops the /* section */ markers MediaWiki puts in edit
// summaries.
func cleanComment(comment string) string {
	for {
		start := strings.Index(comment, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(comment[start:], "*/")
		if end < 0 {
			break
		}
		section := strings.TrimSpace(comment[start+2 : start+end])
		comment = comment[:start] + section + ":" + comment[start+end+2:]
	}
	return canonical.CollapseSpace(comment)
}

func verb(c Contribution) string {
	if c.New {
		return "Created"
	}
	return "Edited"
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

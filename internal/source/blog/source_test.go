package blog

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline_sync/internal/domain"
	"timeline_sync/internal/source"
)

func newSource(feedURL, siteURL string) *Source {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := source.NewClient(source.ClientConfig{Timeout: time.Second, MaxAttempts: 1}, logger)
	return New(Config{FeedURL: feedURL, SiteURL: siteURL}, client, logger)
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "application/rss+xml")
		http.ServeFile(w, r, "testdata/feed.xml")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPage_SortedSinglePage(t *testing.T) {
	srv := feedServer(t)

	page, err := newSource(srv.URL, "").FetchPage(context.Background(), domain.Checkpoint{}, "")
	require.NoError(t, err)

	require.Len(t, page.Records, 3)
	assert.Empty(t, page.Next)
	assert.Equal(t, "Hello World", page.Records[0].Title)
	assert.Equal(t, "Older notes", page.Records[1].Title)
	assert.Equal(t, "Draft without date", page.Records[2].Title)
}

func TestFetchPage_RequiresFeedURL(t *testing.T) {
	_, err := newSource("", "").FetchPage(context.Background(), domain.Checkpoint{}, "")
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestFetchPage_BadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not a feed"))
	}))
	defer srv.Close()

	_, err := newSource(srv.URL, "").FetchPage(context.Background(), domain.Checkpoint{}, "")
	assert.ErrorContains(t, err, "parse feed")
}

func TestToEntry(t *testing.T) {
	srv := feedServer(t)
	src := newSource(srv.URL, "https://timeline.example.com/")

	page, err := src.FetchPage(context.Background(), domain.Checkpoint{}, "")
	require.NoError(t, err)

	entry, err := src.ToEntry(context.Background(), page.Records[0])
	require.NoError(t, err)

	assert.Equal(t, "blog:hello-world", entry.ID)
	assert.Equal(t, domain.TypeBlog, entry.Type)
	assert.Equal(t, "Hello World", entry.Title)
	assert.Equal(t, "First post on the new site.", entry.Summary)
	assert.Equal(t, "https://timeline.example.com/blog/hello-world", entry.URL)
	assert.Equal(t, time.Date(2024, 2, 10, 17, 30, 0, 0, time.UTC), entry.Timestamp)
	assert.Equal(t, "Jane Doe", entry.Author)
	assert.Equal(t, []string{"blog", "go", "meta"}, entry.Tags)
	assert.Contains(t, entry.ContentHTML, "two paragraphs")
	assert.Equal(t, 13, entry.Metadata["word_count"])
	assert.Equal(t, "https://example.com/blog/hello-world/", entry.Metadata["feed_link"])
}

func TestToEntry_WithoutSiteKeepsFeedLink(t *testing.T) {
	src := newSource("http://unused", "")
	published := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	entry, err := src.ToEntry(context.Background(), &gofeed.Item{
		Title:           "Older notes",
		Link:            "https://example.com/blog/older-notes.html",
		Description:     "Just a short one.",
		PublishedParsed: &published,
	})
	require.NoError(t, err)

	assert.Equal(t, "blog:older-notes", entry.ID)
	assert.Equal(t, "https://example.com/blog/older-notes.html", entry.URL)
	assert.Equal(t, []string{"blog"}, entry.Tags)
}

func TestToEntry_Undated(t *testing.T) {
	_, err := newSource("http://unused", "").ToEntry(context.Background(), &gofeed.Item{Title: "x", Link: "https://example.com/blog/x/"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		item gofeed.Item
		want string
	}{
		{"trailing slash", gofeed.Item{Link: "https://example.com/blog/hello-world/"}, "hello-world"},
		{"html suffix", gofeed.Item{Link: "https://example.com/blog/notes.html"}, "notes"},
		{"title fallback", gofeed.Item{Title: "Hello, World! 2024"}, "hello-world-2024"},
		{"nothing", gofeed.Item{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(&tt.item))
		})
	}
}

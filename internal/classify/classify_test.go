package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"timeline_sync/internal/domain"
)

func TestClassify_DefaultRules(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		entry domain.Entry
		want  string
	}{
		{
			name:  "primer tag beats source",
			entry: domain.Entry{Source: domain.TypeSaved, Type: domain.TypeSaved, Tags: []string{"ai", "Primer"}},
			want:  domain.TypePrimer,
		},
		{
			name:  "hacker news by source",
			entry: domain.Entry{Source: domain.TypeHackerNews},
			want:  domain.TypeHackerNews,
		},
		{
			name:  "saved hacker news link",
			entry: domain.Entry{Source: domain.TypeSaved, Type: domain.TypeSaved, URL: "https://news.ycombinator.com/item?id=1"},
			want:  domain.TypeHackerNews,
		},
		{
			name:  "release by url",
			entry: domain.Entry{Source: domain.TypeSaved, URL: "https://github.com/o/r/releases/tag/v1"},
			want:  domain.TypeRelease,
		},
		{
			name:  "wikipedia by site name",
			entry: domain.Entry{Source: domain.TypeSaved, Metadata: map[string]any{"site_name": "en.wikipedia.org"}},
			want:  domain.TypeWikipedia,
		},
		{
			name:  "bluesky",
			entry: domain.Entry{Source: domain.TypeBluesky},
			want:  domain.TypeBluesky,
		},
		{
			name:  "blog",
			entry: domain.Entry{Source: domain.TypeBlog},
			want:  domain.TypeBlog,
		},
		{
			name:  "plain saved article keeps type",
			entry: domain.Entry{Source: domain.TypeSaved, Type: domain.TypeSaved, URL: "https://example.com/post"},
			want:  domain.TypeSaved,
		},
		{
			name:  "source fallback",
			entry: domain.Entry{Source: "mastodon"},
			want:  "mastodon",
		},
		{
			name:  "total on empty entry",
			entry: domain.Entry{},
			want:  domain.TypeSaved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.entry))
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := Default()
	entries := []domain.Entry{
		{Source: domain.TypeSaved, Type: domain.TypeSaved, Tags: []string{"primer"}},
		{Source: domain.TypeSaved, Type: domain.TypeSaved, URL: "https://bsky.app/profile/x/post/1"},
		{Source: "other"},
	}

	c.Apply(entries)
	first := []string{entries[0].Type, entries[1].Type, entries[2].Type}
	c.Apply(entries)
	second := []string{entries[0].Type, entries[1].Type, entries[2].Type}

	assert.Equal(t, []string{domain.TypePrimer, domain.TypeBluesky, "other"}, first)
	assert.Equal(t, first, second)
}

func TestClassify_RuleOrderIsPrecedence(t *testing.T) {
	always := func(domain.Entry) bool { return true }
	c := New(
		Rule{Name: "first", Match: always, Type: "a"},
		Rule{Name: "second", Match: always, Type: "b"},
	)
	assert.Equal(t, "a", c.Classify(domain.Entry{}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Article Shared", DisplayName(domain.TypeSaved))
	assert.Equal(t, "GitHub Release", DisplayName(domain.TypeRelease))
	assert.Equal(t, "mastodon", DisplayName("mastodon"))
}

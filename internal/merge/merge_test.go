package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeline_sync/internal/domain"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(id, url, at, title string) domain.Entry {
	return domain.Entry{
		ID:           id,
		Type:         "x",
		CanonicalURL: url,
		URL:          url,
		Timestamp:    ts(at),
		Title:        title,
		Tags:         []string{},
	}
}

func TestMerge_NewItem(t *testing.T) {
	incoming := []domain.Entry{entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "")}

	merged, stats := Merge(nil, incoming)

	require.Len(t, merged, 1)
	assert.Equal(t, "x:1", merged[0].ID)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, []string{"x:1"}, stats.NewIDs)
	assert.True(t, stats.Changed())
}

func TestMerge_UpdateReplacesNotAppends(t *testing.T) {
	existing := []domain.Entry{entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "old")}
	incoming := []domain.Entry{entry("x:1", "http://a/1", "2024-01-02T00:00:00Z", "new")}

	merged, stats := Merge(existing, incoming)

	require.Len(t, merged, 1)
	assert.Equal(t, "new", merged[0].Title)
	assert.Equal(t, ts("2024-01-02T00:00:00Z"), merged[0].Timestamp)
	assert.Equal(t, 0, stats.New)
	assert.Equal(t, []string{"x:1"}, stats.UpdatedIDs)
}

func TestMerge_FullReplaceDropsFields(t *testing.T) {
	rich := entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "t")
	rich.Metadata = map[string]any{"highlights": 3}
	thin := entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "t")

	merged, _ := Merge([]domain.Entry{rich}, []domain.Entry{thin})

	require.Len(t, merged, 1)
	assert.Nil(t, merged[0].Metadata)
}

func TestMerge_Idempotent(t *testing.T) {
	existing := []domain.Entry{
		entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "one"),
		entry("x:2", "http://a/2", "2024-01-03T00:00:00Z", "two"),
	}
	incoming := []domain.Entry{
		entry("x:2", "http://a/2", "2024-01-03T00:00:00Z", "two v2"),
		entry("x:3", "http://a/3", "2024-01-02T00:00:00Z", "three"),
		entry("x:3", "http://a/3", "2024-01-02T00:00:00Z", "three v2"),
	}

	once, _ := Merge(existing, incoming)
	twice, stats := Merge(once, incoming)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, stats.New)
	assert.Empty(t, stats.NewIDs)
}

func TestMerge_OrderIndependentForDistinctKeys(t *testing.T) {
	a := entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "")
	b := entry("x:2", "http://a/2", "2024-01-02T00:00:00Z", "")
	c := entry("x:3", "", "2024-01-03T00:00:00Z", "")
	incoming := []domain.Entry{entry("x:4", "http://a/4", "2024-01-04T00:00:00Z", "")}

	first, _ := Merge([]domain.Entry{a, b, c}, incoming)
	second, _ := Merge([]domain.Entry{c, a, b}, incoming)

	assert.Equal(t, first, second)
}

func TestMerge_NoDuplicateKeys(t *testing.T) {
	existing := []domain.Entry{
		entry("saved:1", "http://a/post", "2024-01-01T00:00:00Z", "saved"),
		entry("x:9", "", "2024-01-01T00:00:00Z", "no url"),
	}
	incoming := []domain.Entry{
		entry("blog:post", "http://a/post", "2024-01-05T00:00:00Z", "blog"),
		entry("x:9", "", "2024-01-02T00:00:00Z", "no url again"),
	}

	merged, _ := Merge(existing, incoming)

	seen := map[string]bool{}
	for _, e := range merged {
		assert.False(t, seen[Key(e)], "duplicate key %s", Key(e))
		seen[Key(e)] = true
	}
	require.Len(t, merged, 2)
	assert.Equal(t, "blog:post", merged[0].ID)
	assert.Equal(t, "x:9", merged[1].ID)
}

func TestMerge_CanonicalURLCorrectionKeepsSingleID(t *testing.T) {
	existing := []domain.Entry{entry("saved:1", "http://short/abc", "2024-01-01T00:00:00Z", "")}
	corrected := entry("saved:1", "https://example.com/article", "2024-01-01T00:00:00Z", "")

	merged, stats := Merge(existing, []domain.Entry{corrected})

	require.Len(t, merged, 1)
	assert.Equal(t, "https://example.com/article", merged[0].CanonicalURL)
	assert.Equal(t, 1, stats.Updated)
}

func TestMerge_SortedDescendingStableTies(t *testing.T) {
	existing := []domain.Entry{
		entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", ""),
		entry("x:2", "http://a/2", "2024-01-05T00:00:00Z", ""),
	}
	incoming := []domain.Entry{
		entry("x:3", "http://a/3", "2024-01-03T00:00:00Z", ""),
		entry("x:4", "http://a/4", "2024-01-03T00:00:00Z", ""),
	}

	merged, _ := Merge(existing, incoming)

	ids := make([]string, len(merged))
	for i, e := range merged {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"x:2", "x:3", "x:4", "x:1"}, ids)
	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].Timestamp.After(merged[i-1].Timestamp))
	}
}

func TestMerge_MonotonicSize(t *testing.T) {
	existing := []domain.Entry{
		entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", ""),
		entry("x:2", "http://a/2", "2024-01-02T00:00:00Z", ""),
	}
	incoming := []domain.Entry{entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "edited")}

	merged, _ := Merge(existing, incoming)

	assert.GreaterOrEqual(t, len(merged), len(existing))
}

func TestMerge_UnchangedIsNotChanged(t *testing.T) {
	existing := []domain.Entry{entry("x:1", "http://a/1", "2024-01-01T00:00:00Z", "same")}

	_, stats := Merge(existing, existing)

	assert.Equal(t, 1, stats.Unchanged)
	assert.False(t, stats.Changed())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "http://a/1", Key(domain.Entry{ID: "x:1", CanonicalURL: "http://a/1"}))
	assert.Equal(t, "x:1", Key(domain.Entry{ID: "x:1"}))
}

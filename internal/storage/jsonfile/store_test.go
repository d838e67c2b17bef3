package jsonfile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"timeline_sync/internal/domain"
)

type StoreTestSuite struct {
	suite.Suite
	ctx    context.Context
	dir    string
	logger *slog.Logger
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestLoad_MissingFileIsEmpty() {
	store := NewStore(filepath.Join(s.dir, "bluesky.json"), s.logger)

	entries, err := store.Load(s.ctx)
	s.NoError(err)
	s.Empty(entries)
}

func (s *StoreTestSuite) TestSaveThenLoad() {
	store := NewStore(filepath.Join(s.dir, "nested", "bluesky.json"), s.logger)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	in := []domain.Entry{{
		ID:           "bluesky:abc",
		Type:         domain.TypeBluesky,
		Source:       domain.TypeBluesky,
		Timestamp:    ts,
		Title:        "hello",
		URL:          "https://bsky.app/profile/me/post/abc",
		CanonicalURL: "https://bsky.app/profile/me/post/abc",
		Tags:         []string{"bluesky"},
		Metadata:     map[string]any{"like_count": 3},
	}}

	s.Require().NoError(store.Save(s.ctx, in))

	out, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("bluesky:abc", out[0].ID)
	s.True(ts.Equal(out[0].Timestamp))
	s.Equal(float64(3), out[0].Metadata["like_count"])

	leftovers, err := filepath.Glob(filepath.Join(s.dir, "nested", ".*"))
	s.NoError(err)
	s.Empty(leftovers)
}

func (s *StoreTestSuite) TestSave_EmptyWritesArray() {
	path := filepath.Join(s.dir, "empty.json")
	store := NewStore(path, s.logger)

	s.Require().NoError(store.Save(s.ctx, nil))

	data, err := os.ReadFile(path)
	s.NoError(err)
	s.Equal("[]\n", string(data))
}

func (s *StoreTestSuite) TestLoad_CorruptFile() {
	path := filepath.Join(s.dir, "saved.json")
	s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path, s.logger).Load(s.ctx)
	s.ErrorIs(err, ErrCorrupt)
}

func (s *StoreTestSuite) TestLoad_SkipsBadElements() {
	path := filepath.Join(s.dir, "saved.json")
	content := `[
	  {"id":"saved:1","type":"saved","timestamp":"2024-01-01T00:00:00Z","title":"ok","tags":[]},
	  {"id":"saved:2","type":"saved","timestamp":"not-a-time","title":"bad time"},
	  {"id":"saved:3","type":"saved","title":"no time"},
	  42
	]`
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	entries, err := NewStore(path, s.logger).Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("saved:1", entries[0].ID)
	s.Equal("saved:1", entries[0].CanonicalURL)
}

func (s *StoreTestSuite) TestStateStore_RoundTrip() {
	states := NewStateStore(s.dir)

	fresh, err := states.Get(s.ctx, "raindrop")
	s.Require().NoError(err)
	s.Equal("raindrop", fresh.SourceID)
	s.True(fresh.LastSyncedAt.IsZero())

	now := time.Now().UTC().Truncate(time.Second)
	s.Require().NoError(states.Update(s.ctx, &domain.SyncState{
		SourceID:     "raindrop",
		LastSyncedAt: now,
		LastEntryID:  "saved:9",
		TotalSynced:  12,
	}))

	got, err := states.Get(s.ctx, "raindrop")
	s.Require().NoError(err)
	s.True(now.Equal(got.LastSyncedAt))
	s.Equal("saved:9", got.LastEntryID)
	s.Equal(int64(12), got.TotalSynced)
}

func (s *StoreTestSuite) TestListStores() {
	for _, name := range []string{"wikipedia.json", "bluesky.json", "bluesky.state.json", ".bluesky.json.123", "notes.txt"} {
		s.Require().NoError(os.WriteFile(filepath.Join(s.dir, name), []byte("[]"), 0o644))
	}

	stores, err := ListStores(s.dir)
	s.Require().NoError(err)
	s.Equal([]string{
		filepath.Join(s.dir, "bluesky.json"),
		filepath.Join(s.dir, "wikipedia.json"),
	}, stores)
}

func (s *StoreTestSuite) TestStorePath() {
	s.Equal(filepath.Join("data", "release-o-r.json"), StorePath("data", "release-o-r"))
}

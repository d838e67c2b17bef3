// Package jsonfile persists entries and sync state as plain JSON files, one
// store file per source.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"timeline_sync/internal/domain"
)

// ErrCorrupt is returned when a store file exists but is not a JSON array.
var ErrCorrupt = errors.New("corrupt store file")

const stateSuffix = ".state.json"

// Store is a JSON array of entries, read fully and rewritten fully.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With("store", filepath.Base(path)),
	}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored entries. A missing file is an empty store.
// Individual elements that fail to decode or validate are skipped.
func (s *Store) Load(_ context.Context) ([]domain.Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	entries := make([]domain.Entry, 0, len(raw))
	for i, msg := range raw {
		var e domain.Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			s.logger.Warn("skipping undecodable entry", "index", i, "error", err)
			continue
		}
		if err := e.Validate(); err != nil {
			s.logger.Warn("skipping invalid entry", "index", i, "error", err)
			continue
		}
		e.Normalize()
		entries = append(entries, e)
	}

	return entries, nil
}

// Save atomically replaces the store file.
func (s *Store) Save(_ context.Context, entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	return WriteAtomic(s.path, append(data, '\n'))
}

// StateStore keeps each source's SyncState in a sidecar file next to its store.
type StateStore struct {
	dir string
}

// NewStateStore keeps sync state in sidecar files under dir.
func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir}
}

// Get returns the sync state for sourceID, empty when none is stored.
func (s *StateStore) Get(_ context.Context, sourceID string) (*domain.SyncState, error) {
	data, err := os.ReadFile(s.statePath(sourceID))
	if errors.Is(err, os.ErrNotExist) {
		return &domain.SyncState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var state domain.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.statePath(sourceID), err)
	}
	state.SourceID = sourceID
	return &state, nil
}

// Update writes the sync state sidecar.
func (s *StateStore) Update(_ context.Context, state *domain.SyncState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	return WriteAtomic(s.statePath(state.SourceID), append(data, '\n'))
}

func (s *StateStore) statePath(sourceID string) string {
	return filepath.Join(s.dir, sourceID+stateSuffix)
}

// StorePath is where the store for sourceID lives inside dir.
func StorePath(dir, sourceID string) string {
	return filepath.Join(dir, sourceID+".json")
}

// ListStores returns the store files in dir sorted by name, skipping state
// sidecars and temp files.
func ListStores(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	stores := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasSuffix(base, stateSuffix) || strings.HasPrefix(base, ".") {
			continue
		}
		stores = append(stores, m)
	}
	sort.Strings(stores)
	return stores, nil
}

// WriteAtomic writes data to a temp file next to path and renames it into
// place, so readers never see a partial file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

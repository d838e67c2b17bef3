package domain

import (
	"errors"
	"time"
)

var (
	// ErrRateLimited aborts a source run without touching its store.
	ErrRateLimited = errors.New("rate limited")
	// ErrMissingCredential is the only error that fails the whole process.
	ErrMissingCredential = errors.New("missing credential")
)

// Strategy selects how a source decides where to stop paginating.
type Strategy int

const (
	// StrategyCursor stops at the first item already present in the store.
	StrategyCursor Strategy = iota
	// StrategyWatermark stops at the first item not newer than the watermark.
	StrategyWatermark
)

func (s Strategy) String() string {
	switch s {
	case StrategyCursor:
		return "cursor"
	case StrategyWatermark:
		return "watermark"
	default:
		return "unknown"
	}
}

// Checkpoint is the resumption point handed to a source for one run.
type Checkpoint struct {
	Full  bool
	Since time.Time
	known map[string]struct{}
}

func NewCheckpoint(full bool, since time.Time, knownIDs []string) Checkpoint {
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}
	return Checkpoint{Full: full, Since: since, known: known}
}

// Known reports whether id is already stored. Always false on a full resync.
func (c Checkpoint) Known(id string) bool {
	if c.Full {
		return false
	}
	_, ok := c.known[id]
	return ok
}

// Page is one response of a paginated platform API. An empty Next means the
// feed is exhausted.
type Page[R any] struct {
	Records []R
	Next    string
}

// SyncState is the per-source marker persisted between runs.
type SyncState struct {
	ID           int64     `db:"id" json:"-"`
	SourceID     string    `db:"source_id" json:"source_id"`
	LastSyncedAt time.Time `db:"last_synced_at" json:"last_synced_at"`
	LastEntryID  string    `db:"last_entry_id" json:"last_entry_id,omitempty"`
	TotalSynced  int64     `db:"total_synced" json:"total_synced"`
	LastNew      int       `db:"last_new" json:"last_new"`
	LastUpdated  int       `db:"last_updated" json:"last_updated"`
}

// SyncStats holds statistics about a sync operation.
type SyncStats struct {
	SourceID    string
	Fetched     int
	Filtered    int
	Malformed   int
	New         int
	Updated     int
	Unchanged   int
	Published   int
	Errors      int
	Total       int
	RateLimited bool
	Capped      bool
	Duration    time.Duration
}

// RunReport aggregates one invocation over every configured source.
type RunReport struct {
	Stats  []SyncStats
	Failed map[string]error
	Fatal  error
}

// Package merge folds freshly canonicalized entries into a previously
// persisted set. It is the only place where store-level identity rules are
// enforced.
package merge

import (
	"bytes"
	"encoding/json"
	"slices"

	"timeline_sync/internal/domain"
)

// Stats counts what happened to incoming entries. NewIDs and UpdatedIDs list
// the affected ids in incoming order; an id created and then revised within
// the same batch appears in both.
type Stats struct {
	New        int
	Updated    int
	Unchanged  int
	NewIDs     []string
	UpdatedIDs []string
}

// Changed reports whether the merged set differs from the existing one.
func (s Stats) Changed() bool {
	return s.New > 0 || s.Updated > 0
}

// Key is the identity an entry is deduplicated under: its canonical URL, or
// its id when it has none.
func Key(e domain.Entry) string {
	if e.CanonicalURL != "" {
		return e.CanonicalURL
	}
	return e.ID
}

// Merge returns existing ∪ incoming keyed by Key, with incoming entries
// replacing stored ones in full. The result is sorted by timestamp, newest
// first; equal timestamps keep insertion order.
func Merge(existing, incoming []domain.Entry) ([]domain.Entry, Stats) {
	idx := newIndex(len(existing) + len(incoming))
	for _, e := range existing {
		idx.upsert(e)
	}

	var stats Stats
	for _, e := range incoming {
		old := idx.upsert(e)
		switch {
		case old == nil:
			stats.New++
			stats.NewIDs = append(stats.NewIDs, e.ID)
		case sameEntry(*old, e):
			stats.Unchanged++
		default:
			stats.Updated++
			stats.UpdatedIDs = append(stats.UpdatedIDs, e.ID)
		}
	}

	return idx.entries(), stats
}

// SortDescending orders entries newest first, stable for equal timestamps.
func SortDescending(entries []domain.Entry) {
	slices.SortStableFunc(entries, func(a, b domain.Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

type slot struct {
	key     string
	entry   domain.Entry
	removed bool
}

type index struct {
	slots []*slot
	byKey map[string]*slot
	byID  map[string]*slot
}

func newIndex(capacity int) *index {
	return &index{
		slots: make([]*slot, 0, capacity),
		byKey: make(map[string]*slot, capacity),
		byID:  make(map[string]*slot, capacity),
	}
}

// upsert stores e and returns the entry it replaced, if any.
func (x *index) upsert(e domain.Entry) *domain.Entry {
	key := Key(e)

	s, ok := x.byKey[key]
	if !ok {
		// Same id under a new key: the canonical URL was corrected, move the
		// slot instead of growing a second copy.
		if moved, ok := x.byID[e.ID]; ok {
			delete(x.byKey, moved.key)
			moved.key = key
			x.byKey[key] = moved
			old := moved.entry
			moved.entry = e
			return &old
		}

		s = &slot{key: key, entry: e}
		x.slots = append(x.slots, s)
		x.byKey[key] = s
		x.byID[e.ID] = s
		return nil
	}

	old := s.entry
	if old.ID != e.ID {
		if other, ok := x.byID[e.ID]; ok && other != s {
			other.removed = true
			delete(x.byKey, other.key)
		}
		if x.byID[old.ID] == s {
			delete(x.byID, old.ID)
		}
		x.byID[e.ID] = s
	}
	s.entry = e
	return &old
}

func (x *index) entries() []domain.Entry {
	out := make([]domain.Entry, 0, len(x.byKey))
	for _, s := range x.slots {
		if !s.removed {
			out = append(out, s.entry)
		}
	}
	SortDescending(out)
	return out
}

func sameEntry(a, b domain.Entry) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

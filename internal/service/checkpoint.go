package service

import (
	"time"

	"timeline_sync/internal/domain"
)

// Watermark picks the lower time bound for a watermark source. The previous
// run's marker wins over the newest stored timestamp; either is pulled back
// by overlap to tolerate clock skew, then clamped to now-lookback. An empty
// store ignores the marker so a deleted store file is rebuilt.
func Watermark(existing []domain.Entry, state *domain.SyncState, now time.Time, lookback, overlap time.Duration) time.Time {
	var mark time.Time
	if len(existing) > 0 {
		if state != nil {
			mark = state.LastSyncedAt
		}
		if mark.IsZero() {
			for _, e := range existing {
				if e.Timestamp.After(mark) {
					mark = e.Timestamp
				}
			}
		}
	}

	if !mark.IsZero() {
		mark = mark.Add(-overlap)
	}
	if lookback > 0 {
		if floor := now.Add(-lookback); mark.Before(floor) {
			mark = floor
		}
	}
	return mark.UTC()
}

func buildCheckpoint(existing []domain.Entry, state *domain.SyncState, full bool, now time.Time, lookback, overlap time.Duration) domain.Checkpoint {
	if full {
		return domain.NewCheckpoint(true, time.Time{}, nil)
	}

	ids := make([]string, len(existing))
	for i, e := range existing {
		ids[i] = e.ID
	}
	return domain.NewCheckpoint(false, Watermark(existing, state, now, lookback, overlap), ids)
}

// reachedCheckpoint reports whether entry marks the point where a source has
// caught up with what is already stored.
func reachedCheckpoint(strategy domain.Strategy, cp domain.Checkpoint, entry domain.Entry) bool {
	if cp.Full {
		return false
	}
	switch strategy {
	case domain.StrategyCursor:
		return cp.Known(entry.ID)
	case domain.StrategyWatermark:
		return !cp.Since.IsZero() && !entry.Timestamp.After(cp.Since)
	default:
		return false
	}
}

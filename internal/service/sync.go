package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/config"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/merge"
)

// SyncService runs one source against its store: fetch pages until caught up,
// canonicalize, merge and save once.
type SyncService[R any] struct {
	source    Source[R]
	store     EntryStore
	syncState SyncStateStore
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig
	now       func() time.Time
}

// NewSyncService wires a source to its store. publisher may be nil.
func NewSyncService[R any](
	source Source[R],
	store EntryStore,
	syncState SyncStateStore,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService[R] {
	return &SyncService[R]{
		source:    source,
		store:     store,
		syncState: syncState,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		config:    cfg,
		now:       time.Now,
	}
}

func (s *SyncService[R]) ID() string {
	return s.source.ID()
}

func (s *SyncService[R]) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := s.now()
	stats := &domain.SyncStats{SourceID: s.source.ID()}

	full := s.config.FullResync
	existing, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("store unreadable, resyncing from scratch", "error", err)
		existing = nil
		full = true
	}

	state, err := s.syncState.Get(ctx, s.source.ID())
	if err != nil {
		s.logger.Warn("sync state unavailable", "error", err)
		state = &domain.SyncState{SourceID: s.source.ID()}
	}

	cp := buildCheckpoint(existing, state, full, startTime, s.config.Lookback, s.config.WatermarkOverlap)

	s.logger.Info("starting sync",
		"source_name", s.source.Name(),
		"strategy", s.source.Strategy().String(),
		"full", cp.Full,
		"since", cp.Since,
		"stored", len(existing),
		"max_items", s.config.MaxItems,
	)

	incoming, err := s.collect(ctx, cp, stats)
	if errors.Is(err, domain.ErrRateLimited) {
		stats.RateLimited = true
		stats.Total = len(existing)
		stats.Duration = time.Since(startTime)
		s.logger.Warn("rate limited, keeping previous content",
			"error", err,
			"fetched", stats.Fetched,
		)
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}

	merged, mstats := merge.Merge(existing, incoming)
	stats.New = mstats.New
	stats.Updated = mstats.Updated
	stats.Unchanged = mstats.Unchanged
	stats.Total = len(merged)

	if mstats.Changed() {
		if err := s.store.Save(ctx, merged); err != nil {
			return stats, fmt.Errorf("save store: %w", err)
		}
	}

	s.publish(ctx, merged, mstats, stats)

	if err := s.updateSyncState(ctx, state, merged, stats, startTime); err != nil {
		return stats, fmt.Errorf("update sync state: %w", err)
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"filtered", stats.Filtered,
		"malformed", stats.Malformed,
		"published", stats.Published,
		"errors", stats.Errors,
		"total", stats.Total,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *SyncService[R]) collect(ctx context.Context, cp domain.Checkpoint, stats *domain.SyncStats) ([]domain.Entry, error) {
	strategy := s.source.Strategy()

	var entries []domain.Entry
	cursor := ""
	for page := 1; ; page++ {
		resp, err := s.source.FetchPage(ctx, cp, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		stop := false
		for _, record := range resp.Records {
			if s.config.MaxItems > 0 && stats.Fetched >= s.config.MaxItems {
				stats.Capped = true
				stop = true
				s.logger.Warn("item cap reached", "max_items", s.config.MaxItems)
				break
			}
			stats.Fetched++

			entry, err := s.source.ToEntry(ctx, record)
			if errors.Is(err, canonical.ErrFiltered) {
				stats.Filtered++
				continue
			}
			if err == nil {
				entry.Normalize()
				err = entry.Validate()
			}
			if err != nil {
				stats.Malformed++
				s.logger.Warn("dropping malformed record", "page", page, "error", err)
				continue
			}

			if reachedCheckpoint(strategy, cp, entry) {
				stop = true
				s.logger.Debug("caught up with store", "page", page, "entry_id", entry.ID)
				break
			}
			entries = append(entries, entry)
		}

		s.logger.Debug("fetched page",
			"page", page,
			"records", len(resp.Records),
			"kept", len(entries),
		)

		if stop || resp.Next == "" || len(resp.Records) == 0 {
			break
		}
		cursor = resp.Next

		if err := s.pause(ctx); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

func (s *SyncService[R]) pause(ctx context.Context) error {
	if s.config.PageDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.config.PageDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *SyncService[R]) publish(ctx context.Context, merged []domain.Entry, mstats merge.Stats, stats *domain.SyncStats) {
	if s.publisher == nil || !mstats.Changed() {
		return
	}

	actions := make(map[string]bool, len(mstats.NewIDs)+len(mstats.UpdatedIDs))
	for _, id := range mstats.UpdatedIDs {
		actions[id] = false
	}
	for _, id := range mstats.NewIDs {
		actions[id] = true
	}

	for i := range merged {
		entry := &merged[i]
		isNew, ok := actions[entry.ID]
		if !ok {
			continue
		}
		if err := s.publisher.Publish(ctx, entry, isNew); err != nil {
			stats.Errors++
			s.logger.Warn("publish entry", "entry_id", entry.ID, "error", err)
			continue
		}
		stats.Published++
	}
}

func (s *SyncService[R]) updateSyncState(ctx context.Context, state *domain.SyncState, merged []domain.Entry, stats *domain.SyncStats, syncedAt time.Time) error {
	state.SourceID = s.source.ID()
	state.LastSyncedAt = syncedAt.UTC()
	state.TotalSynced += int64(stats.New + stats.Updated)
	state.LastNew = stats.New
	state.LastUpdated = stats.Updated
	if len(merged) > 0 {
		state.LastEntryID = merged[0].ID
	}

	return s.syncState.Update(ctx, state)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"timeline_sync/internal/domain"
)

// SyncStateStore keeps per-source markers and an append-only run log.
type SyncStateStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db, tm: NewTransactionManager(db)}
}

func (s *SyncStateStore) Get(ctx context.Context, sourceID string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, source_id, last_synced_at, last_entry_id, total_synced, last_new, last_updated
		FROM sync_state
		WHERE source_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for new sources
		return &domain.SyncState{
			SourceID:     sourceID,
			LastSyncedAt: time.Time{},
			TotalSynced:  0,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Update upserts the marker and records the run in one transaction.
func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	return s.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		_, err := exec.ExecContext(txCtx, `
			INSERT INTO sync_state (source_id, last_synced_at, last_entry_id, total_synced, last_new, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_id) DO UPDATE SET
				last_synced_at = EXCLUDED.last_synced_at,
				last_entry_id = EXCLUDED.last_entry_id,
				total_synced = EXCLUDED.total_synced,
				last_new = EXCLUDED.last_new,
				last_updated = EXCLUDED.last_updated`,
			state.SourceID,
			state.LastSyncedAt,
			state.LastEntryID,
			state.TotalSynced,
			state.LastNew,
			state.LastUpdated,
		)
		if err != nil {
			return err
		}

		_, err = exec.ExecContext(txCtx, `
			INSERT INTO sync_runs (source_id, finished_at, new_count, updated, total)
			VALUES ($1, $2, $3, $4, $5)`,
			state.SourceID,
			state.LastSyncedAt,
			state.LastNew,
			state.LastUpdated,
			state.TotalSynced,
		)
		return err
	})
}

// Run is one row of the run log.
type Run struct {
	SourceID   string    `db:"source_id"`
	FinishedAt time.Time `db:"finished_at"`
	New        int       `db:"new_count"`
	Updated    int       `db:"updated"`
	Total      int64     `db:"total"`
}

// RecentRuns returns the latest runs of a source, newest first.
func (s *SyncStateStore) RecentRuns(ctx context.Context, sourceID string, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.SelectContext(ctx, &runs, `
		SELECT source_id, finished_at, new_count, updated, total
		FROM sync_runs
		WHERE source_id = $1
		ORDER BY finished_at DESC
		LIMIT $2`, sourceID, limit)
	return runs, err
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"timeline_sync/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	version, err := RunMigrations(db)
	s.Require().NoError(err)
	s.Equal(uint(2), version)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_runs")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestMigrations_Idempotent() {
	version, err := RunMigrations(s.db)
	s.NoError(err)
	s.Equal(uint(2), version)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_GetNew() {
	store := NewSyncStateStore(s.db)

	state, err := store.Get(s.ctx, "new-source")
	s.NoError(err)
	s.NotNil(state)
	s.Equal("new-source", state.SourceID)
	s.True(state.LastSyncedAt.IsZero())
	s.Equal(int64(0), state.TotalSynced)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_UpdateAndGet() {
	store := NewSyncStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	state := &domain.SyncState{
		SourceID:     "bluesky",
		LastSyncedAt: now,
		LastEntryID:  "bluesky:3k",
		TotalSynced:  100,
		LastNew:      4,
		LastUpdated:  1,
	}
	s.Require().NoError(store.Update(s.ctx, state))

	retrieved, err := store.Get(s.ctx, "bluesky")
	s.NoError(err)
	s.Equal("bluesky", retrieved.SourceID)
	s.Equal("bluesky:3k", retrieved.LastEntryID)
	s.Equal(int64(100), retrieved.TotalSynced)
	s.Equal(4, retrieved.LastNew)
	s.WithinDuration(now, retrieved.LastSyncedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_UpdateExistingAppendsRuns() {
	store := NewSyncStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	state := &domain.SyncState{SourceID: "saved", LastSyncedAt: now.Add(-time.Hour), TotalSynced: 10, LastNew: 10}
	s.Require().NoError(store.Update(s.ctx, state))

	state.LastSyncedAt = now
	state.TotalSynced = 12
	state.LastNew = 2
	s.Require().NoError(store.Update(s.ctx, state))

	retrieved, err := store.Get(s.ctx, "saved")
	s.NoError(err)
	s.Equal(int64(12), retrieved.TotalSynced)

	runs, err := store.RecentRuns(s.ctx, "saved", 10)
	s.NoError(err)
	s.Require().Len(runs, 2)
	s.Equal(2, runs[0].New)
	s.Equal(10, runs[1].New)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	store := NewSyncStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.Update(ctx, &domain.SyncState{SourceID: "rolled-back", LastSyncedAt: now}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Error(err)

	state, err := store.Get(s.ctx, "rolled-back")
	s.NoError(err)
	s.True(state.LastSyncedAt.IsZero())

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM sync_runs WHERE source_id = $1", "rolled-back"))
	s.Equal(0, count)
}

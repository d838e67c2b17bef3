package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"timeline_sync/internal/domain"
)

// EntryStore persists one source's entries as a whole.
type EntryStore interface {
	Load(ctx context.Context) ([]domain.Entry, error)
	Save(ctx context.Context, entries []domain.Entry) error
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

// Source fetches raw records page by page and canonicalizes them into entries.
// R is the platform's native record type.
type Source[R any] interface {
	ID() string
	Name() string
	Strategy() domain.Strategy
	FetchPage(ctx context.Context, cp domain.Checkpoint, cursor string) (domain.Page[R], error)
	ToEntry(ctx context.Context, record R) (domain.Entry, error)
}

type Publisher interface {
	Publish(ctx context.Context, entry *domain.Entry, isNew bool) error
	Close() error
}

// Job is one runnable sync unit, usually a SyncService bound to a source.
type Job interface {
	ID() string
	Sync(ctx context.Context) (*domain.SyncStats, error)
}

// Package publish is the final pass over every store: it classifies entries,
// merges them into one timeline and writes the public documents.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"timeline_sync/internal/classify"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/merge"
	"timeline_sync/internal/storage/jsonfile"
)

// Builder assembles the global timeline from the store files in a directory.
type Builder struct {
	dataDir    string
	classifier *classify.Classifier
	logger     *slog.Logger
}

func NewBuilder(dataDir string, classifier *classify.Classifier, logger *slog.Logger) *Builder {
	if classifier == nil {
		classifier = classify.Default()
	}
	return &Builder{
		dataDir:    dataDir,
		classifier: classifier,
		logger:     logger,
	}
}

// Build loads every store in file-name order, classifies it and folds it into
// the running timeline. A corrupt store is skipped, not fatal.
func (b *Builder) Build(ctx context.Context) ([]domain.Entry, error) {
	paths, err := jsonfile.ListStores(b.dataDir)
	if err != nil {
		return nil, err
	}

	timeline := make([]domain.Entry, 0)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := jsonfile.NewStore(path, b.logger).Load(ctx)
		if errors.Is(err, jsonfile.ErrCorrupt) {
			b.logger.Warn("skipping corrupt store", "store", filepath.Base(path), "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load store %s: %w", filepath.Base(path), err)
		}

		b.classifier.Apply(entries)

		var stats merge.Stats
		timeline, stats = merge.Merge(timeline, entries)
		b.logger.Debug("store merged",
			"store", filepath.Base(path),
			"entries", len(entries),
			"new", stats.New,
			"replaced", stats.Updated+stats.Unchanged,
		)
	}

	b.logger.Info("timeline built", "stores", len(paths), "entries", len(timeline))
	return timeline, nil
}

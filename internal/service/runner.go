package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"timeline_sync/internal/domain"
)

// Runner syncs every job once. A failing job never stops the others; only a
// missing credential is reported as fatal.
type Runner struct {
	jobs     []Job
	parallel int
	logger   *slog.Logger
}

func NewRunner(jobs []Job, parallel int, logger *slog.Logger) *Runner {
	return &Runner{
		jobs:     jobs,
		parallel: max(parallel, 1),
		logger:   logger,
	}
}

// Run returns the aggregated report and, when a credential was missing, the
// fatal error as well.
func (r *Runner) Run(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{Failed: make(map[string]error)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.parallel)

	for _, job := range r.jobs {
		g.Go(func() error {
			stats, err := job.Sync(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				r.logger.Error("source sync failed", "source", job.ID(), "error", err)
				report.Failed[job.ID()] = err
				return nil
			}
			report.Stats = append(report.Stats, *stats)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(report.Stats, func(a, b domain.SyncStats) int {
		return strings.Compare(a.SourceID, b.SourceID)
	})

	var missing []string
	for id, err := range report.Failed {
		if errors.Is(err, domain.ErrMissingCredential) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		report.Fatal = fmt.Errorf("%w: %s", domain.ErrMissingCredential, strings.Join(missing, ", "))
	}

	r.logger.Info("run completed",
		"sources", len(r.jobs),
		"succeeded", len(report.Stats),
		"failed", len(report.Failed),
	)

	return report, report.Fatal
}

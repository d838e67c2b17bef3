// Package scheduler repeats sync runs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timeline_sync/internal/domain"
)

// Runner performs one pass over every configured source.
type Runner interface {
	Run(ctx context.Context) (*domain.RunReport, error)
}

// AfterRun is called with the report of every completed run. It is where the
// publish pass hooks in.
type AfterRun func(ctx context.Context, report *domain.RunReport)

type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	afterRun   AfterRun
	logger     *slog.Logger
}

func NewScheduler(runner Runner, interval, runTimeout time.Duration, afterRun AfterRun, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		afterRun:   afterRun,
		logger:     logger,
	}
}

// Start runs immediately, then on every tick until ctx is done. A run that
// reports missing credentials is still handed to afterRun, then stops the
// loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}
	s.logger.Info("scheduler started", "interval", s.interval)

	if err := s.runOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	report, err := s.runner.Run(runCtx)
	if report != nil && s.afterRun != nil {
		s.afterRun(ctx, report)
	}
	if errors.Is(err, domain.ErrMissingCredential) {
		s.logger.Error("sync run fatal", "error", err)
		return err
	}
	if err != nil {
		s.logger.Error("sync run failed", "error", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"timeline_sync/internal/domain"
	"timeline_sync/internal/service/mocks"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func job(ctrl *gomock.Controller, id string, stats *domain.SyncStats, err error) *mocks.MockJob {
	j := mocks.NewMockJob(ctrl)
	j.EXPECT().ID().Return(id).AnyTimes()
	j.EXPECT().Sync(gomock.Any()).Return(stats, err)
	return j
}

func TestRunner_FailureIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)

	jobs := []Job{
		job(ctrl, "wikipedia", &domain.SyncStats{SourceID: "wikipedia", New: 2}, nil),
		job(ctrl, "bluesky", nil, errors.New("upstream 500")),
		job(ctrl, "blog", &domain.SyncStats{SourceID: "blog", New: 1}, nil),
	}

	report, err := NewRunner(jobs, 1, quietLogger()).Run(context.Background())

	require.NoError(t, err)
	assert.Nil(t, report.Fatal)
	require.Len(t, report.Stats, 2)
	assert.Equal(t, "blog", report.Stats[0].SourceID)
	assert.Equal(t, "wikipedia", report.Stats[1].SourceID)
	assert.ErrorContains(t, report.Failed["bluesky"], "upstream 500")
}

func TestRunner_MissingCredentialIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)

	jobs := []Job{
		job(ctrl, "raindrop", nil, fmt.Errorf("raindrop: %w", domain.ErrMissingCredential)),
		job(ctrl, "blog", &domain.SyncStats{SourceID: "blog"}, nil),
	}

	report, err := NewRunner(jobs, 2, quietLogger()).Run(context.Background())

	require.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.ErrorContains(t, err, "raindrop")
	assert.Equal(t, err, report.Fatal)
	assert.Len(t, report.Stats, 1)
}

func TestRunner_RateLimitedIsNotFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	jobs := []Job{
		job(ctrl, "github", &domain.SyncStats{SourceID: "github", RateLimited: true}, nil),
	}

	report, err := NewRunner(jobs, 0, quietLogger()).Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.True(t, report.Stats[0].RateLimited)
}

func TestRunner_BoundsParallelism(t *testing.T) {
	ctrl := gomock.NewController(t)

	var running, peak atomic.Int32
	jobs := make([]Job, 6)
	for i := range jobs {
		j := mocks.NewMockJob(ctrl)
		id := fmt.Sprintf("job-%d", i)
		j.EXPECT().ID().Return(id).AnyTimes()
		j.EXPECT().Sync(gomock.Any()).DoAndReturn(func(context.Context) (*domain.SyncStats, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return &domain.SyncStats{SourceID: id}, nil
		})
		jobs[i] = j
	}

	report, err := NewRunner(jobs, 2, quietLogger()).Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, report.Stats, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

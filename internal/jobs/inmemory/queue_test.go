package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/saku-tracker/internal/jobs"
)

func waitForStatus(t *testing.T, s *Store, id string, want jobs.JobStatus) *jobs.ClassifyMonthJob {
	t.Helper()
	var got *jobs.ClassifyMonthJob
	require.Eventually(t, func() bool {
		j, err := s.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_CompletesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := NewQueue(Config{}, store, zerolog.Nop())
	defer q.Close()

	var seen atomic.Value
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		seen.Store(job.(*jobs.ClassifyMonthJob).Month)
		return nil
	}))

	job := &jobs.ClassifyMonthJob{Month: "2024-05"}
	require.NoError(t, q.PublishClassifyMonth(ctx, job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, 3, job.MaxRetries)

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "2024-05", seen.Load())
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := NewQueue(Config{MaxRetries: 2, Backoff: time.Millisecond}, store, zerolog.Nop())
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return errors.New("model down")
	}))

	job := &jobs.ClassifyMonthJob{Month: "2024-05"}
	require.NoError(t, q.PublishClassifyMonth(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "model down", got.Error)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestQueue_RetrySucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := NewQueue(Config{Backoff: time.Millisecond}, store, zerolog.Nop())
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.ClassifyMonthJob{Month: "2024-06"}
	require.NoError(t, q.PublishClassifyMonth(ctx, job))

	got := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 1, got.RetryCount)
	assert.Empty(t, got.Error)
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := NewQueue(Config{}, nil, zerolog.Nop())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishClassifyMonth(context.Background(), &jobs.ClassifyMonthJob{Month: "2024-05"})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}

package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/jobs"
)

// Config tunes a Queue. Zero fields take the defaults below.
type Config struct {
	BufferSize int
	// Workers defaults to 1: classification writes to a single-writer store
	// and calls a rate-limited model.
	Workers    int
	MaxRetries int
	// Backoff is multiplied by the retry number.
	Backoff time.Duration
}

const (
	defaultBufferSize = 64
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// Queue is a channel-backed Publisher and Consumer for a single process.
type Queue struct {
	cfg   Config
	store jobs.JobStore
	log   zerolog.Logger

	jobChan   chan *jobs.ClassifyMonthJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	now       func() time.Time
}

// NewQueue creates a queue. store may be nil when job state is not queried.
func NewQueue(cfg Config, store jobs.JobStore, log zerolog.Logger) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Queue{
		cfg:       cfg,
		store:     store,
		log:       log.With().Str("component", "job_queue").Logger(),
		jobChan:   make(chan *jobs.ClassifyMonthJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		now:       time.Now,
	}
}

// PublishClassifyMonth fills in id, status and timestamps, records the job
// and enqueues it. It blocks while the buffer is full.
func (q *Queue) PublishClassifyMonth(ctx context.Context, job *jobs.ClassifyMonthJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.cfg.MaxRetries
	}
	if err := q.save(ctx, job); err != nil {
		return err
	}

	select {
	case q.jobChan <- job:
		q.log.Debug().Str("job_id", job.JobID).Str("month", job.Month).Msg("job enqueued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start launches the workers and returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}
	for range q.cfg.Workers {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	q.log.Info().Int("workers", q.cfg.Workers).Msg("job queue started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			q.process(ctx, job, handler)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *jobs.ClassifyMonthJob, handler jobs.JobHandler) {
	started := q.now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	q.saveQuietly(ctx, job)

	err := handler(ctx, job)

	done := q.now()
	job.CompletedAt = &done
	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.saveQuietly(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.saveQuietly(ctx, job)
		q.log.Error().Err(err).Str("job_id", job.JobID).Int("retries", job.RetryCount).Msg("job failed")
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.saveQuietly(ctx, job)

	// The retry gets its own copy so the store never sees a half-updated job.
	next := *job
	next.Status = jobs.JobStatusPending
	next.StartedAt = nil
	next.CompletedAt = nil
	backoff := time.Duration(next.RetryCount) * q.cfg.Backoff
	time.AfterFunc(backoff, func() {
		if err := q.PublishClassifyMonth(ctx, &next); err != nil {
			q.log.Warn().Err(err).Str("job_id", next.JobID).Msg("re-enqueue failed")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.ClassifyMonthJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}

func (q *Queue) saveQuietly(ctx context.Context, job *jobs.ClassifyMonthJob) {
	if err := q.save(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("saving job state failed")
	}
}

// Stop refuses new jobs and waits for the workers to return.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

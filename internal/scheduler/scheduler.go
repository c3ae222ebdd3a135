// Package scheduler enqueues the previous month's needs/wants
// classification on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/saku-tracker/internal/domain"
	"github.com/dvloznov/saku-tracker/internal/jobs"
)

// DefaultSpec runs at 09:00 on the first day of each month.
const DefaultSpec = "0 9 1 * *"

type Scheduler struct {
	cron *cron.Cron
	pub  jobs.Publisher
	log  zerolog.Logger
	now  func() time.Time
}

// New validates spec (standard five-field cron syntax) and registers the
// monthly job. An empty spec uses DefaultSpec.
func New(spec string, pub jobs.Publisher, log zerolog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	s := &Scheduler{
		cron: cron.New(),
		pub:  pub,
		log:  log.With().Str("component", "scheduler").Logger(),
		now:  time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	s.log.Info().Str("schedule", spec).Msg("monthly classification scheduled")
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.EnqueuePrevious(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled classification not enqueued")
	}
}

// EnqueuePrevious publishes a classification job for the month before now.
// The cache is bypassed so late entries are picked up.
func (s *Scheduler) EnqueuePrevious(ctx context.Context) (*jobs.ClassifyMonthJob, error) {
	job := &jobs.ClassifyMonthJob{Month: domain.PreviousMonthKey(s.now()), Force: true}
	if err := s.pub.PublishClassifyMonth(ctx, job); err != nil {
		return nil, fmt.Errorf("EnqueuePrevious: %w", err)
	}
	s.log.Info().Str("job_id", job.JobID).Str("month", job.Month).Msg("classification enqueued")
	return job, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running enqueue, or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

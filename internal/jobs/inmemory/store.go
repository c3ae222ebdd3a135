package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/saku-tracker/internal/jobs"
)

// Store keeps job state in memory. State is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ClassifyMonthJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ClassifyMonthJob)}
}

// SaveJob stores a copy of job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ClassifyMonthJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	cp := *job
	s.mu.Lock()
	s.jobs[job.JobID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ClassifyMonthJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ClassifyMonthJob, error) {
	s.mu.RLock()
	result := make([]*jobs.ClassifyMonthJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Month != "" && job.Month != filter.Month {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ClassifyMonthJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)

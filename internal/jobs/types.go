// Package jobs runs needs/wants classification of whole months in the
// background so the API and the scheduler never wait on the model.
package jobs

import (
	"context"
	"errors"
	"time"
)

type JobType string

const (
	// JobTypeClassifyMonth classifies the expenses of one month.
	JobTypeClassifyMonth JobType = "classify_month"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying means the last attempt failed and another is scheduled.
	JobStatusRetrying JobStatus = "retrying"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueClosed = errors.New("queue is closed")
)

// ClassifyMonthJob asks for the needs/wants analysis of Month ("2006-01").
type ClassifyMonthJob struct {
	JobID string `json:"job_id"`
	Month string `json:"month"`
	// Force skips the cached analysis.
	Force bool `json:"force"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is implemented by every job kind the queue carries.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ClassifyMonthJob) GetID() string        { return j.JobID }
func (j *ClassifyMonthJob) GetType() JobType     { return JobTypeClassifyMonth }
func (j *ClassifyMonthJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishClassifyMonth(ctx context.Context, job *ClassifyMonthJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs to finish or ctx to expire.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error schedules a retry while
// the job has retries left.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *ClassifyMonthJob) error
	GetJob(ctx context.Context, jobID string) (*ClassifyMonthJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ClassifyMonthJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Month  string
	Status JobStatus
	Limit  int
	Offset int
}

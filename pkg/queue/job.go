// Package queue runs document processing jobs on a broker-backed task queue.
// Two logical lists exist (priority and normal); a document never has more
// than one active job at a time.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether a job with this status still owns its document.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning || s == StatusRetrying
}

// Runnable reports whether a worker may pick the job up.
func (s Status) Runnable() bool {
	return s == StatusQueued || s == StatusRetrying
}

type Job struct {
	ID              string     `json:"id"`
	DocumentID      uuid.UUID  `json:"document_id"`
	Priority        bool       `json:"priority"`
	Status          Status     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	LastError       string     `json:"last_error,omitempty"`
	Errors          []string   `json:"errors,omitempty"`
	WorkerID        string     `json:"worker_id,omitempty"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	// Supersedes names the stale running job this one replaced.
	Supersedes      string     `json:"supersedes,omitempty"`
	EnqueuedAt      time.Time  `json:"enqueued_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Exhausted is true once a failed job has no attempts left.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

type HealthStatus string

const (
	Healthy     HealthStatus = "healthy"
	Degraded    HealthStatus = "degraded"
	Unavailable HealthStatus = "unavailable"
)

type Health struct {
	Status       HealthStatus     `json:"status"`
	QueueLengths map[string]int64 `json:"queue_lengths"`
	Workers      int              `json:"workers"`
	Message      string           `json:"message,omitempty"`
	CheckedAt    time.Time        `json:"checked_at"`
}

type EnqueueOptions struct {
	Priority bool
	// RetryAttempts is the number of retries after the first attempt. Zero
	// falls back to the queue default.
	RetryAttempts int
}

// TaskQueue is the broker contract the pipeline and the API depend on.
type TaskQueue interface {
	// Enqueue returns the id of the job processing the document. When the
	// document already has an active job its id is returned instead.
	Enqueue(ctx context.Context, documentID uuid.UUID, opts EnqueueOptions) (string, error)
	// Dequeue blocks up to timeout and returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, workerID string, timeout time.Duration) (*Job, error)
	Ack(ctx context.Context, jobID string) error
	// Retry records the failure and requeues the job if the error is
	// retry-able and attempts remain. The returned job carries the new status.
	Retry(ctx context.Context, jobID string, cause error) (*Job, error)
	Cancel(ctx context.Context, jobID string) (*Job, error)
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	Job(ctx context.Context, jobID string) (*Job, error)
	JobForDocument(ctx context.Context, documentID uuid.UUID) (*Job, error)
	Heartbeat(ctx context.Context, workerID string) error
	// Health never returns an error; broker problems show up in the status.
	Health(ctx context.Context) Health
}

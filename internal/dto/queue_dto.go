package dto

import (
	"time"

	"github.com/google/uuid"
)

type EnqueueRequest struct {
	DocumentId    uuid.UUID `json:"document_id" validate:"required"`
	Priority      bool      `json:"priority"`
	RetryAttempts int       `json:"retry_attempts" validate:"omitempty,min=1,max=10"`
}

type EnqueueResponse struct {
	JobId      string    `json:"job_id"`
	DocumentId uuid.UUID `json:"document_id"`
}

type JobResponse struct {
	Id              string     `json:"id"`
	DocumentId      uuid.UUID  `json:"document_id"`
	Priority        bool       `json:"priority"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	LastError       string     `json:"last_error,omitempty"`
	Errors          []string   `json:"errors,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	Supersedes      string     `json:"supersedes,omitempty"`
	EnqueuedAt      time.Time  `json:"enqueued_at"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
}

type QueueHealthResponse struct {
	Status       string           `json:"status"`
	QueueLengths map[string]int64 `json:"queue_lengths"`
	Workers      int              `json:"workers"`
	Message      string           `json:"message,omitempty"`
	CheckedAt    time.Time        `json:"checked_at"`
}

// Package jobs defines the background processing job model and the queue
// contracts it runs on.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested job is not in the store.
var ErrNotFound = errors.New("job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// ProcessDocumentJob asks a worker to run the full processing pipeline for
// one uploaded statement.
type ProcessDocumentJob struct {
	ID           string `json:"id"`
	FolderID     string `json:"folder_id"`
	Filename     string `json:"filename"`
	ForceReparse bool   `json:"force_reparse,omitempty"`

	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Attempts counts handler executions so far; the queue retries until
	// Attempts reaches MaxAttempts.
	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`
}

// Handler processes one job. A non-nil error marks the attempt failed and
// makes the queue retry until the attempt budget is spent.
type Handler func(ctx context.Context, job *ProcessDocumentJob) error

// Publisher enqueues jobs. Queue implementations may be in-memory or a
// broker-backed replacement with the same contract.
type Publisher interface {
	Publish(ctx context.Context, job *ProcessDocumentJob) error
	Close() error
}

// Consumer drains jobs into a handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Stop(ctx context.Context) error
}

// Store tracks job state so status can be queried while and after a job
// runs.
type Store interface {
	Save(ctx context.Context, job *ProcessDocumentJob) error
	Get(ctx context.Context, jobID string) (*ProcessDocumentJob, error)
	List(ctx context.Context, filter Filter) ([]*ProcessDocumentJob, error)
}

// Filter narrows Store.List results.
type Filter struct {
	FolderID string
	Status   Status
	Limit    int
}

// Package inmemory provides channel-backed implementations of the job queue
// and job store, suitable for single-instance deployments and tests.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-extractor/internal/jobs"
)

const (
	defaultWorkers     = 5
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// QueueConfig tunes the in-memory queue. Zero values select the defaults.
type QueueConfig struct {
	// BufferSize is how many jobs can sit queued before Publish blocks.
	BufferSize int
	// Workers is the number of concurrent handler goroutines.
	Workers int
	// RetryBackoff scales linearly with the attempt number.
	RetryBackoff time.Duration
}

// Queue distributes jobs over a buffered channel. It is safe for concurrent
// use and implements both Publisher and Consumer.
type Queue struct {
	cfg   QueueConfig
	store jobs.Store
	log   zerolog.Logger

	jobCh   chan *jobs.ProcessDocumentJob
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates an in-memory job queue backed by store. A nil store
// disables state tracking.
func NewQueue(cfg QueueConfig, store jobs.Store, log zerolog.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultBackoff
	}
	return &Queue{
		cfg:     cfg,
		store:   store,
		log:     log,
		jobCh:   make(chan *jobs.ProcessDocumentJob, cfg.BufferSize),
		closeCh: make(chan struct{}),
	}
}

// Publish enqueues a job, filling in ID, status, timestamps and the attempt
// budget when unset.
func (q *Queue) Publish(ctx context.Context, job *jobs.ProcessDocumentJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = defaultMaxAttempts
	}

	if q.store != nil {
		if err := q.store.Save(ctx, job); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
	}

	select {
	case q.jobCh <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeCh:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return fmt.Errorf("queue is closed")
	}

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeCh:
			return
		case job := <-q.jobCh:
			if job == nil {
				return
			}
			q.runJob(ctx, job, handler)
		}
	}
}

// runJob executes one attempt. Failed attempts are re-enqueued after a
// backoff until the attempt budget is spent.
func (q *Queue) runJob(ctx context.Context, job *jobs.ProcessDocumentJob, handler jobs.Handler) {
	now := time.Now()
	job.Status = jobs.StatusRunning
	job.StartedAt = &now
	q.saveState(ctx, job)

	err := handler(ctx, job)
	job.Attempts++

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.StatusCompleted
		job.Error = ""
	case job.Attempts < job.MaxAttempts:
		job.Status = jobs.StatusRetrying
		job.Error = err.Error()
		q.log.Warn().Err(err).
			Str("job", job.ID).
			Int("attempt", job.Attempts).
			Msg("Job attempt failed, retrying")

		backoff := time.Duration(job.Attempts) * q.cfg.RetryBackoff
		time.AfterFunc(backoff, func() {
			job.Status = jobs.StatusPending
			job.StartedAt = nil
			job.CompletedAt = nil
			if pubErr := q.Publish(ctx, job); pubErr != nil {
				q.log.Error().Err(pubErr).Str("job", job.ID).Msg("Retry publish failed")
			}
		})
	default:
		job.Status = jobs.StatusFailed
		job.Error = err.Error()
		q.log.Error().Err(err).
			Str("job", job.ID).
			Int("attempts", job.Attempts).
			Msg("Job failed permanently")
	}

	q.saveState(ctx, job)
}

func (q *Queue) saveState(ctx context.Context, job *jobs.ProcessDocumentJob) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(ctx, job); err != nil {
		q.log.Error().Err(err).Str("job", job.ID).Msg("Job state save failed")
	}
}

// Stop closes the queue and waits for workers to drain, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeCh)
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

// Close implements Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

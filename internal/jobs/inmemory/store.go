package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/statement-extractor/internal/jobs"
)

// Store keeps job state in memory. State is lost on restart; swap in a
// database-backed Store for durability.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ProcessDocumentJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ProcessDocumentJob)}
}

// Save stores a copy of the job so later mutations by the queue do not leak
// into readers.
func (s *Store) Save(_ context.Context, job *jobs.ProcessDocumentJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// Get returns a copy of the job, or jobs.ErrNotFound.
func (s *Store) Get(_ context.Context, jobID string) (*jobs.ProcessDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrNotFound, jobID)
	}
	copied := *job
	return &copied, nil
}

// List returns matching jobs ordered by creation time, newest first.
func (s *Store) List(_ context.Context, filter jobs.Filter) ([]*jobs.ProcessDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ProcessDocumentJob
	for _, job := range s.jobs {
		if filter.FolderID != "" && job.FolderID != filter.FolderID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		copied := *job
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

var _ jobs.Store = (*Store)(nil)

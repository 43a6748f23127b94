// Package jobs owns the Job lifecycle: admission, sequential per-job
// chunk processing, progress tracking, and retirement.
package jobs

import (
	"sync"
	"time"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// Store is the in-memory mapping from job id to Job. Reads (HTTP status
// polling) take the read lock; the one goroutine owning a given job takes
// the write lock for its own mutations.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*core.Job
}

// NewStore builds an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*core.Job)}
}

// Create inserts a new job record.
func (s *Store) Create(job core.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := job
	s.jobs[job.ID] = &j
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Job{}, apperrors.NotFound("job not found")
	}

	return *j, nil
}

// Update applies mutate to the stored job under the write lock and
// returns the updated copy.
func (s *Store) Update(id string, mutate func(*core.Job)) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Job{}, apperrors.NotFound("job not found")
	}

	mutate(j)

	return *j, nil
}

// List returns a copy of every job currently stored.
func (s *Store) List() []core.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}

	return out
}

// CleanupOldJobs removes every job whose CreatedAt is older than maxAge
// relative to now, returning the count removed.
func (s *Store) CleanupOldJobs(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	removed := 0

	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)

			removed++
		}
	}

	return removed
}

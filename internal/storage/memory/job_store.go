// Package memory provides in-memory store implementations for
// development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"recipeharvest/internal/recipe"
)

// JobStore keeps crawl jobs in a map guarded by a mutex.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]recipe.CrawlJob
	order []string
	seq   int
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]recipe.CrawlJob)}
}

// CreateJob stores a new pending job, assigning an ID and timestamps
// when the caller left them empty.
func (s *JobStore) CreateJob(_ context.Context, job recipe.CrawlJob) (recipe.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", s.seq)
	}
	if _, exists := s.jobs[job.ID]; exists {
		return recipe.CrawlJob{}, fmt.Errorf("job %s already exists", job.ID)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return job, nil
}

// ClaimNext claims the oldest pending or due cooling_down job.
func (s *JobStore) ClaimNext(_ context.Context, now time.Time) (recipe.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		job := s.jobs[id]
		if !claimable(job, now) {
			continue
		}
		if job.Status == recipe.JobStatusCoolingDown {
			job.RetryCount++
		}
		job.Status = recipe.JobStatusProcessing
		job.NextRetryAt = nil
		job.UpdatedAt = now
		s.jobs[id] = job
		return job, nil
	}
	return recipe.CrawlJob{}, recipe.ErrNoClaimableJob
}

func claimable(job recipe.CrawlJob, now time.Time) bool {
	if job.IsArchived {
		return false
	}
	switch job.Status {
	case recipe.JobStatusPending:
		return true
	case recipe.JobStatusCoolingDown:
		return job.NextRetryAt != nil && !job.NextRetryAt.After(now)
	default:
		return false
	}
}

// UpdateJobStatus records a job's new status, counters, and log.
func (s *JobStore) UpdateJobStatus(_ context.Context, jobID string, status recipe.JobStatus, recipesFound int, logText string, nextRetryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return recipe.ErrJobNotFound
	}
	job.Status = status
	job.RecipesFound = recipesFound
	job.Log = logText
	job.NextRetryAt = nextRetryAt
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

// UpdateJobProgress persists the running recipes_found counter.
func (s *JobStore) UpdateJobProgress(_ context.Context, jobID string, recipesFound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return recipe.ErrJobNotFound
	}
	job.RecipesFound = recipesFound
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

// FindLiveJob returns the live non-archived job for a URL, if any.
func (s *JobStore) FindLiveJob(_ context.Context, url string) (recipe.CrawlJob, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		job := s.jobs[id]
		if job.URL == url && !job.IsArchived && job.Status.Live() {
			return job, true, nil
		}
	}
	return recipe.CrawlJob{}, false, nil
}

// LastCompletedJob returns the most recently updated completed job for
// a URL, if one exists.
func (s *JobStore) LastCompletedJob(_ context.Context, url string) (recipe.CrawlJob, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  recipe.CrawlJob
		found bool
	)
	for _, job := range s.jobs {
		if job.URL != url || job.Status != recipe.JobStatusCompleted {
			continue
		}
		if !found || job.UpdatedAt.After(best.UpdatedAt) {
			best = job
			found = true
		}
	}
	return best, found, nil
}

// ListJobs returns jobs filtered by archive state, newest first.
func (s *JobStore) ListJobs(_ context.Context, archived bool) ([]recipe.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recipe.CrawlJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.IsArchived == archived {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ArchiveJob soft-deletes one job row.
func (s *JobStore) ArchiveJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return recipe.ErrJobNotFound
	}
	job.IsArchived = true
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

// ArchiveTerminalJobs archives every completed or failed job.
func (s *JobStore) ArchiveTerminalJobs(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, job := range s.jobs {
		if job.IsArchived || !job.Status.Terminal() {
			continue
		}
		job.IsArchived = true
		job.UpdatedAt = time.Now().UTC()
		s.jobs[id] = job
		changed++
	}
	return changed, nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (recipe.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return recipe.CrawlJob{}, recipe.ErrJobNotFound
	}
	return job, nil
}

package recipe

import (
	"context"
	"errors"
	"time"
)

// ErrNoClaimableJob is returned by ClaimNext when no pending or due
// cooling_down job exists.
var ErrNoClaimableJob = errors.New("no claimable job")

// ErrJobNotFound is returned when a job row does not exist.
var ErrJobNotFound = errors.New("job not found")

// JobStore persists crawl jobs. Jobs are never deleted, only archived.
type JobStore interface {
	// CreateJob inserts a new job row and returns it with store-assigned
	// fields (id, timestamps) populated.
	CreateJob(ctx context.Context, job CrawlJob) (CrawlJob, error)

	// GetJob fetches a job by ID, or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (CrawlJob, error)

	// ClaimNext atomically claims the oldest claimable job: status pending,
	// or cooling_down with next_retry_at <= now, excluding archived rows.
	// Claiming sets status to processing, clears next_retry_at, and
	// increments retry_count when the job was cooling down. Returns
	// ErrNoClaimableJob when nothing is due.
	ClaimNext(ctx context.Context, now time.Time) (CrawlJob, error)

	// UpdateJobStatus moves a job to a new status with its final counters
	// and diagnostic log. nextRetryAt is only set for cooling_down.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, recipesFound int, logText string, nextRetryAt *time.Time) error

	// UpdateJobProgress persists the running recipes_found counter so
	// progress survives a crash mid-session.
	UpdateJobProgress(ctx context.Context, jobID string, recipesFound int) error

	// FindLiveJob returns the live (pending/processing/cooling_down)
	// non-archived job for a URL, if one exists.
	FindLiveJob(ctx context.Context, url string) (CrawlJob, bool, error)

	// LastCompletedJob returns the most recently updated completed job
	// for a URL, if one exists. The auditor reads its retry_count to
	// cap automatic repair attempts.
	LastCompletedJob(ctx context.Context, url string) (CrawlJob, bool, error)

	// ListJobs returns jobs filtered by archive state, newest first.
	ListJobs(ctx context.Context, archived bool) ([]CrawlJob, error)

	// ArchiveJob soft-deletes one job row.
	ArchiveJob(ctx context.Context, jobID string) error

	// ArchiveTerminalJobs archives every completed or failed job and
	// returns how many rows changed.
	ArchiveTerminalJobs(ctx context.Context) (int64, error)
}

// RecipeStore persists extracted recipes keyed by normalized URL.
type RecipeStore interface {
	// UpsertRecipe inserts or replaces the recipe for its URL.
	UpsertRecipe(ctx context.Context, r Recipe) error

	// NextAuditBatch returns up to limit recipes that are qa_status
	// pending or have never been audited.
	NextAuditBatch(ctx context.Context, limit int) ([]Recipe, error)

	// ApplyAudit persists the auditor's verdict and staged corrections
	// in one update.
	ApplyAudit(ctx context.Context, update AuditUpdate) error
}

// BlobStore writes raw page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ingestion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

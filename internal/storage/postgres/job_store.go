package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"recipeharvest/internal/recipe"
)

const jobColumns = `id, url, status, retry_count, next_retry_at, recipes_found, log, is_archived, created_at, updated_at`

// JobStore persists crawl jobs in Postgres.
type JobStore struct {
	pool dbPool
	ids  recipe.IDGenerator
}

// NewJobStore creates a Postgres-backed JobStore.
func NewJobStore(ctx context.Context, cfg Config, ids recipe.IDGenerator) (*JobStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &JobStore{pool: pool, ids: ids}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewJobStoreWithPool(pool dbPool, ids recipe.IDGenerator) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job recipe.CrawlJob) (recipe.CrawlJob, error) {
	if job.URL == "" {
		return recipe.CrawlJob{}, fmt.Errorf("job url is required")
	}
	if job.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return recipe.CrawlJob{}, fmt.Errorf("generate job id: %w", err)
		}
		job.ID = id
	}
	if job.Status == "" {
		job.Status = recipe.JobStatusPending
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	query := `
INSERT INTO crawl_jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	args := []any{
		job.ID, job.URL, string(job.Status), job.RetryCount, job.NextRetryAt,
		job.RecipesFound, job.Log, job.IsArchived, job.CreatedAt, job.UpdatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return recipe.CrawlJob{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (recipe.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.CrawlJob{}, recipe.ErrJobNotFound
	}
	if err != nil {
		return recipe.CrawlJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext claims the oldest claimable job with a single conditional
// update, so two workers racing the same row cannot both win.
func (s *JobStore) ClaimNext(ctx context.Context, now time.Time) (recipe.CrawlJob, error) {
	query := `
UPDATE crawl_jobs SET
	status = 'processing',
	retry_count = retry_count + CASE WHEN status = 'cooling_down' THEN 1 ELSE 0 END,
	next_retry_at = NULL,
	updated_at = $1
WHERE id = (
	SELECT id FROM crawl_jobs
	WHERE is_archived = FALSE
	  AND (status = 'pending' OR (status = 'cooling_down' AND next_retry_at <= $1))
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns
	job, err := scanJob(s.pool.QueryRow(ctx, query, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.CrawlJob{}, recipe.ErrNoClaimableJob
	}
	if err != nil {
		return recipe.CrawlJob{}, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus records a job's new status, counters, and log.
func (s *JobStore) UpdateJobStatus(ctx context.Context, jobID string, status recipe.JobStatus, recipesFound int, logText string, nextRetryAt *time.Time) error {
	query := `
UPDATE crawl_jobs SET status = $2, recipes_found = $3, log = $4, next_retry_at = $5, updated_at = $6
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, jobID, string(status), recipesFound, logText, nextRetryAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recipe.ErrJobNotFound
	}
	return nil
}

// UpdateJobProgress persists the running recipes_found counter.
func (s *JobStore) UpdateJobProgress(ctx context.Context, jobID string, recipesFound int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_jobs SET recipes_found = $2, updated_at = $3 WHERE id = $1`,
		jobID, recipesFound, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recipe.ErrJobNotFound
	}
	return nil
}

// FindLiveJob returns the live non-archived job for a URL, if any.
func (s *JobStore) FindLiveJob(ctx context.Context, url string) (recipe.CrawlJob, bool, error) {
	query := `
SELECT ` + jobColumns + ` FROM crawl_jobs
WHERE url = $1 AND is_archived = FALSE AND status IN ('pending','processing','cooling_down')
LIMIT 1`
	job, err := scanJob(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.CrawlJob{}, false, nil
	}
	if err != nil {
		return recipe.CrawlJob{}, false, fmt.Errorf("find live job: %w", err)
	}
	return job, true, nil
}

// LastCompletedJob returns the most recently updated completed job for
// a URL, if one exists.
func (s *JobStore) LastCompletedJob(ctx context.Context, url string) (recipe.CrawlJob, bool, error) {
	query := `
SELECT ` + jobColumns + ` FROM crawl_jobs
WHERE url = $1 AND status = 'completed'
ORDER BY updated_at DESC
LIMIT 1`
	job, err := scanJob(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.CrawlJob{}, false, nil
	}
	if err != nil {
		return recipe.CrawlJob{}, false, fmt.Errorf("last completed job: %w", err)
	}
	return job, true, nil
}

// ListJobs returns jobs filtered by archive state, newest first.
func (s *JobStore) ListJobs(ctx context.Context, archived bool) ([]recipe.CrawlJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM crawl_jobs WHERE is_archived = $1 ORDER BY created_at DESC`,
		archived)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []recipe.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ArchiveJob soft-deletes one job row.
func (s *JobStore) ArchiveJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_jobs SET is_archived = TRUE, updated_at = $2 WHERE id = $1`,
		jobID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recipe.ErrJobNotFound
	}
	return nil
}

// ArchiveTerminalJobs archives every completed or failed job.
func (s *JobStore) ArchiveTerminalJobs(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_jobs SET is_archived = TRUE, updated_at = $1 WHERE is_archived = FALSE AND status IN ('completed','failed')`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("archive terminal jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (recipe.CrawlJob, error) {
	var (
		job    recipe.CrawlJob
		status string
	)
	err := row.Scan(
		&job.ID, &job.URL, &status, &job.RetryCount, &job.NextRetryAt,
		&job.RecipesFound, &job.Log, &job.IsArchived, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return recipe.CrawlJob{}, err
	}
	job.Status = recipe.JobStatus(status)
	return job, nil
}

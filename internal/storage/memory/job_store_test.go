package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipeharvest/internal/recipe"
)

func TestJobStoreClaimLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := store.CreateJob(ctx, recipe.CrawlJob{URL: "https://example.com/a", Status: recipe.JobStatusPending})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if _, err := store.CreateJob(ctx, recipe.CrawlJob{URL: "https://example.com/b", Status: recipe.JobStatusPending}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	claimed, err := store.ClaimNext(ctx, now)
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if claimed.ID != first.ID {
		t.Fatalf("expected oldest job %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != recipe.JobStatusProcessing {
		t.Fatalf("expected processing, got %s", claimed.Status)
	}

	if err := store.UpdateJobStatus(ctx, claimed.ID, recipe.JobStatusCompleted, 3, "", nil); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	final, err := store.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != recipe.JobStatusCompleted || final.RecipesFound != 3 {
		t.Fatalf("unexpected final job %+v", final)
	}

	last, ok, err := store.LastCompletedJob(ctx, "https://example.com/a")
	if err != nil || !ok {
		t.Fatalf("LastCompletedJob() = %v, %v", ok, err)
	}
	if last.ID != claimed.ID {
		t.Fatalf("expected last completed job %s, got %s", claimed.ID, last.ID)
	}
}

func TestJobStoreClaimCoolingDown(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	job, err := store.CreateJob(ctx, recipe.CrawlJob{URL: "https://example.com", Status: recipe.JobStatusPending})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.UpdateJobStatus(ctx, job.ID, recipe.JobStatusCoolingDown, 0, "blocked", &future); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}

	if _, err := store.ClaimNext(ctx, now); !errors.Is(err, recipe.ErrNoClaimableJob) {
		t.Fatalf("expected ErrNoClaimableJob before next_retry_at, got %v", err)
	}

	claimed, err := store.ClaimNext(ctx, future.Add(time.Minute))
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if claimed.RetryCount != 1 {
		t.Fatalf("expected retry_count incremented on cooling_down claim, got %d", claimed.RetryCount)
	}
	if claimed.NextRetryAt != nil {
		t.Fatal("expected next_retry_at cleared on claim")
	}
}

func TestJobStoreArchive(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	now := time.Now().UTC()

	job, err := store.CreateJob(ctx, recipe.CrawlJob{URL: "https://example.com", Status: recipe.JobStatusPending})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.ArchiveJob(ctx, job.ID); err != nil {
		t.Fatalf("ArchiveJob() error = %v", err)
	}
	if _, err := store.ClaimNext(ctx, now); !errors.Is(err, recipe.ErrNoClaimableJob) {
		t.Fatalf("expected archived jobs to be unclaimable, got %v", err)
	}

	archived, err := store.ListJobs(ctx, true)
	if err != nil || len(archived) != 1 {
		t.Fatalf("ListJobs(archived) = %v, %v", archived, err)
	}
	active, err := store.ListJobs(ctx, false)
	if err != nil || len(active) != 0 {
		t.Fatalf("ListJobs(active) = %v, %v", active, err)
	}
}

func TestJobStoreFindLive(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	if _, err := store.CreateJob(ctx, recipe.CrawlJob{URL: "https://example.com", Status: recipe.JobStatusPending}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if _, ok, err := store.FindLiveJob(ctx, "https://example.com"); err != nil || !ok {
		t.Fatalf("FindLiveJob() = %v, %v", ok, err)
	}
	if _, ok, err := store.FindLiveJob(ctx, "https://other.com"); err != nil || ok {
		t.Fatalf("expected no live job for other URL, got %v, %v", ok, err)
	}
}

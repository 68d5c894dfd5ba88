package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recipeharvest/internal/recipe"
	"recipeharvest/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.RandomDelay = time.Millisecond
	cfg.RetryExtraDelay = time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxPages = 20
	return cfg
}

const pieRecipeJSON = `{
	"@context": "https://schema.org",
	"@type": "Recipe",
	"name": "Apple Pie",
	"description": "A classic double-crust apple pie.",
	"image": "https://example.com/images/apple-pie.jpg",
	"recipeIngredient": ["6 apples", "1 cup sugar", "2 cups flour"],
	"recipeInstructions": [
		{"@type": "HowToStep", "text": "Make the crust."},
		{"@type": "HowToStep", "text": "Fill and bake."}
	]
}`

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="/recipes/apple-pie">Apple Pie</a>
			<a href="/about">About</a>
			<a href="/privacy-policy">Privacy</a>
		</body></html>`)
	})
	mux.HandleFunc("/recipes/apple-pie", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>Apple Pie</title>
			<script type="application/ld+json">%s</script>
			</head><body><h1>Apple Pie</h1></body></html>`, pieRecipeJSON)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		t.Error("excluded path /about was fetched")
	})
	mux.HandleFunc("/privacy-policy", func(w http.ResponseWriter, r *http.Request) {
		t.Error("excluded path /privacy-policy was fetched")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunIngestsAndCompletes(t *testing.T) {
	srv := newTestSite(t)
	ctx := context.Background()

	jobs := memory.NewJobStore()
	recipes := memory.NewRecipeStore()
	snapshots := memory.NewBlobStore()
	events := memory.NewPublisher()

	job, err := jobs.CreateJob(ctx, recipe.CrawlJob{URL: srv.URL + "/", Status: recipe.JobStatusPending})
	require.NoError(t, err)
	job, err = jobs.ClaimNext(ctx, time.Now())
	require.NoError(t, err)

	runner := NewRunner(testConfig(), Deps{
		Jobs:      jobs,
		Recipes:   recipes,
		Snapshots: snapshots,
		Events:    events,
		Clock:     fixedClock{now: time.Now().UTC()},
	})
	require.NoError(t, runner.Run(ctx, job))

	final, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, recipe.JobStatusCompleted, final.Status)
	require.Equal(t, 1, final.RecipesFound)

	stored, ok, err := recipes.GetRecipe(ctx, recipe.NormalizeURL(srv.URL+"/recipes/apple-pie"))
	require.NoError(t, err)
	require.True(t, ok, "extracted recipe should be persisted under its normalized URL")
	require.Equal(t, "Apple Pie", stored.Name)
	require.Equal(t, recipe.QAStatusPending, stored.QAStatus)
	require.GreaterOrEqual(t, stored.QualityScore, 60)

	require.NotEmpty(t, events.Messages(), "ingest event should be published")
}

func TestRunStatusBlockCoolsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := memory.NewJobStore()

	job, err := jobs.CreateJob(ctx, recipe.CrawlJob{URL: srv.URL + "/", Status: recipe.JobStatusPending})
	require.NoError(t, err)
	job, err = jobs.ClaimNext(ctx, now)
	require.NoError(t, err)

	runner := NewRunner(testConfig(), Deps{
		Jobs:    jobs,
		Recipes: memory.NewRecipeStore(),
		Clock:   fixedClock{now: now},
	})
	require.NoError(t, runner.Run(ctx, job))

	final, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, recipe.JobStatusCoolingDown, final.Status)
	require.NotNil(t, final.NextRetryAt)
	require.Equal(t, now.Add(24*time.Hour), final.NextRetryAt.UTC())
}

func TestRunContentBlockCoolDownScalesWithRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`)
	}))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := memory.NewJobStore()

	job, err := jobs.CreateJob(ctx, recipe.CrawlJob{URL: srv.URL + "/", Status: recipe.JobStatusPending})
	require.NoError(t, err)
	retryAt := now.Add(-time.Minute)
	require.NoError(t, jobs.UpdateJobStatus(ctx, job.ID, recipe.JobStatusCoolingDown, 0, "blocked", &retryAt))
	job, err = jobs.ClaimNext(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, job.RetryCount)

	runner := NewRunner(testConfig(), Deps{
		Jobs:    jobs,
		Recipes: memory.NewRecipeStore(),
		Clock:   fixedClock{now: now},
	})
	require.NoError(t, runner.Run(ctx, job))

	final, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, recipe.JobStatusCoolingDown, final.Status)
	require.NotNil(t, final.NextRetryAt)
	require.Equal(t, now.Add(48*time.Hour), final.NextRetryAt.UTC(), "second attempt cools down twice as long")
}

func TestRunCanceledContextFailsJob(t *testing.T) {
	srv := newTestSite(t)
	ctx := context.Background()

	jobs := memory.NewJobStore()
	job, err := jobs.CreateJob(ctx, recipe.CrawlJob{URL: srv.URL + "/", Status: recipe.JobStatusPending})
	require.NoError(t, err)
	job, err = jobs.ClaimNext(ctx, time.Now())
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	runner := NewRunner(testConfig(), Deps{
		Jobs:    jobs,
		Recipes: memory.NewRecipeStore(),
		Clock:   fixedClock{now: time.Now().UTC()},
	})
	require.NoError(t, runner.Run(canceled, job))

	final, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, recipe.JobStatusFailed, final.Status)
}

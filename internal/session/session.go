// Package session drives one crawl job from claim to terminal status:
// politeness delays, link discovery, block detection, extraction,
// quality gating, and persistence.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"recipeharvest/internal/extract"
	"recipeharvest/internal/hash/sha256"
	"recipeharvest/internal/metrics"
	"recipeharvest/internal/recipe"
)

// Config controls crawl behavior for one session.
type Config struct {
	UserAgent        string
	MaxPages         int
	IngestThreshold  int
	BaseDelay        time.Duration
	RandomDelay      time.Duration
	RetryExtraDelay  time.Duration
	Parallelism      int
	RetryParallelism int
	RequestTimeout   time.Duration
	CooldownStep     time.Duration
	EventTopic       string
	RespectRobots    bool
}

// DefaultConfig returns the production crawl parameters.
func DefaultConfig() Config {
	return Config{
		UserAgent:        "recipeharvest/1.0",
		MaxPages:         200,
		IngestThreshold:  60,
		BaseDelay:        time.Second,
		RandomDelay:      2 * time.Second,
		RetryExtraDelay:  5 * time.Second,
		Parallelism:      2,
		RetryParallelism: 1,
		RequestTimeout:   15 * time.Second,
		CooldownStep:     24 * time.Hour,
		EventTopic:       "recipes.ingested",
	}
}

// Deps are the collaborators a session needs. Snapshots and Events are
// optional; nil disables them.
type Deps struct {
	Jobs      recipe.JobStore
	Recipes   recipe.RecipeStore
	Snapshots recipe.BlobStore
	Events    recipe.Publisher
	Clock     recipe.Clock
	Logger    *zap.Logger
}

// Runner executes crawl sessions.
type Runner struct {
	cfg    Config
	deps   Deps
	hasher *sha256.Hasher
}

// NewRunner builds a Runner.
func NewRunner(cfg Config, deps Deps) *Runner {
	metrics.Init()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, hasher: sha256.New()}
}

// Anchor selectors likely to point at recipe cards or pagination.
// These are enqueued before the broad same-host pass.
const priorityLinkSelectors = `a[href*="recipe"], .entry-title a, a.entry-title-link, .post-summary a, nav.pagination a, .nav-links a`

// Known non-content paths excluded from the crawl frontier.
var excludedPathFilter = regexp.MustCompile(`(?i)/(about|contact|privacy-policy|login|cart)/?$`)

type run struct {
	runner *Runner
	job    recipe.CrawlJob
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu           sync.Mutex
	recipesFound int
	errs         []string
	blocked      bool
	pages        int
}

// Run executes one job to a terminal status. The returned error covers
// infrastructure failures only; page-level failures land in the job log.
func (rn *Runner) Run(ctx context.Context, job recipe.CrawlJob) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		runner: rn,
		job:    job,
		ctx:    ctx,
		cancel: cancel,
		logger: rn.deps.Logger.With(zap.String("job_id", job.ID), zap.String("url", job.URL)),
	}

	collector, err := r.newCollector()
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("build collector: %v", err))
	}

	r.logger.Info("session started", zap.Int("retry_count", job.RetryCount))
	if err := collector.Visit(job.URL); err != nil {
		r.recordError(fmt.Sprintf("visit %s: %v", job.URL, err))
	}
	collector.Wait()

	return r.finish(ctx)
}

func (r *run) newCollector() (*colly.Collector, error) {
	seed, err := url.Parse(r.job.URL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	host := seed.Hostname()
	allowed := []string{host, seed.Host}
	if other, ok := strings.CutPrefix(host, "www."); ok {
		allowed = append(allowed, other)
	} else {
		allowed = append(allowed, "www."+host)
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(allowed...),
		colly.UserAgent(r.runner.cfg.UserAgent),
		colly.DisallowedURLFilters(excludedPathFilter),
	)
	c.IgnoreRobotsTxt = !r.runner.cfg.RespectRobots
	c.SetRequestTimeout(r.runner.cfg.RequestTimeout)

	// Retries crawl slower and narrower than first attempts.
	cfg := r.runner.cfg
	delay := cfg.BaseDelay
	parallelism := cfg.Parallelism
	if r.job.RetryCount > 0 {
		delay += cfg.RetryExtraDelay
		parallelism = cfg.RetryParallelism
	}
	if parallelism < 1 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("set limit rule: %w", err)
	}

	c.OnRequest(func(req *colly.Request) {
		if r.ctx.Err() != nil {
			req.Abort()
			return
		}
		r.mu.Lock()
		r.pages++
		over := cfg.MaxPages > 0 && r.pages > cfg.MaxPages
		r.mu.Unlock()
		if over {
			req.Abort()
		}
	})

	c.OnResponse(r.handlePage)

	c.OnError(func(resp *colly.Response, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		if resp != nil && blockedStatus(resp.StatusCode) {
			metrics.ObservePage(errURL(resp), "blocked")
			r.coolDown(fmt.Sprintf("blocked: http %d from %s", resp.StatusCode, resp.Request.URL))
			return
		}
		metrics.ObservePage(errURL(resp), "error")
		r.recordError(fmt.Sprintf("fetch %s: %v", errURL(resp), err))
	})

	// Priority pass first: recipe-shaped and pagination anchors.
	c.OnHTML(priorityLinkSelectors, func(e *colly.HTMLElement) {
		r.enqueue(e)
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		r.enqueue(e)
	})

	return c, nil
}

func errURL(resp *colly.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return "unknown"
	}
	return resp.Request.URL.String()
}

func (r *run) enqueue(e *colly.HTMLElement) {
	if r.ctx.Err() != nil {
		return
	}
	link := e.Request.AbsoluteURL(e.Attr("href"))
	if link == "" || strings.HasPrefix(link, "mailto:") {
		return
	}
	// AlreadyVisited and filter rejections are expected here.
	_ = e.Request.Visit(link)
}

func (r *run) handlePage(resp *colly.Response) {
	if r.ctx.Err() != nil {
		return
	}
	pageURL := resp.Request.URL.String()

	r.snapshot(pageURL, resp.Body)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		r.recordError(fmt.Sprintf("parse %s: %v", pageURL, err))
		return
	}

	if blockedContent(doc.Find("title").Text(), string(resp.Body)) {
		metrics.ObservePage(pageURL, "blocked")
		r.coolDown(fmt.Sprintf("blocked: anti-bot interstitial at %s", pageURL))
		return
	}
	metrics.ObservePage(pageURL, "parsed")

	for _, candidate := range extract.FromDocument(doc, pageURL) {
		score := recipe.Score(candidate)
		if score < r.runner.cfg.IngestThreshold {
			r.logger.Debug("candidate below ingest threshold",
				zap.String("page", pageURL), zap.Int("score", score))
			continue
		}
		candidate.QualityScore = score
		candidate.QAStatus = recipe.QAStatusPending
		r.persist(candidate)
	}
}

func (r *run) persist(candidate recipe.Recipe) {
	// Status writes must survive session cancellation.
	ctx := context.WithoutCancel(r.ctx)
	if err := r.runner.deps.Recipes.UpsertRecipe(ctx, candidate); err != nil {
		r.recordError(fmt.Sprintf("upsert %s: %v", candidate.URL, err))
		return
	}

	r.mu.Lock()
	r.recipesFound++
	found := r.recipesFound
	r.mu.Unlock()

	if err := r.runner.deps.Jobs.UpdateJobProgress(ctx, r.job.ID, found); err != nil {
		r.logger.Warn("progress update failed", zap.Error(err))
	}
	metrics.ObserveRecipeIngested()
	r.publish(ctx, candidate)
	r.logger.Info("recipe ingested",
		zap.String("recipe_url", candidate.URL),
		zap.Int("quality_score", candidate.QualityScore),
		zap.Int("recipes_found", found))
}

func (r *run) publish(ctx context.Context, candidate recipe.Recipe) {
	if r.runner.deps.Events == nil {
		return
	}
	event := map[string]any{
		"job_id":        r.job.ID,
		"url":           candidate.URL,
		"name":          candidate.Name,
		"quality_score": candidate.QualityScore,
	}
	if _, err := r.runner.deps.Events.Publish(ctx, r.runner.cfg.EventTopic, event); err != nil {
		r.logger.Warn("publish ingest event failed", zap.Error(err))
	}
}

func (r *run) snapshot(pageURL string, body []byte) {
	if r.runner.deps.Snapshots == nil {
		return
	}
	digest, err := r.runner.hasher.Hash([]byte(pageURL))
	if err != nil {
		return
	}
	path := fmt.Sprintf("jobs/%s/%s.html", r.job.ID, digest)
	if _, err := r.runner.deps.Snapshots.PutObject(context.WithoutCancel(r.ctx), path, "text/html", body); err != nil {
		r.logger.Warn("snapshot write failed", zap.String("page", pageURL), zap.Error(err))
	}
}

// coolDown transitions the job to cooling_down with a linearly growing
// retry horizon and aborts the rest of the session.
func (r *run) coolDown(reason string) {
	r.mu.Lock()
	if r.blocked {
		r.mu.Unlock()
		return
	}
	r.blocked = true
	found := r.recipesFound
	r.mu.Unlock()

	attempt := r.job.RetryCount + 1
	nextRetry := r.runner.deps.Clock.Now().Add(time.Duration(attempt) * r.runner.cfg.CooldownStep)

	ctx := context.WithoutCancel(r.ctx)
	if err := r.runner.deps.Jobs.UpdateJobStatus(ctx, r.job.ID, recipe.JobStatusCoolingDown, found, reason, &nextRetry); err != nil {
		r.logger.Error("cooling_down update failed", zap.Error(err))
	}
	r.logger.Warn("session blocked, cooling down",
		zap.String("reason", reason),
		zap.Int("attempt", attempt),
		zap.Time("next_retry_at", nextRetry))
	r.cancel()
}

func (r *run) recordError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) < 50 {
		r.errs = append(r.errs, msg)
	}
}

func (r *run) fail(ctx context.Context, reason string) error {
	r.mu.Lock()
	found := r.recipesFound
	r.mu.Unlock()
	if err := r.runner.deps.Jobs.UpdateJobStatus(context.WithoutCancel(ctx), r.job.ID, recipe.JobStatusFailed, found, reason, nil); err != nil {
		return fmt.Errorf("record failed status: %w", err)
	}
	r.logger.Error("session failed", zap.String("reason", reason))
	return nil
}

func (r *run) finish(ctx context.Context) error {
	r.mu.Lock()
	blocked := r.blocked
	found := r.recipesFound
	logText := strings.Join(r.errs, "\n")
	r.mu.Unlock()

	if blocked {
		return nil
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return r.fail(ctx, "session canceled before the frontier was exhausted")
	}

	if err := r.runner.deps.Jobs.UpdateJobStatus(context.WithoutCancel(ctx), r.job.ID, recipe.JobStatusCompleted, found, logText, nil); err != nil {
		return fmt.Errorf("record completed status: %w", err)
	}
	r.logger.Info("session completed", zap.Int("recipes_found", found), zap.Int("page_errors", len(r.errs)))
	return nil
}

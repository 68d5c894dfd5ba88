// Package auditor re-scores ingested recipes, repairs defects it can
// fix, and originates repair crawl jobs for the ones it cannot.
package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"recipeharvest/internal/metrics"
	"recipeharvest/internal/recipe"
)

// NutritionLookup resolves a single name-based nutrition estimate.
type NutritionLookup interface {
	FindForRecipe(ctx context.Context, name string) (*recipe.Nutrition, string, error)
}

// Config controls batch sizing and thresholds.
type Config struct {
	BatchSize           int
	PollInterval        time.Duration
	ErrorBackoff        time.Duration
	QuarantineThreshold int
	RepairCap           int
	ImageCheckTimeout   time.Duration
}

// DefaultConfig returns the production audit parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:           10,
		PollInterval:        time.Minute,
		ErrorBackoff:        time.Minute,
		QuarantineThreshold: 80,
		RepairCap:           2,
		ImageCheckTimeout:   5 * time.Second,
	}
}

// Auditor drives the audit loop.
type Auditor struct {
	recipes   recipe.RecipeStore
	jobs      recipe.JobStore
	nutrition NutritionLookup
	client    *http.Client
	clock     recipe.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Auditor. nutrition may be nil to disable backfill.
func New(recipes recipe.RecipeStore, jobs recipe.JobStore, nutrition NutritionLookup, clock recipe.Clock, cfg Config, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Auditor{
		recipes:   recipes,
		jobs:      jobs,
		nutrition: nutrition,
		client:    &http.Client{},
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, auditing batches until the context finishes.
func (a *Auditor) Run(ctx context.Context) {
	for ctx.Err() == nil {
		audited, err := a.RunOnce(ctx)
		switch {
		case err != nil:
			a.logger.Error("audit batch failed", zap.Error(err))
			a.sleep(ctx, a.cfg.ErrorBackoff)
		case audited == 0:
			a.sleep(ctx, a.cfg.PollInterval)
		}
	}
}

// RunOnce audits one batch and returns how many verdicts persisted.
// A batch whose every write fails reports zero so Run backs off
// instead of re-fetching the same rows in a tight loop.
func (a *Auditor) RunOnce(ctx context.Context) (int, error) {
	batch, err := a.recipes.NextAuditBatch(ctx, a.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch audit batch: %w", err)
	}
	audited := 0
	for _, r := range batch {
		if a.auditOne(ctx, r) {
			audited++
		}
	}
	return audited, nil
}

// auditOne never lets a single bad recipe abort the batch. It reports
// whether the verdict was persisted.
func (a *Auditor) auditOne(ctx context.Context, r recipe.Recipe) (persisted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("audit panic", zap.String("recipe_id", r.ID), zap.Any("panic", rec))
		}
	}()

	update, flagged := a.inspect(ctx, r)

	if update.QAStatus == recipe.QAStatusQuarantined {
		a.scheduleRepair(ctx, r, &update)
	} else if flagged {
		update.QAStatus = recipe.QAStatusFlagged
	}

	if err := a.recipes.ApplyAudit(ctx, update); err != nil {
		a.logger.Error("apply audit failed", zap.String("recipe_id", r.ID), zap.Error(err))
		return false
	}
	metrics.ObserveAuditVerdict(string(update.QAStatus))
	a.logger.Info("recipe audited",
		zap.String("recipe_id", r.ID),
		zap.String("qa_status", string(update.QAStatus)),
		zap.Int("quality_score", update.QualityScore))
	return true
}

// inspect runs the per-recipe checks and stages corrections. The
// returned flag marks defects that do not on their own quarantine.
func (a *Auditor) inspect(ctx context.Context, r recipe.Recipe) (recipe.AuditUpdate, bool) {
	update := recipe.AuditUpdate{
		RecipeID:  r.ID,
		AuditedAt: a.clock.Now(),
	}
	var log []string
	flagged := false

	image := r.Image
	if fixed, ok := imageFromJSONObject(image); ok {
		update.Image = fixed
		image = fixed
		log = append(log, "repaired image object to "+fixed)
	}
	if image == "" {
		flagged = true
		log = append(log, "image missing")
	} else if !a.imageReachable(ctx, image) {
		flagged = true
		log = append(log, "image unreachable: "+image)
	}

	if len(r.RecipeInstructions) == 0 {
		flagged = true
		log = append(log, "instructions missing")
	}

	nut := r.Nutrition
	if nut == nil && a.nutrition != nil {
		found, source, err := a.nutrition.FindForRecipe(ctx, r.Name)
		switch {
		case err == nil && found != nil:
			update.Nutrition = found
			nut = found
			log = append(log, "backfilled nutrition from "+source)
		case err != nil:
			log = append(log, "nutrition lookup failed: "+err.Error())
		default:
			log = append(log, "nutrition unavailable")
		}
	}

	// Rescore with the staged corrections applied.
	scored := r
	scored.Image = image
	scored.Nutrition = nut
	update.QualityScore = recipe.Score(scored)

	if update.QualityScore < a.cfg.QuarantineThreshold {
		update.QAStatus = recipe.QAStatusQuarantined
		log = append(log, fmt.Sprintf("score %d below standing-quality bar %d", update.QualityScore, a.cfg.QuarantineThreshold))
	} else {
		update.QAStatus = recipe.QAStatusVerified
	}
	update.AuditLog = log
	return update, flagged
}

// scheduleRepair submits a new pending job for a quarantined recipe
// unless one is live or the automatic attempts are spent.
func (a *Auditor) scheduleRepair(ctx context.Context, r recipe.Recipe, update *recipe.AuditUpdate) {
	if r.URL == "" {
		return
	}
	if _, live, err := a.jobs.FindLiveJob(ctx, r.URL); err != nil {
		a.logger.Error("repair live-job lookup failed", zap.String("url", r.URL), zap.Error(err))
		return
	} else if live {
		metrics.ObserveRepair("already_live")
		update.AuditLog = append(update.AuditLog, "repair already in flight")
		return
	}

	last, ok, err := a.jobs.LastCompletedJob(ctx, r.URL)
	if err != nil {
		a.logger.Error("repair history lookup failed", zap.String("url", r.URL), zap.Error(err))
		return
	}
	if ok && last.RetryCount >= a.cfg.RepairCap {
		metrics.ObserveRepair("capped")
		update.AuditLog = append(update.AuditLog, "repair attempts exhausted, human review required")
		a.logger.Warn("repair attempts exhausted, human review required",
			zap.String("recipe_id", r.ID), zap.String("url", r.URL), zap.Int("retry_count", last.RetryCount))
		return
	}

	// The ladder starts at 1 so the cap counts completed repair crawls:
	// with a cap of 2, attempts 1 and 2 run and a third is never filed.
	retry := 1
	if ok {
		retry = last.RetryCount + 1
	}
	if _, err := a.jobs.CreateJob(ctx, recipe.CrawlJob{
		URL:        r.URL,
		Status:     recipe.JobStatusPending,
		RetryCount: retry,
	}); err != nil {
		a.logger.Error("repair job create failed", zap.String("url", r.URL), zap.Error(err))
		return
	}
	metrics.ObserveRepair("scheduled")
	update.AuditLog = append(update.AuditLog, fmt.Sprintf("repair job submitted (attempt %d)", retry))
	a.logger.Info("repair job submitted", zap.String("recipe_id", r.ID), zap.String("url", r.URL), zap.Int("retry_count", retry))
}

// imageReachable HEAD-checks the image URL with a short timeout.
func (a *Auditor) imageReachable(ctx context.Context, imageURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ImageCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

// imageFromJSONObject unwraps a legacy ingestion defect where the whole
// schema.org ImageObject was persisted as a JSON string.
func imageFromJSONObject(image string) (string, bool) {
	trimmed := strings.TrimSpace(image)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", false
	}
	for _, key := range []string{"url", "contentUrl"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func (a *Auditor) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

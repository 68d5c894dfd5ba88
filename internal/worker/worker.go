// Package worker runs the claim-and-execute scheduler loop.
package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"recipeharvest/internal/metrics"
	"recipeharvest/internal/recipe"
)

// SessionRunner executes one claimed job to a terminal status.
type SessionRunner interface {
	Run(ctx context.Context, job recipe.CrawlJob) error
}

// Config controls the idle backoff schedule.
type Config struct {
	IdleBase       time.Duration
	IdleMultiplier float64
	IdleMax        time.Duration
	JitterMax      time.Duration
}

// DefaultConfig returns the production poll schedule.
func DefaultConfig() Config {
	return Config{
		IdleBase:       5 * time.Second,
		IdleMultiplier: 1.5,
		IdleMax:        60 * time.Second,
		JitterMax:      2 * time.Second,
	}
}

// Worker polls the job store and runs one session at a time.
// Parallelism comes from running multiple worker processes.
type Worker struct {
	jobs   recipe.JobStore
	runner SessionRunner
	clock  recipe.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(jobs recipe.JobStore, runner SessionRunner, clock recipe.Clock, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		jobs:   jobs,
		runner: runner,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Run blocks, claiming and executing jobs until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	idle := w.cfg.IdleBase
	for ctx.Err() == nil {
		job, err := w.jobs.ClaimNext(ctx, w.clock.Now())
		switch {
		case errors.Is(err, recipe.ErrNoClaimableJob):
			w.logger.Debug("no claimable job", zap.Duration("idle", idle))
			w.sleep(ctx, idle)
			idle = w.nextIdle(idle)

		case err != nil:
			if ctx.Err() != nil {
				return
			}
			// Lost claim races and transient store errors do not
			// escalate the backoff schedule.
			w.logger.Error("claim failed", zap.Error(err))
			w.sleep(ctx, w.cfg.IdleBase)

		default:
			idle = w.cfg.IdleBase
			w.execute(ctx, job)
		}
	}
}

func (w *Worker) execute(ctx context.Context, job recipe.CrawlJob) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	w.logger.Info("job claimed", zap.String("job_id", job.ID), zap.String("url", job.URL))
	if err := w.runner.Run(ctx, job); err != nil {
		w.logger.Error("session error", zap.String("job_id", job.ID), zap.Error(err))
	}
	if final, err := w.jobs.GetJob(context.WithoutCancel(ctx), job.ID); err == nil {
		metrics.ObserveJob(string(final.Status))
	}
}

// nextIdle grows the idle interval multiplicatively up to the cap.
func (w *Worker) nextIdle(idle time.Duration) time.Duration {
	next := time.Duration(float64(idle) * w.cfg.IdleMultiplier)
	if next > w.cfg.IdleMax {
		next = w.cfg.IdleMax
	}
	return next
}

// sleep waits for d plus random jitter, returning early on cancellation.
// The jitter staggers wake-ups across worker processes.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if w.cfg.JitterMax > 0 {
		d += rand.N(w.cfg.JitterMax)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

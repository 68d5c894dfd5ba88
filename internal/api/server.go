// Package api exposes the HTTP interface for job submission and
// nutrition analysis.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"recipeharvest/internal/config"
	"recipeharvest/internal/metrics"
	"recipeharvest/internal/nutrition"
	"recipeharvest/internal/recipe"
)

// Analyzer resolves a free-text ingredient list to nutrient totals.
type Analyzer interface {
	Analyze(ctx context.Context, lines []string) (nutrition.Analysis, error)
}

// Server wires HTTP handlers to the job store and the nutrition engine.
type Server struct {
	router   chi.Router
	jobs     recipe.JobStore
	analyzer Analyzer
	clock    recipe.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. analyzer may
// be nil, in which case /v1/nutrition/analyze reports unavailable.
func NewServer(
	jobs recipe.JobStore,
	analyzer Analyzer,
	clock recipe.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	metrics.Init()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:     jobs,
		analyzer: analyzer,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/crawl", s.submitCrawl)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/archived", s.listArchivedJobs)
			r.Post("/archive-all", s.archiveTerminalJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/archive", s.archiveJob)
			})
		})
		r.Post("/nutrition/analyze", s.analyzeNutrition)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequest struct {
	URL string `json:"url"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	target := recipe.NormalizeURL(recipe.EnsureScheme(req.URL))
	if parsed, err := url.Parse(target); err != nil || parsed.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	if live, found, err := s.jobs.FindLiveJob(r.Context(), target); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check existing jobs")
		return
	} else if found {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "a job for this url is already queued or running",
			"job_id": live.ID,
			"status": string(live.Status),
		})
		return
	}

	now := s.clock.Now()
	job, err := s.jobs.CreateJob(r.Context(), recipe.CrawlJob{
		URL:       target,
		Status:    recipe.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.Error("create job failed", zap.String("url", target), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"url":    job.URL,
		"status": string(job.Status),
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJobList(w, r, false)
}

func (s *Server) listArchivedJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJobList(w, r, true)
}

func (s *Server) writeJobList(w http.ResponseWriter, r *http.Request, archived bool) {
	jobs, err := s.jobs.ListJobs(r.Context(), archived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []recipe.CrawlJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, recipe.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) archiveJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobs.ArchiveJob(r.Context(), jobID); err != nil {
		if errors.Is(err, recipe.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to archive job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "archived": "true"})
}

func (s *Server) archiveTerminalJobs(w http.ResponseWriter, r *http.Request) {
	n, err := s.jobs.ArchiveTerminalJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to archive jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"archived": n})
}

type analyzeRequest struct {
	Ingredients []string `json:"ingredients"`
}

func (s *Server) analyzeNutrition(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "nutrition analysis not configured")
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Ingredients) == 0 {
		writeError(w, http.StatusBadRequest, "ingredients required")
		return
	}
	analysis, err := s.analyzer.Analyze(r.Context(), req.Ingredients)
	if err != nil {
		s.logger.Error("nutrition analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" || key != expected {
				writeError(w, http.StatusUnauthorized, "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

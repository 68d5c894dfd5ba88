// Package metrics exposes Prometheus collectors for the harvest service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestJobsTotal           *prometheus.CounterVec
	harvestPagesTotal          *prometheus.CounterVec
	harvestRecipesIngested     prometheus.Counter
	harvestActiveWorkers       prometheus.Gauge
	auditVerdictsTotal         *prometheus.CounterVec
	auditRepairsTotal          *prometheus.CounterVec
	nutritionLookupsTotal      *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total number of pages fetched, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		harvestRecipesIngested = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_recipes_ingested_total",
				Help: "Total number of recipes that passed the quality gate.",
			},
		)

		harvestActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_active_workers",
				Help: "Number of workers currently running a crawl session.",
			},
		)

		auditVerdictsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_verdicts_total",
				Help: "Total audit verdicts, labeled by qa_status.",
			},
			[]string{"qa_status"},
		)

		auditRepairsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_repairs_total",
				Help: "Repair jobs considered by the auditor, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		nutritionLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutrition_lookups_total",
				Help: "Ingredient lookups, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	harvestJobsTotal.WithLabelValues(status).Inc()
}

// ObservePage increments the page counter.
func ObservePage(site string, outcome string) {
	harvestPagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveRecipeIngested counts a recipe that passed the quality gate.
func ObserveRecipeIngested() {
	harvestRecipesIngested.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	harvestActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	harvestActiveWorkers.Dec()
}

// ObserveAuditVerdict counts one audit verdict.
func ObserveAuditVerdict(qaStatus string) {
	auditVerdictsTotal.WithLabelValues(qaStatus).Inc()
}

// ObserveRepair counts a repair decision: scheduled, skipped, or capped.
// Capped repairs are the starvation signal for quarantined recipes that
// exhausted their automatic attempts.
func ObserveRepair(outcome string) {
	auditRepairsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNutritionLookup counts an ingredient lookup.
func ObserveNutritionLookup(source string, outcome string) {
	nutritionLookupsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

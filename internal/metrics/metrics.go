// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperRunsTotal          *prometheus.CounterVec
	scraperRunDurationSeconds prometheus.Histogram
	scraperArticlesTotal      *prometheus.CounterVec
	ingestArticlesTotal       *prometheus.CounterVec
	ingestBackupsTotal        *prometheus.CounterVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Total number of scraping runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scraperRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_run_duration_seconds",
				Help:    "Histogram of end-to-end scraping run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		scraperArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_articles_total",
				Help: "Total number of article scrape attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_articles_total",
				Help: "Total number of ingested articles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestBackupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_backups_total",
				Help: "Total number of backup file writes, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run with its terminal status and duration.
func ObserveRun(status string, duration time.Duration) {
	scraperRunsTotal.WithLabelValues(status).Inc()
	scraperRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveScrape increments the article scrape counter for the given outcome.
func ObserveScrape(outcome string) {
	scraperArticlesTotal.WithLabelValues(outcome).Inc()
}

// ObserveIngest increments the ingest counter for the given outcome.
func ObserveIngest(outcome string) {
	ingestArticlesTotal.WithLabelValues(outcome).Inc()
}

// ObserveBackup increments the backup write counter for the given result.
func ObserveBackup(result string) {
	ingestBackupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

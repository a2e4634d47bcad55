// Package metrics exposes Prometheus collectors for the optimizer service.
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
	jobsTotal                  *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	generationDurationSeconds  *prometheus.HistogramVec
	generationTokensTotal      *prometheus.CounterVec
	sitemapFetchesTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_jobs_total",
				Help: "Total number of optimization jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optimizer_stage_duration_seconds",
				Help:    "Histogram of pipeline stage latencies, labeled by stage.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180},
			},
			[]string{"stage"},
		)

		generationDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optimizer_generation_duration_seconds",
				Help:    "Histogram of generator call latencies, labeled by provider.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 180},
			},
			[]string{"provider"},
		)

		generationTokensTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_generation_tokens_total",
				Help: "Total generator tokens consumed, labeled by provider and model.",
			},
			[]string{"provider", "model"},
		)

		sitemapFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_sitemap_fetches_total",
				Help: "Total sitemap document fetches, labeled by HTTP status code.",
			},
			[]string{"code"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, duration time.Duration) {
	if stageDurationSeconds == nil {
		return
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveGeneration records generator call latency and token usage.
func ObserveGeneration(provider, model string, duration time.Duration, tokens int) {
	if generationDurationSeconds == nil {
		return
	}
	generationDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
	if tokens > 0 {
		generationTokensTotal.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// ObserveSitemapFetch increments the sitemap fetch counter.
func ObserveSitemapFetch(code int) {
	if sitemapFetchesTotal == nil {
		return
	}
	sitemapFetchesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

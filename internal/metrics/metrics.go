package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SearchTotal counts dispatched audit searches by winning strategy and outcome.
	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_search_total",
			Help: "Total number of audit log searches by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// SearchDuration tracks time spent choosing and building a search, by strategy.
	// It includes the full-text backend round trip but not reading result rows.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_search_dispatch_seconds",
			Help:    "Audit search dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// FullTextFailures counts full-text backend calls that failed and fell through.
	FullTextFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_search_fulltext_failures_total",
			Help: "Total number of failed full-text backend searches",
		},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, SearchTotal, SearchDuration, FullTextFailures)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /audit/123 -> /audit/{id}.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordSearch records one dispatched search.
func RecordSearch(strategy, outcome string, durationSeconds float64) {
	if strategy == "" {
		strategy = "unknown"
	}
	SearchTotal.WithLabelValues(strategy, outcome).Inc()
	SearchDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// IncFullTextFailures counts one failed full-text backend call.
func IncFullTextFailures() {
	FullTextFailures.Inc()
}

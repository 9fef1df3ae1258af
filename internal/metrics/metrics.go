// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package metrics exposes Prometheus instrumentation for the gateway,
// the day-bucket cache, the sync scheduler and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total upstream CRM requests by endpoint, method and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Upstream CRM request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	GatewayAdmissionWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_admission_wait_seconds",
			Help:    "Time spent waiting for gateway admission (spacing + concurrency cap)",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 3, 5, 10, 30},
		},
	)

	GatewayInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_in_flight_requests",
			Help: "Upstream requests currently in flight",
		},
	)

	GatewayRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Total HTTP 429 responses received from the upstream CRM",
		},
	)

	GatewayFallbackServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_fallback_served_total",
			Help: "Directory reads served from the rate-limit fallback cache",
		},
		[]string{"resource"},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// Day-bucket cache metrics

	BucketUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucket_upserts_total",
			Help: "Metric bucket upserts by merge policy",
		},
		[]string{"policy"}, // "replace" (today/future), "max" (historical)
	)

	MetricReadCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metric_read_cache_hits_total",
			Help: "Ranged metric reads served from the memoization cache",
		},
	)

	MetricReadCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metric_read_cache_misses_total",
			Help: "Ranged metric reads that had to query the bucket store",
		},
	)

	IncompleteReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metric_incomplete_reads_total",
			Help: "Ranged reads rejected because day buckets were missing",
		},
	)

	DegradedReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metric_degraded_reads_total",
			Help: "Ranged reads that fell back to averaging a legacy multi-day bucket",
		},
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Sync scheduler metrics

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync passes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"pass"}, // "recurring", "backfill"
	)

	SyncUnitsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_units_processed_total",
			Help: "Sync units (days or steps) completed",
		},
		[]string{"pass"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync unit errors",
		},
		[]string{"pass", "error_type"}, // "upstream", "rate_limited", "database"
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync pass",
		},
		[]string{"pass"},
	)

	BackfillDaysRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backfill_days_remaining",
			Help: "Days still to process in the current historical backfill",
		},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "API requests currently being served",
		},
	)
)

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSyncPass records the duration and outcome of a completed sync pass.
func RecordSyncPass(pass string, duration time.Duration, units int, err error) {
	SyncDuration.WithLabelValues(pass).Observe(duration.Seconds())
	SyncUnitsProcessed.WithLabelValues(pass).Add(float64(units))
	if err == nil {
		SyncLastSuccess.WithLabelValues(pass).SetToCurrentTime()
	}
}

// RecordDBQuery times a database operation for the query duration histogram.
// Use with defer:
//
//	defer metrics.RecordDBQuery("upsert", "metric_buckets", time.Now())
func RecordDBQuery(operation, table string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// Package metrics provides Prometheus instrumentation for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec
	RepliesTotal           *prometheus.CounterVec

	// External service metrics
	ExternalRequestsTotal   *prometheus.CounterVec
	ExternalDurationSeconds *prometheus.HistogramVec
	VisionKeyRotationsTotal prometheus.Counter

	// Classification metrics
	ClassificationBranchTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheSize        *prometheus.GaugeVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterUsers   prometheus.Gauge

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "celebmatch_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 25},
			},
			[]string{"event_type"}, // follow, join, postback, image, text
		),

		WebhookRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_webhook_events_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error, skipped, rate_limited
		),

		RepliesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_replies_total",
				Help: "Total number of reply deliveries by status",
			},
			[]string{"status"}, // status: success, error
		),

		ExternalRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_external_requests_total",
				Help: "Total external service calls by service and outcome",
			},
			[]string{"service", "status"}, // service: vision, face, hosting, profile, stackoverflow, archive
		),

		ExternalDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "celebmatch_external_duration_seconds",
				Help:    "External service call duration in seconds by service",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"service"},
		),

		VisionKeyRotationsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "celebmatch_vision_key_rotations_total",
				Help: "Total vision API credential rotations triggered by auth/quota failures",
			},
		),

		ClassificationBranchTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_classification_branch_total",
				Help: "Classification interpretation outcomes by branch",
			},
			[]string{"branch"}, // carousel, celebrity_only, person_only, neither
		),

		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_cache_hits_total",
				Help: "Total number of cache hits by repository",
			},
			[]string{"repository"},
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_cache_misses_total",
				Help: "Total number of cache misses by repository",
			},
			[]string{"repository"},
		),

		CacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "celebmatch_cache_size_rows",
				Help: "Number of rows currently cached by repository",
			},
			[]string{"repository"},
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_signature, timeout, panic
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // user, global
		),

		RateLimiterUsers: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "celebmatch_rate_limiter_active_users",
				Help: "Number of users currently tracked by the per-user rate limiter",
			},
		),

		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "celebmatch_singleflight_dedup_total",
				Help: "Total deduplicated requests (waited on an in-flight call instead of executing)",
			},
			[]string{"service"},
		),
	}
}

// RecordWebhook records processing of one webhook event.
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordReply records the outcome of a reply delivery.
func (m *Metrics) RecordReply(status string) {
	m.RepliesTotal.WithLabelValues(status).Inc()
}

// RecordExternalCall records one external service call.
func (m *Metrics) RecordExternalCall(service, status string, duration float64) {
	m.ExternalRequestsTotal.WithLabelValues(service, status).Inc()
	m.ExternalDurationSeconds.WithLabelValues(service).Observe(duration)
}

// RecordKeyRotation records a vision credential rotation.
func (m *Metrics) RecordKeyRotation() {
	m.VisionKeyRotationsTotal.Inc()
}

// RecordClassificationBranch records which interpretation branch was taken.
func (m *Metrics) RecordClassificationBranch(branch string) {
	m.ClassificationBranchTotal.WithLabelValues(branch).Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(repository string) {
	m.CacheHitsTotal.WithLabelValues(repository).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(repository string) {
	m.CacheMissesTotal.WithLabelValues(repository).Inc()
}

// SetCacheSize updates the cached row count gauge.
func (m *Metrics) SetCacheSize(repository string, rows int) {
	m.CacheSize.WithLabelValues(repository).Set(float64(rows))
}

// RecordHTTPError records an HTTP-level error.
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimiterDrop records a request dropped by a rate limiter.
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterUsers updates the active user limiter gauge.
func (m *Metrics) SetRateLimiterUsers(count int) {
	m.RateLimiterUsers.Set(float64(count))
}

// RecordSingleflightDedup records a deduplicated external call.
func (m *Metrics) RecordSingleflightDedup(service string) {
	m.SingleflightDedupTotal.WithLabelValues(service).Inc()
}

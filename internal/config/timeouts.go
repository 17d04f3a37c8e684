// Package config provides centralized timeout constants for the application.
//
// These values are tuned around:
//   - LINE Messaging API constraints (reply token expiration, webhook timeouts)
//   - External vision/hosting API response times
//   - SQLite performance characteristics (WAL mode, busy timeout)
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event.
	// Covers image download, Cloudinary upload, classification, face detection
	// and database lookups. Reply tokens stay valid well beyond this window,
	// but the user is waiting.
	WebhookProcessing = 25 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// LINE sends small JSON payloads; image bytes are fetched separately.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	// Must accommodate sequential processing of a full event batch.
	WebhookHTTPWrite = 60 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// External service timeouts
const (
	// VisionRequest is the timeout for a single classify or detect-faces call.
	VisionRequest = 15 * time.Second

	// VisionRetryInitial is the initial delay before retrying a failed vision
	// call. Exponential backoff: 1s -> 2s -> 4s.
	VisionRetryInitial = 1 * time.Second

	// HostingRequest is the timeout for a Cloudinary upload. Uploads carry the
	// full image body, so this is the longest external budget.
	HostingRequest = 20 * time.Second

	// SearchRequest is the timeout for a StackExchange search call.
	SearchRequest = 10 * time.Second

	// ProfileRequest is the timeout for a LINE profile lookup.
	ProfileRequest = 10 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// CacheCleanupInterval is how often expired celebrity records are deleted.
	CacheCleanupInterval = 12 * time.Hour

	// CacheCleanupInitialDelay is the delay before the first cache cleanup.
	CacheCleanupInitialDelay = 5 * time.Minute

	// MetricsUpdateInterval is how often cache size metrics are updated.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often inactive user rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight webhook batches to complete before forceful termination.
	GracefulShutdown = 30 * time.Second
)

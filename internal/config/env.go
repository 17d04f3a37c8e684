// Package config defines environment variable keys for configuration.
package config

//nolint:gosec // Environment variable keys are not credentials.
const (
	// Core (Required)
	EnvLineChannelAccessToken = "CELEB_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "CELEB_LINE_CHANNEL_SECRET"

	// Bot identity (basic id, e.g. "@celebmatch"; drives share links)
	EnvLineBotBasicID = "CELEB_LINE_BOT_BASIC_ID"

	// Server
	EnvPort            = "CELEB_PORT"
	EnvLogLevel        = "CELEB_LOG_LEVEL"
	EnvShutdownTimeout = "CELEB_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir  = "CELEB_DATA_DIR"
	EnvCacheTTL = "CELEB_CACHE_TTL"

	// Vision (celebrity classifier + face detection)
	EnvVisionBaseURL       = "CELEB_VISION_BASE_URL"
	EnvVisionAPIKeys       = "CELEB_VISION_API_KEYS"
	EnvVisionClassifierIDs = "CELEB_VISION_CLASSIFIER_IDS"
	EnvVisionThreshold     = "CELEB_VISION_THRESHOLD"
	EnvFaceDetectEnabled   = "CELEB_FACE_DETECT_ENABLED"

	// Cloudinary image hosting
	EnvCloudinaryCloudName = "CELEB_CLOUDINARY_CLOUD_NAME"
	EnvCloudinaryAPIKey    = "CELEB_CLOUDINARY_API_KEY"
	EnvCloudinaryAPISecret = "CELEB_CLOUDINARY_API_SECRET"
	EnvCloudinaryFolder    = "CELEB_CLOUDINARY_FOLDER"

	// Composite image templates
	EnvCompositeTemplateID     = "CELEB_COMPOSITE_TEMPLATE_ID"
	EnvCompositeMaleTemplate   = "CELEB_COMPOSITE_MALE_TEMPLATE_ID"
	EnvCompositeFemaleTemplate = "CELEB_COMPOSITE_FEMALE_TEMPLATE_ID"

	// Stack Overflow search
	EnvStackExchangeBaseURL = "CELEB_STACKEXCHANGE_BASE_URL"
	EnvStackExchangeKey     = "CELEB_STACKEXCHANGE_KEY"

	// Webhook
	EnvWebhookTimeout = "CELEB_WEBHOOK_TIMEOUT"

	// Rate Limits
	EnvGlobalRateRPS  = "CELEB_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "CELEB_USER_RATE_BURST"
	EnvUserRateRefill = "CELEB_USER_RATE_REFILL"

	// Match module
	EnvMaxCarouselCards = "CELEB_MAX_CAROUSEL_CARDS"
	EnvScoreAdjustment  = "CELEB_SCORE_ADJUSTMENT"

	// R2 Archive Feature
	EnvR2Enabled         = "CELEB_R2_ENABLED"
	EnvR2AccountID       = "CELEB_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "CELEB_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "CELEB_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "CELEB_R2_BUCKET_NAME"
	EnvR2KeyPrefix       = "CELEB_R2_KEY_PREFIX"

	// Sentry Feature
	EnvSentryEnabled     = "CELEB_SENTRY_ENABLED"
	EnvSentryToken       = "CELEB_SENTRY_TOKEN"
	EnvSentryHost        = "CELEB_SENTRY_HOST"
	EnvSentryEnvironment = "CELEB_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "CELEB_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "CELEB_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "CELEB_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsUsername = "CELEB_METRICS_USERNAME"
	EnvMetricsPassword = "CELEB_METRICS_PASSWORD"
)

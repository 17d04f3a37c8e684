// Package config provides application configuration management.
// It loads settings from environment variables once at startup and passes
// an explicit Config value into the rest of the application; there is no
// ambient global configuration state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string
	LineBotBasicID    string // Basic id for share/add-friend links, e.g. "@celebmatch"

	// Vision Configuration (celebrity classifier + face detection)
	VisionBaseURL       string   // Base URL of the visual recognition API
	VisionAPIKeys       []string // One or more API keys, rotated on auth/quota failure
	VisionClassifierIDs []string // Classifier ids submitted with each classify call
	VisionThreshold     float64  // Minimum confidence forwarded to the classify call
	FaceDetectEnabled   bool     // When false, personhood falls back to label heuristics

	// Cloudinary Configuration (image hosting)
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string // Upload folder/tag for inbound sender images

	// Composite templates (public ids of the overlay base images)
	CompositeTemplateID     string // agree: celebrity/sender side-by-side base
	CompositeMaleTemplateID string // disagree: male-variant base
	CompositeFemaleTemplate string // disagree: female-variant base

	// Stack Overflow Configuration
	StackExchangeBaseURL string
	StackExchangeKey     string // Optional API key for higher quota

	// R2 Archive Configuration (optional inbound image archive)
	R2Enabled         bool
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2KeyPrefix       string

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Sentry
	SentryEnabled     bool
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack log shipping
	BetterStackToken    string
	BetterStackEndpoint string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir  string        // Data directory for the SQLite celebrity cache
	CacheTTL time.Duration // Absolute expiration for cached celebrity records

	// Bot Configuration (embedded)
	Bot BotConfig
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),
		LineBotBasicID:    getEnv(EnvLineBotBasicID, ""),

		VisionBaseURL:       getEnv(EnvVisionBaseURL, ""),
		VisionAPIKeys:       getListEnv(EnvVisionAPIKeys),
		VisionClassifierIDs: getListEnv(EnvVisionClassifierIDs),
		VisionThreshold:     getFloatEnv(EnvVisionThreshold, 0.5),
		FaceDetectEnabled:   getBoolEnv(EnvFaceDetectEnabled, true),

		CloudinaryCloudName: getEnv(EnvCloudinaryCloudName, ""),
		CloudinaryAPIKey:    getEnv(EnvCloudinaryAPIKey, ""),
		CloudinaryAPISecret: getEnv(EnvCloudinaryAPISecret, ""),
		CloudinaryFolder:    getEnv(EnvCloudinaryFolder, "senders"),

		CompositeTemplateID:     getEnv(EnvCompositeTemplateID, "compare_base"),
		CompositeMaleTemplateID: getEnv(EnvCompositeMaleTemplate, "alt_male"),
		CompositeFemaleTemplate: getEnv(EnvCompositeFemaleTemplate, "alt_female"),

		StackExchangeBaseURL: getEnv(EnvStackExchangeBaseURL, "https://api.stackexchange.com/2.3"),
		StackExchangeKey:     getEnv(EnvStackExchangeKey, ""),

		R2Enabled:         getBoolEnv(EnvR2Enabled, false),
		R2AccountID:       getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2KeyPrefix:       getEnv(EnvR2KeyPrefix, "inbound/"),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:  getEnv(EnvDataDir, getDefaultDataDir()),
		CacheTTL: getDurationEnv(EnvCacheTTL, 168*time.Hour), // 7 days

		Bot: LoadBotConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, errors.New(EnvLineChannelAccessToken+" is required"))
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, errors.New(EnvLineChannelSecret+" is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.VisionBaseURL == "" {
		errs = append(errs, errors.New(EnvVisionBaseURL+" is required"))
	}
	if len(c.VisionAPIKeys) == 0 {
		errs = append(errs, errors.New(EnvVisionAPIKeys+" requires at least one key"))
	}
	if len(c.VisionClassifierIDs) == 0 {
		errs = append(errs, errors.New(EnvVisionClassifierIDs+" requires at least one classifier id"))
	}
	if c.VisionThreshold < 0 || c.VisionThreshold > 1 {
		errs = append(errs, fmt.Errorf("%s must be in [0,1], got %f", EnvVisionThreshold, c.VisionThreshold))
	}
	if c.CloudinaryCloudName == "" {
		errs = append(errs, errors.New(EnvCloudinaryCloudName+" is required"))
	}
	if c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
		errs = append(errs, errors.New(EnvCloudinaryAPIKey+" and "+EnvCloudinaryAPISecret+" are required"))
	}
	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 archive enabled but credentials are incomplete"))
		}
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New(EnvDataDir+" is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCacheTTL, c.CacheTTL))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv retrieves a comma-separated environment variable as a slice.
// Empty segments are dropped.
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "celebs.db")
}

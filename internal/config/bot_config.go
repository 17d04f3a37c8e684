// Package config provides centralized configuration for bot behavior.
package config

import (
	"fmt"
	"time"
)

// BotConfig centralizes router and match-module configuration.
type BotConfig struct {
	// Webhook configuration
	WebhookTimeout      time.Duration
	MaxMessagesPerReply int
	MaxEventsPerWebhook int
	MinReplyTokenLength int
	MaxPostbackDataSize int

	// Rate limiting configuration (token bucket)
	UserRateLimitBurst        float64
	UserRateLimitRefillPerSec float64
	GlobalRateLimitRPS        float64

	// Match module configuration
	MaxCarouselCards int     // Maximum look-alike cards per carousel reply
	ScoreAdjustment  float64 // Cosmetic offset applied to displayed percentages
	TitleBudget      int     // Maximum runes in a card title
}

// DefaultBotConfig returns default configuration values.
// LINE API limits: https://developers.line.biz/en/reference/messaging-api/#rate-limits
func DefaultBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:      WebhookProcessing,
		MaxMessagesPerReply: 5,   // LINE API limit
		MaxEventsPerWebhook: 100, // LINE API limit
		MinReplyTokenLength: 10,
		MaxPostbackDataSize: 300, // LINE API limit

		UserRateLimitBurst:        6.0,
		UserRateLimitRefillPerSec: 0.2,  // 1 token per 5 seconds
		GlobalRateLimitRPS:        80.0, // LINE allows 100 RPS; 80 leaves headroom

		MaxCarouselCards: 3,
		ScoreAdjustment:  10.0,
		TitleBudget:      40, // LINE template title limit
	}
}

// LoadBotConfig loads bot configuration from environment variables,
// falling back to defaults where unset.
func LoadBotConfig() BotConfig {
	cfg := DefaultBotConfig()

	cfg.WebhookTimeout = getDurationEnv(EnvWebhookTimeout, cfg.WebhookTimeout)
	cfg.UserRateLimitBurst = getFloatEnv(EnvUserRateBurst, cfg.UserRateLimitBurst)
	cfg.UserRateLimitRefillPerSec = getFloatEnv(EnvUserRateRefill, cfg.UserRateLimitRefillPerSec)
	cfg.GlobalRateLimitRPS = getFloatEnv(EnvGlobalRateRPS, cfg.GlobalRateLimitRPS)
	cfg.MaxCarouselCards = getIntEnv(EnvMaxCarouselCards, cfg.MaxCarouselCards)
	cfg.ScoreAdjustment = getFloatEnv(EnvScoreAdjustment, cfg.ScoreAdjustment)

	return cfg
}

// Validate checks if the configuration is valid.
func (c *BotConfig) Validate() error {
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout)
	}
	if c.MaxMessagesPerReply < 1 || c.MaxMessagesPerReply > 5 {
		return fmt.Errorf("max messages per reply must be 1-5 (LINE API limit), got %d", c.MaxMessagesPerReply)
	}
	if c.MaxEventsPerWebhook < 1 {
		return fmt.Errorf("max events per webhook must be positive, got %d", c.MaxEventsPerWebhook)
	}
	if c.UserRateLimitBurst <= 0 {
		return fmt.Errorf("user rate limit burst must be positive, got %f", c.UserRateLimitBurst)
	}
	if c.UserRateLimitRefillPerSec <= 0 {
		return fmt.Errorf("user rate limit refill rate must be positive, got %f", c.UserRateLimitRefillPerSec)
	}
	if c.GlobalRateLimitRPS <= 0 {
		return fmt.Errorf("global rate limit RPS must be positive, got %f", c.GlobalRateLimitRPS)
	}
	if c.MaxCarouselCards < 1 || c.MaxCarouselCards > 10 {
		return fmt.Errorf("max carousel cards must be 1-10 (LINE API limit), got %d", c.MaxCarouselCards)
	}
	if c.TitleBudget < 1 || c.TitleBudget > 40 {
		return fmt.Errorf("title budget must be 1-40 (LINE API limit), got %d", c.TitleBudget)
	}
	return nil
}

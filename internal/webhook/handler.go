// Package webhook receives LINE webhook callbacks, verifies their
// signature and hands the event batch to the bot router.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/aldenlin/celebmatch-linebot-go/internal/bot"
	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	"github.com/aldenlin/celebmatch-linebot-go/internal/logger"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ratelimit"
)

// Router is the slice of the bot router the handler needs.
type Router interface {
	HandleEvents(ctx context.Context, events []webhook.EventInterface) []bot.Reply
}

// Handler verifies and processes webhook callbacks. Events are handled
// synchronously within the request: LINE reply tokens are short-lived,
// so replies go out before the 200 does.
type Handler struct {
	channelSecret string
	client        *messaging_api.MessagingApiAPI
	router        Router
	globalLimiter *ratelimit.Limiter
	logger        *logger.Logger
	metrics       *metrics.Metrics

	maxEventsPerWebhook int
}

// HandlerConfig holds configuration for creating a Handler.
type HandlerConfig struct {
	ChannelSecret string
	Client        *messaging_api.MessagingApiAPI
	Router        Router
	BotConfig     *config.BotConfig
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.ChannelSecret == "" {
		return nil, fmt.Errorf("channel secret is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("messaging API client is required")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("router is required")
	}

	return &Handler{
		channelSecret:       cfg.ChannelSecret,
		client:              cfg.Client,
		router:              cfg.Router,
		globalLimiter:       ratelimit.New(cfg.BotConfig.GlobalRateLimitRPS, cfg.BotConfig.GlobalRateLimitRPS),
		logger:              cfg.Logger.WithModule("webhook"),
		metrics:             cfg.Metrics,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
	}, nil
}

// Handle is the Gin handler for the webhook endpoint.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			if h.metrics != nil {
				h.metrics.RecordHTTPError("bad_signature", "webhook")
			}
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
			if h.metrics != nil {
				h.metrics.RecordHTTPError("parse_error", "webhook")
			}
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	events := cb.Events
	if len(events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		events = events[:h.maxEventsPerWebhook]
	}

	start := time.Now()
	replies := h.router.HandleEvents(c.Request.Context(), events)
	for _, reply := range replies {
		h.sendReply(c.Request.Context(), reply)
	}

	h.logger.WithField("event_count", len(events)).
		WithField("reply_count", len(replies)).
		WithField("batch_duration_ms", time.Since(start).Milliseconds()).
		Info("Webhook batch processed")

	c.String(http.StatusOK, "OK")
}

// sendReply delivers one reply, throttled by the global limiter.
func (h *Handler) sendReply(ctx context.Context, reply bot.Reply) {
	if !h.globalLimiter.Allow() {
		h.logger.Warn("Global rate limit reached; waiting for a token")
		if h.metrics != nil {
			h.metrics.RecordRateLimiterDrop("global")
		}
		if err := h.globalLimiter.Wait(ctx); err != nil {
			h.logger.WithError(err).Error("Gave up waiting for rate limit token")
			h.recordReply("dropped")
			return
		}
	}

	if _, err := h.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: reply.Token,
		Messages:   reply.Messages,
	}); err != nil {
		switch {
		case strings.Contains(err.Error(), "Invalid reply token"):
			h.logger.WithError(err).Debug("Reply token already used or expired")
		default:
			h.logger.WithError(err).Error("Failed to send reply")
		}
		h.recordReply("error")
		return
	}
	h.recordReply("success")
}

func (h *Handler) recordReply(status string) {
	if h.metrics != nil {
		h.metrics.RecordReply(status)
	}
}

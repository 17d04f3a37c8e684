// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aldenlin/celebmatch-linebot-go/internal/archive"
	"github.com/aldenlin/celebmatch-linebot-go/internal/bot"
	"github.com/aldenlin/celebmatch-linebot-go/internal/bot/match"
	"github.com/aldenlin/celebmatch-linebot-go/internal/bot/so"
	"github.com/aldenlin/celebmatch-linebot-go/internal/buildinfo"
	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ctxutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/hosting"
	"github.com/aldenlin/celebmatch-linebot-go/internal/lineutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/logger"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ratelimit"
	"github.com/aldenlin/celebmatch-linebot-go/internal/sentry"
	"github.com/aldenlin/celebmatch-linebot-go/internal/storage"
	"github.com/aldenlin/celebmatch-linebot-go/internal/vision"
	"github.com/aldenlin/celebmatch-linebot-go/internal/webhook"
)

const senderName = "CelebMatch"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	archiver       *archive.Archiver
	userLimiter    *ratelimit.KeyedLimiter
	webhookHandler *webhook.Handler
	server         *http.Server
	wg             sync.WaitGroup
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "celebmatch-linebot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Default logger enables context value extraction (userID, chatID,
	// requestID) in package-level slog.*Context() calls.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")

	if cfg.SentryEnabled {
		if err := sentry.Initialize(sentry.Config{
			Token:       cfg.SentryToken,
			Host:        cfg.SentryHost,
			Environment: cfg.SentryEnvironment,
			Release:     buildinfo.Version,
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed; error tracking disabled")
		} else if sentry.IsEnabled() {
			log.Info("Sentry error tracking enabled")
		}
	}

	db, err := storage.New(cfg.SQLitePath(), cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).WithField("cache_ttl", cfg.CacheTTL).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	visionClient, err := vision.New(vision.Config{
		BaseURL:       cfg.VisionBaseURL,
		APIKeys:       cfg.VisionAPIKeys,
		ClassifierIDs: cfg.VisionClassifierIDs,
		Threshold:     cfg.VisionThreshold,
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}
	log.WithField("key_count", len(cfg.VisionAPIKeys)).Info("Vision client created")

	hostingClient, err := hosting.New(hosting.Config{
		CloudName:               cfg.CloudinaryCloudName,
		APIKey:                  cfg.CloudinaryAPIKey,
		APISecret:               cfg.CloudinaryAPISecret,
		Folder:                  cfg.CloudinaryFolder,
		CompositeTemplateID:     cfg.CompositeTemplateID,
		CompositeMaleTemplateID: cfg.CompositeMaleTemplateID,
		CompositeFemaleTemplate: cfg.CompositeFemaleTemplate,
		Metrics:                 m,
	})
	if err != nil {
		return nil, fmt.Errorf("hosting: %w", err)
	}

	var archiver *archive.Archiver
	if cfg.R2Enabled {
		archiver, err = archive.New(ctx, archive.Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			KeyPrefix:       cfg.R2KeyPrefix,
			Metrics:         m,
		})
		if err != nil {
			// Archival is best-effort; the bot runs without it.
			log.WithError(err).Warn("Archive initialization failed; inbound images will not be archived")
			archiver = nil
		} else {
			log.WithField("bucket", cfg.R2BucketName).Info("Image archive enabled")
		}
	}

	searchClient := so.New(so.Config{
		BaseURL: cfg.StackExchangeBaseURL,
		APIKey:  cfg.StackExchangeKey,
		Metrics: m,
	})

	lineClient, err := messaging_api.NewMessagingApiAPI(cfg.LineChannelToken)
	if err != nil {
		return nil, fmt.Errorf("messaging API client: %w", err)
	}
	blobClient, err := messaging_api.NewMessagingApiBlobAPI(cfg.LineChannelToken)
	if err != nil {
		return nil, fmt.Errorf("messaging API blob client: %w", err)
	}

	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "chat",
		Burst:         cfg.Bot.UserRateLimitBurst,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	sender := lineutil.GetSender(senderName, "")

	var shareURI, addFriendURI string
	if cfg.LineBotBasicID != "" {
		shareURI = "https://line.me/R/nv/recommendOA/" + cfg.LineBotBasicID
		addFriendURI = "https://line.me/R/ti/p/" + cfg.LineBotBasicID
	}

	matcher := match.NewHandler(visionClient, hostingClient, db, log, m, match.Config{
		MaxCards:          cfg.Bot.MaxCarouselCards,
		ScoreAdjustment:   cfg.Bot.ScoreAdjustment,
		Threshold:         cfg.VisionThreshold,
		TitleBudget:       cfg.Bot.TitleBudget,
		FaceDetectEnabled: cfg.FaceDetectEnabled,
		ShareURI:          shareURI,
		AddFriendURI:      addFriendURI,
		Sender:            sender,
	})

	router := bot.NewRouter(bot.RouterConfig{
		Matcher:     matcher,
		Hosting:     hostingClient,
		Profiles:    lineutil.NewProfileClient(lineClient),
		Content:     lineutil.NewContentClient(blobClient),
		Archiver:    archiver,
		Search:      searchClient,
		UserLimiter: userLimiter,
		Logger:      log,
		Metrics:     m,
		Sender:      sender,
		BotConfig:   &cfg.Bot,
	})

	webhookHandler, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		Client:        lineClient,
		Router:        router,
		BotConfig:     &cfg.Bot,
		Logger:        log,
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if sentry.IsEnabled() {
		engine.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	engine.Use(securityHeadersMiddleware())
	engine.Use(loggingMiddleware(log))

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		archiver:       archiver,
		userLimiter:    userLimiter,
		webhookHandler: webhookHandler,
	}

	engine.GET("/", app.redirectToGitHub)
	engine.GET("/livez", app.livenessCheck)
	engine.HEAD("/livez", app.livenessCheck)
	engine.GET("/readyz", app.readinessCheck)
	engine.HEAD("/readyz", app.readinessCheck)
	engine.POST("/webhook", webhookHandler.Handle)
	engine.GET("/metrics",
		metricsAuthMiddleware(cfg.MetricsPassword != "", cfg.MetricsUsername, cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func (a *Application) redirectToGitHub(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "https://github.com/aldenlin/celebmatch-linebot-go")
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	cached := 0
	if count, err := a.db.CountCelebrities(ctx); err == nil {
		cached = count
	} else {
		a.logger.WithError(err).Warn("Failed to count cached celebrities")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"cache": gin.H{
			"celebs": cached,
		},
		"features": gin.H{
			"face_detect": a.cfg.FaceDetectEnabled,
			"archive":     a.archiver.Enabled(),
		},
	})
}

// Run starts the HTTP server and background jobs, then blocks until a
// shutdown signal arrives. Background jobs stop before resources close so
// no job runs against a closed database.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.cacheCleanup(ctx)
	})
	a.wg.Go(func() {
		a.updateCacheSizeMetrics(ctx)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops the HTTP server, then closes resources.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if a.userLimiter != nil {
		a.userLimiter.Stop()
	}

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// cacheCleanup periodically deletes expired celebrity records.
func (a *Application) cacheCleanup(ctx context.Context) {
	a.logger.Debug("Cache cleanup job started")
	defer a.logger.Debug("Cache cleanup job stopped")

	// Let startup settle before the first pass.
	select {
	case <-ctx.Done():
		return
	case <-time.After(config.CacheCleanupInitialDelay):
	}
	a.runCacheCleanup(ctx)

	ticker := time.NewTicker(config.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Cache cleanup received shutdown signal")
			return
		case <-ticker.C:
			a.runCacheCleanup(ctx)
		}
	}
}

func (a *Application) runCacheCleanup(ctx context.Context) {
	startTime := time.Now()
	a.logger.Info("Starting cache cleanup...")

	deleted, err := a.db.CleanupExpired(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Failed to cleanup expired celebrity records")
		sentry.CaptureExceptionWithContext(ctx, err)
		return
	}

	if _, err := a.db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
		a.logger.WithError(err).Warn("Failed to VACUUM database")
	}

	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", time.Since(startTime).Milliseconds()).
		Info("Cache cleanup completed")
}

// updateCacheSizeMetrics periodically records cache size to Prometheus.
func (a *Application) updateCacheSizeMetrics(ctx context.Context) {
	a.logger.Debug("Cache metrics job started")
	defer a.logger.Debug("Cache metrics job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Cache metrics received shutdown signal")
			return
		case <-ticker.C:
			if count, err := a.db.CountCelebrities(ctx); err == nil {
				a.metrics.SetCacheSize("celebs", count)
			}
			a.metrics.SetRateLimiterUsers(a.userLimiter.GetActiveCount())
		}
	}
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID != "" {
			ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", duration.Milliseconds()).
			WithField("client_ip", c.ClientIP())

		if requestID != "" {
			entry = entry.WithRequestID(requestID)
		}

		if status >= 500 {
			entry.Error("HTTP request failed")
		} else if status >= 400 && status != 404 {
			entry.Warn("HTTP request rejected")
		} else if status == 404 {
			entry.Debug("HTTP request not found")
		} else {
			entry.Debug("HTTP request completed")
		}
	}
}

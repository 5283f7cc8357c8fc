// cmd/lead-gateway/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-gateway/internal/common/bitrix"
	"lead-gateway/internal/common/config"
	"lead-gateway/internal/common/database"
	stderrors "lead-gateway/internal/common/errors"
	"lead-gateway/internal/common/logger"
	"lead-gateway/internal/common/observability"
	"lead-gateway/internal/gateway"
	"lead-gateway/internal/session"
	"lead-gateway/internal/token"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lead gateway...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Sessions, CRM client, handlers ---
	sessions := session.NewManager(rdb, session.Config{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTLDuration(),
	}, log)

	crmCfg := bitrix.Config{
		Domain:   cfg.Bitrix.Domain,
		UserID:   cfg.Bitrix.UserID,
		Token:    cfg.Bitrix.WebhookToken,
		Timeout:  time.Duration(cfg.Bitrix.Timeout) * time.Second,
		Endpoint: cfg.Bitrix.Endpoint,
	}
	if !crmCfg.Configured() {
		// The gateway still serves tokens and health checks; submissions
		// report a configuration error until the secrets arrive.
		zapLog.Warn("CRM webhook credentials missing, submissions will be refused")
	}

	responder := stderrors.NewErrorResponder(log)
	submitService := gateway.NewService(log, crmCfg)
	submitCfg := &gateway.Config{
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.WindowDuration(),
	}
	if err := submitCfg.Validate(); err != nil {
		zapLog.Fatal("invalid rate limit config", zap.Error(err))
	}
	submitHandler := gateway.NewHandler(sessions, submitService, submitCfg, responder, log)
	tokenHandler := token.NewHandler(token.NewService(sessions, log), log)

	// --- Router ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observabilityMiddleware(obs))

	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		responder.Respond(c, stderrors.NewMethodNotAllowedError())
	})

	router.GET("/csrf-token", tokenHandler.Handle)
	router.POST("/submit", submitHandler.Handle)
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := rdb.Ping(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Lead gateway stopped gracefully")
}

// observabilityMiddleware records per-route request counts and latency.
func observabilityMiddleware(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.RecordRequest(c.Request.Context(), route, c.Writer.Status())
		obs.RecordRequestDuration(c.Request.Context(), route, time.Since(start))
	}
}

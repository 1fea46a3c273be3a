package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostr-app/guest-messaging-platform/cmd/mainconfig"
	"github.com/hostr-app/guest-messaging-platform/internal/api/router"
	"github.com/hostr-app/guest-messaging-platform/internal/app/bootstrap"
	appconfig "github.com/hostr-app/guest-messaging-platform/internal/config"
	"github.com/hostr-app/guest-messaging-platform/internal/http/handlers"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/internal/observability/metrics"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

func main() {
	// Best-effort .env for local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting guest-messaging-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	db, err := bootstrap.OpenSQLDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, false)
	if redisClient == nil {
		logger.Error("REDIS_ADDR is required")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	metricsHandler, engineMetrics := setupEngineMetrics()

	var sesClient *sesv2.Client
	if awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("failed to load AWS config", "error", err)
	} else {
		sesClient = sesv2.NewFromConfig(awsCfg)
	}
	sender := bootstrap.BuildEmailSender(cfg, sesClient, logger)
	notifier := notify.NewService(sender, bootstrap.EscalationRecipients(cfg.EscalationEmail), logger)

	runtime := bootstrap.BuildEngine(cfg, logger, pool, db, redisClient, engineMetrics)

	routerCfg := &router.Config{
		Logger:          logger,
		DecideHandler:   handlers.NewDecideHandler(logger, runtime.Engine, notifier),
		AdminRules:      handlers.NewAdminRulesHandler(logger, runtime.RulesRepo),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupEngineMetrics() (http.Handler, *metrics.EngineMetrics) {
	registry := prometheus.NewRegistry()
	m := metrics.NewEngineMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/hostr-app/guest-messaging-platform/cmd/mainconfig"
	"github.com/hostr-app/guest-messaging-platform/internal/app/bootstrap"
	appconfig "github.com/hostr-app/guest-messaging-platform/internal/config"
	"github.com/hostr-app/guest-messaging-platform/internal/notify"
	"github.com/hostr-app/guest-messaging-platform/internal/observability/metrics"
	decisionworker "github.com/hostr-app/guest-messaging-platform/internal/worker/decision"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

func main() {
	// Best-effort .env for local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting decision worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.InboundQueueURL == "" {
		logger.Error("INBOUND_QUEUE_URL is required")
		os.Exit(1)
	}

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

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sender := bootstrap.BuildEmailSender(cfg, sesv2.NewFromConfig(awsCfg), logger)
	notifier := notify.NewService(sender, bootstrap.EscalationRecipients(cfg.EscalationEmail), logger)

	engineMetrics := metrics.NewEngineMetrics(nil)
	runtime := bootstrap.BuildEngine(cfg, logger, pool, db, redisClient, engineMetrics)

	queue := decisionworker.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
	worker := decisionworker.NewWorker(logger, queue, runtime.Engine, notifier, cfg.WorkerCount, cfg.PollWaitTime)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("decision worker shutting down")
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("decision worker stopped")
}

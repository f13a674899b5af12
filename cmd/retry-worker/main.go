package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/audit"
	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/eventbus"
	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/notify"
	"github.com/gradeflow/gradeflow/pkg/retry"
	"github.com/gradeflow/gradeflow/pkg/store/postgres"
	redisclient "github.com/gradeflow/gradeflow/pkg/store/redis"
	"github.com/gradeflow/gradeflow/pkg/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	bus := eventbus.NewBus(redis.Client())

	var notifyService notify.Service
	if cfg.Notification.Driver == "kafka" {
		kafkaService := notify.NewKafkaService(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.NotificationTopic)
		defer kafkaService.Close()
		notifyService = kafkaService
	} else {
		notifyService = notify.NewRedisService(bus)
	}

	submissionRepo := postgres.NewSubmissionRepository(db.DB())
	auditRepo := postgres.NewAuditRepository(db.DB())
	failedRepo := postgres.NewFailedWebhookRepository(db.DB())

	// Reprocess skips signature and replay stages, but the pipeline is
	// the same one the ingest path runs.
	pipeline := webhook.NewPipeline(webhook.PipelineOptions{
		Secret:     cfg.Webhook.Secret,
		Guard:      webhook.NewReplayGuard(redisclient.NewReplayStore(redis), cfg.Webhook.MaxAge),
		Applier:    grading.NewApplier(submissionRepo),
		Recorder:   audit.NewRecorder(auditRepo, logger),
		Dispatcher: notify.NewDispatcher(notifyService, logger, cfg.Notification.FeedbackLimit, cfg.Notification.Timeout),
		Bus:        bus,
		Logger:     logger,
		Timeout:    cfg.Webhook.PipelineTimeout,
	})

	scheduler := retry.NewScheduler(failedRepo, pipeline, logger,
		cfg.Retry.PollInterval, cfg.Retry.BatchSize, cfg.Retry.MaxRetries)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("retry scheduler stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("retry worker shutting down")
}

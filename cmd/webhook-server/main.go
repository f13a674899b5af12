package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/apiserver"
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

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	bus := eventbus.NewBus(redis.Client())

	var notifyService notify.Service
	if cfg.Notification.Driver == "kafka" {
		logger.Info("using kafka notification driver")
		kafkaService := notify.NewKafkaService(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.NotificationTopic)
		defer kafkaService.Close()
		notifyService = kafkaService
	} else {
		logger.Info("using redis notification driver")
		notifyService = notify.NewRedisService(bus)
	}

	submissionRepo := postgres.NewSubmissionRepository(db.DB())
	auditRepo := postgres.NewAuditRepository(db.DB())
	failedRepo := postgres.NewFailedWebhookRepository(db.DB())

	pipeline := webhook.NewPipeline(webhook.PipelineOptions{
		Secret:     cfg.Webhook.Secret,
		Guard:      webhook.NewReplayGuard(redisclient.NewReplayStore(redis), cfg.Webhook.MaxAge),
		Applier:    grading.NewApplier(submissionRepo),
		Recorder:   audit.NewRecorder(auditRepo, logger),
		Dispatcher: notify.NewDispatcher(notifyService, logger, cfg.Notification.FeedbackLimit, cfg.Notification.Timeout),
		Failures:   failedRepo,
		Bus:        bus,
		Logger:     logger,
		Timeout:    cfg.Webhook.PipelineTimeout,
	})

	scheduler := retry.NewScheduler(failedRepo, pipeline, logger,
		cfg.Retry.PollInterval, cfg.Retry.BatchSize, cfg.Retry.MaxRetries)

	server := apiserver.NewServer(cfg, logger, apiserver.Deps{
		Pipeline:    pipeline,
		Submissions: submissionRepo,
		Audits:      auditRepo,
		Failures:    failedRepo,
		Retries:     scheduler,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics server", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("starting webhook server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server forced to shutdown", zap.Error(err))
	}
}

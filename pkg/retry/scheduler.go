package retry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/metrics"
	"github.com/gradeflow/gradeflow/pkg/model"
	"github.com/gradeflow/gradeflow/pkg/webhook"
)

// Store is the failed-webhook repository surface the scheduler drives.
// Claim must be an atomic conditional update so concurrent scheduler
// replicas never double-process a record.
type Store interface {
	ListPending(ctx context.Context, limit, maxRetries int) ([]model.FailedWebhook, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSuccess(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID, retryCount int, status model.FailedWebhookStatus) error
}

// Reprocessor replays a stored delivery through the webhook pipeline.
type Reprocessor interface {
	Reprocess(ctx context.Context, d webhook.Delivery) (*grading.Result, error)
}

type BatchStats struct {
	Selected  int `json:"selected"`
	Succeeded int `json:"succeeded"`
	Requeued  int `json:"requeued"`
	Exhausted int `json:"exhausted"`
	Skipped   int `json:"skipped"`
}

// Scheduler periodically replays pending failed webhooks with bounded
// batching. It is driven either by its own ticker loop (Run) or by an
// external cron collaborator invoking RunBatch directly.
type Scheduler struct {
	store        Store
	pipeline     Reprocessor
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
}

func NewScheduler(store Store, pipeline Reprocessor, logger *zap.Logger, pollInterval time.Duration, batchSize, maxRetries int) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Scheduler{
		store:        store,
		pipeline:     pipeline,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("retry scheduler starting",
		zap.Duration("poll_interval", s.pollInterval),
		zap.Int("batch_size", s.batchSize),
		zap.Int("max_retries", s.maxRetries),
	)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	if _, err := s.RunBatch(ctx); err != nil {
		s.logger.Warn("retry batch failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunBatch(ctx); err != nil {
				s.logger.Warn("retry batch failed", zap.Error(err))
			}
		}
	}
}

// RunBatch selects the oldest pending records still under the retry cap,
// claims each, and replays it through the pipeline. On renewed failure
// the record returns to PENDING with its count incremented, or parks as
// terminal FAILED at the cap.
func (s *Scheduler) RunBatch(ctx context.Context) (BatchStats, error) {
	return s.RunBatchWith(ctx, s.batchSize, s.maxRetries)
}

// RunBatchWith is RunBatch with per-invocation overrides, for external
// cron collaborators that supply their own batch size or retry cap.
func (s *Scheduler) RunBatchWith(ctx context.Context, batchSize, maxRetries int) (BatchStats, error) {
	var stats BatchStats

	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}

	records, err := s.store.ListPending(ctx, batchSize, maxRetries)
	if err != nil {
		return stats, err
	}
	stats.Selected = len(records)

	for i := range records {
		s.processRecord(ctx, &records[i], maxRetries, &stats)
	}

	if stats.Selected > 0 {
		s.logger.Info("retry batch complete",
			zap.Int("selected", stats.Selected),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("requeued", stats.Requeued),
			zap.Int("exhausted", stats.Exhausted),
			zap.Int("skipped", stats.Skipped),
		)
	}

	return stats, nil
}

func (s *Scheduler) processRecord(ctx context.Context, record *model.FailedWebhook, maxRetries int, stats *BatchStats) {
	claimed, err := s.store.Claim(ctx, record.ID)
	if err != nil {
		s.logger.Warn("failed to claim webhook record",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
		stats.Skipped++
		return
	}
	if !claimed {
		// Another scheduler replica got there first.
		stats.Skipped++
		return
	}

	delivery := webhook.Delivery{
		Body:     record.RawPayload,
		RemoteIP: record.RemoteIP,
	}

	if _, err := s.pipeline.Reprocess(ctx, delivery); err != nil {
		retryCount := record.RetryCount + 1
		status := model.FailedWebhookPending
		if retryCount >= maxRetries {
			status = model.FailedWebhookFailed
		}

		if releaseErr := s.store.Release(ctx, record.ID, retryCount, status); releaseErr != nil {
			s.logger.Error("failed to release webhook record",
				zap.String("record_id", record.ID.String()),
				zap.Error(releaseErr),
			)
			stats.Skipped++
			return
		}

		if status == model.FailedWebhookFailed {
			metrics.RetriesTotal.WithLabelValues("exhausted").Inc()
			s.logger.Warn("webhook retries exhausted",
				zap.String("record_id", record.ID.String()),
				zap.Int64("submission_id", record.SubmissionID),
				zap.Int("retry_count", retryCount),
			)
			stats.Exhausted++
		} else {
			metrics.RetriesTotal.WithLabelValues("requeued").Inc()
			stats.Requeued++
		}
		return
	}

	if err := s.store.MarkSuccess(ctx, record.ID); err != nil {
		s.logger.Error("failed to mark webhook record succeeded",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
		stats.Skipped++
		return
	}
	metrics.RetriesTotal.WithLabelValues("succeeded").Inc()
	stats.Succeeded++
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gradeflow/gradeflow/pkg/model"
)

type FailedWebhookRepository struct {
	db *gorm.DB
}

func NewFailedWebhookRepository(db *gorm.DB) *FailedWebhookRepository {
	return &FailedWebhookRepository{db: db}
}

func (r *FailedWebhookRepository) Create(ctx context.Context, record *model.FailedWebhook) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = model.FailedWebhookPending
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *FailedWebhookRepository) ListPending(ctx context.Context, limit, maxRetries int) ([]model.FailedWebhook, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []model.FailedWebhook
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", model.FailedWebhookPending, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Claim transitions a record PENDING -> PROCESSING as a single
// conditional update. The RowsAffected check makes the claim atomic, so
// concurrent scheduler replicas cannot double-process a record.
func (r *FailedWebhookRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.FailedWebhook{}).
		Where("id = ? AND status = ?", id, model.FailedWebhookPending).
		Updates(map[string]interface{}{
			"status":     model.FailedWebhookProcessing,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *FailedWebhookRepository) MarkSuccess(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.FailedWebhook{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.FailedWebhookSuccess,
			"updated_at": time.Now(),
		}).Error
}

// Release returns a claimed record to PENDING with its new retry count,
// or parks it as terminal FAILED once retries are exhausted. The caller
// holds the PROCESSING claim, so a plain update is safe here.
func (r *FailedWebhookRepository) Release(ctx context.Context, id uuid.UUID, retryCount int, status model.FailedWebhookStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.FailedWebhook{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"updated_at":  time.Now(),
		}).Error
}

func (r *FailedWebhookRepository) List(ctx context.Context, status *model.FailedWebhookStatus, limit, offset int) ([]model.FailedWebhook, int64, error) {
	var records []model.FailedWebhook
	var total int64

	query := r.db.WithContext(ctx).Model(&model.FailedWebhook{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error

	return records, total, err
}

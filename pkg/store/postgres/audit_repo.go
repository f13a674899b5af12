package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/gradeflow/gradeflow/pkg/model"
)

// AuditRepository is append-only: entries are created and queried, never
// updated or deleted.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) ListBySubmission(ctx context.Context, submissionID int64, limit, offset int) ([]model.AuditEntry, int64, error) {
	var entries []model.AuditEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AuditEntry{}).
		Where("submission_id = ?", submissionID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error

	return entries, total, err
}

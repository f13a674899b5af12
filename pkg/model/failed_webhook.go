package model

import (
	"time"

	"github.com/google/uuid"
)

type FailedWebhookStatus string

const (
	FailedWebhookPending    FailedWebhookStatus = "PENDING"
	FailedWebhookProcessing FailedWebhookStatus = "PROCESSING"
	FailedWebhookSuccess    FailedWebhookStatus = "SUCCESS"
	FailedWebhookFailed     FailedWebhookStatus = "FAILED"
)

// FailedWebhook captures a webhook delivery whose processing failed after
// the signature check. PENDING rows are replayed by the retry scheduler;
// FAILED is terminal, either because retries are exhausted or because the
// failure is deterministic and retrying would fail identically.
type FailedWebhook struct {
	ID           uuid.UUID           `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SubmissionID int64               `gorm:"not null;index"`
	RawPayload   []byte              `gorm:"type:bytea;not null"`
	ErrorMessage string              `gorm:"not null"`
	RemoteIP     string
	Status       FailedWebhookStatus `gorm:"type:varchar(50);default:'PENDING';index"`
	RetryCount   int                 `gorm:"default:0"`
	CreatedAt    time.Time           `gorm:"index"`
	UpdatedAt    time.Time
}

func (FailedWebhook) TableName() string {
	return "failed_webhooks"
}

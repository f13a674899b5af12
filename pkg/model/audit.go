package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditEventType string

const (
	AuditReceived          AuditEventType = "RECEIVED"
	AuditSignatureVerified AuditEventType = "SIGNATURE_VERIFIED"
	AuditValidated         AuditEventType = "VALIDATED"
	AuditGradeApplied      AuditEventType = "GRADE_APPLIED"
	AuditNotificationSent  AuditEventType = "NOTIFICATION_SENT"
	AuditError             AuditEventType = "ERROR"
)

// AuditEntry is an append-only record of a pipeline stage. Rows are never
// updated or deleted once written; the repository exposes no mutation paths.
type AuditEntry struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SubmissionID int64          `gorm:"not null;index"`
	EventType    AuditEventType `gorm:"type:varchar(50);not null;index"`
	Details      JSONB          `gorm:"type:jsonb;default:'{}'"`
	CreatedBy    string         `gorm:"not null;default:'autograder-webhook'"`
	CreatedAt    time.Time      `gorm:"index"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

func IsValidAuditEventType(eventType AuditEventType) bool {
	switch eventType {
	case AuditReceived, AuditSignatureVerified, AuditValidated,
		AuditGradeApplied, AuditNotificationSent, AuditError:
		return true
	default:
		return false
	}
}

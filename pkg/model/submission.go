package model

import (
	"time"
)

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Submission is the authoritative grade row for a student submission.
// The primary key is the platform-wide submission id carried in the
// autograder webhook payload, so there is exactly one row per submission.
type Submission struct {
	ID             int64            `gorm:"primaryKey;autoIncrement:false"`
	StudentID      string           `gorm:"not null;index"`
	StudentEmail   string           `gorm:"not null"`
	AssignmentName string           `gorm:"not null"`
	MaxScore       float64          `gorm:"not null;default:100"`
	Score          *int
	Feedback       string
	Status         SubmissionStatus `gorm:"type:varchar(50);default:'SUBMITTED';index"`
	GradedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func IsValidSubmissionStatus(status SubmissionStatus) bool {
	switch status {
	case SubmissionSubmitted, SubmissionGraded:
		return true
	default:
		return false
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/model"
)

type SubmissionReader interface {
	GetByID(ctx context.Context, id int64) (*model.Submission, error)
}

type AuditReader interface {
	ListBySubmission(ctx context.Context, submissionID int64, limit, offset int) ([]model.AuditEntry, int64, error)
}

type SubmissionHandler struct {
	submissions SubmissionReader
	audits      AuditReader
	logger      *zap.Logger
}

func NewSubmissionHandler(submissions SubmissionReader, audits AuditReader, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, audits: audits, logger: logger}
}

type submissionResponse struct {
	ID             int64   `json:"id"`
	StudentID      string  `json:"student_id"`
	AssignmentName string  `json:"assignment_name"`
	MaxScore       float64 `json:"max_score"`
	Score          *int    `json:"score,omitempty"`
	Feedback       string  `json:"feedback,omitempty"`
	Status         string  `json:"status"`
	GradedAt       *string `json:"graded_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type auditEntryResponse struct {
	ID           string      `json:"id"`
	SubmissionID int64       `json:"submission_id"`
	EventType    string      `json:"event_type"`
	Details      model.JSONB `json:"details"`
	CreatedBy    string      `json:"created_by"`
	CreatedAt    string      `json:"created_at"`
}

func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	sub, err := h.submissions.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, grading.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		h.logger.Error("failed to load submission", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load submission"})
		return
	}

	c.JSON(http.StatusOK, mapSubmission(sub))
}

func (h *SubmissionHandler) ListAudit(c *gin.Context) {
	id, ok := parseSubmissionID(c)
	if !ok {
		return
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	entries, total, err := h.audits.ListBySubmission(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("failed to query audit trail", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit trail"})
		return
	}

	response := make([]auditEntryResponse, 0, len(entries))
	for i := range entries {
		response = append(response, mapAuditEntry(&entries[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": response,
		"total":   total,
	})
}

func parseSubmissionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return 0, false
	}
	return id, true
}

func mapSubmission(sub *model.Submission) submissionResponse {
	return submissionResponse{
		ID:             sub.ID,
		StudentID:      sub.StudentID,
		AssignmentName: sub.AssignmentName,
		MaxScore:       sub.MaxScore,
		Score:          sub.Score,
		Feedback:       sub.Feedback,
		Status:         string(sub.Status),
		GradedAt:       formatTime(sub.GradedAt),
		CreatedAt:      sub.CreatedAt.UTC().Format(timeFormat),
	}
}

func mapAuditEntry(entry *model.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:           entry.ID.String(),
		SubmissionID: entry.SubmissionID,
		EventType:    string(entry.EventType),
		Details:      entry.Details,
		CreatedBy:    entry.CreatedBy,
		CreatedAt:    entry.CreatedAt.UTC().Format(timeFormat),
	}
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/model"
	"github.com/gradeflow/gradeflow/pkg/retry"
)

type FailedWebhookReader interface {
	List(ctx context.Context, status *model.FailedWebhookStatus, limit, offset int) ([]model.FailedWebhook, int64, error)
}

type RetryRunner interface {
	RunBatchWith(ctx context.Context, batchSize, maxRetries int) (retry.BatchStats, error)
}

// AdminHandler exposes the failed-webhook backlog and the on-demand
// retry entry point used by external cron collaborators.
type AdminHandler struct {
	failures FailedWebhookReader
	retries  RetryRunner
	logger   *zap.Logger
}

func NewAdminHandler(failures FailedWebhookReader, retries RetryRunner, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{failures: failures, retries: retries, logger: logger}
}

type failedWebhookResponse struct {
	ID           string `json:"id"`
	SubmissionID int64  `json:"submission_id"`
	ErrorMessage string `json:"error_message"`
	RemoteIP     string `json:"remote_ip,omitempty"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retry_count"`
	CreatedAt    string `json:"created_at"`
}

func (h *AdminHandler) ListFailedWebhooks(c *gin.Context) {
	var status *model.FailedWebhookStatus
	if value := c.Query("status"); value != "" {
		parsed := model.FailedWebhookStatus(value)
		switch parsed {
		case model.FailedWebhookPending, model.FailedWebhookProcessing,
			model.FailedWebhookSuccess, model.FailedWebhookFailed:
			status = &parsed
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	limit := parseLimit(c.Query("limit"), 20)
	offset := parseOffset(c.Query("offset"))

	records, total, err := h.failures.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list failed webhooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failed webhooks"})
		return
	}

	response := make([]failedWebhookResponse, 0, len(records))
	for i := range records {
		response = append(response, mapFailedWebhook(&records[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"failed_webhooks": response,
		"total":           total,
	})
}

type runRetriesRequest struct {
	BatchSize  int `json:"batch_size"`
	MaxRetries int `json:"max_retries"`
}

func (h *AdminHandler) RunRetries(c *gin.Context) {
	var req runRetriesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
	}

	stats, err := h.retries.RunBatchWith(c.Request.Context(), req.BatchSize, req.MaxRetries)
	if err != nil {
		h.logger.Error("retry batch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retry batch failed"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func mapFailedWebhook(record *model.FailedWebhook) failedWebhookResponse {
	return failedWebhookResponse{
		ID:           record.ID.String(),
		SubmissionID: record.SubmissionID,
		ErrorMessage: record.ErrorMessage,
		RemoteIP:     record.RemoteIP,
		Status:       string(record.Status),
		RetryCount:   record.RetryCount,
		CreatedAt:    record.CreatedAt.UTC().Format(timeFormat),
	}
}

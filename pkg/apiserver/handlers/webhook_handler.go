package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/webhook"
)

// Processor runs one delivery through the webhook pipeline.
type Processor interface {
	Process(ctx context.Context, d webhook.Delivery) (*grading.Result, error)
}

type WebhookHandler struct {
	pipeline        Processor
	signatureHeader string
	logger          *zap.Logger
}

func NewWebhookHandler(pipeline Processor, signatureHeader string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline:        pipeline,
		signatureHeader: signatureHeader,
		logger:          logger,
	}
}

// Receive handles POST /webhooks/autograder/. Authentication is the HMAC
// signature over the raw body; with the header absent the payload is
// never parsed.
func (h *WebhookHandler) Receive(c *gin.Context) {
	signature := c.GetHeader(h.signatureHeader)
	if signature == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature header"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	delivery := webhook.Delivery{
		Body:      body,
		Signature: signature,
		RemoteIP:  c.ClientIP(),
	}

	result, err := h.pipeline.Process(c.Request.Context(), delivery)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"submission_id": result.SubmissionID,
		"score":         result.Score,
		"message":       fmt.Sprintf("grade recorded (%.2f%%)", result.Percentage),
	})
}

func (h *WebhookHandler) renderError(c *gin.Context, err error) {
	var werr *webhook.Error
	if !errors.As(err, &werr) {
		h.logger.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}

	if werr.Kind == webhook.KindReplay {
		// Acknowledged so the autograder stops redelivering; nothing
		// was processed.
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "duplicate or stale delivery ignored",
		})
		return
	}

	response := gin.H{"error": werr.Message}
	if werr.Field != "" {
		response["field"] = werr.Field
	}
	if werr.Kind == webhook.KindPersistence {
		// Retries happen asynchronously; the caller sees only the
		// failure class.
		response = gin.H{"error": "webhook processing failed"}
		h.logger.Error("webhook parked for retry", zap.Error(werr))
	}

	c.JSON(werr.HTTPStatus(), response)
}

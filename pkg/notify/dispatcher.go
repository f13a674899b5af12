package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/model"
)

type Notification struct {
	SubmissionID int64  `json:"submission_id"`
	Recipient    string `json:"recipient"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

// Service enqueues an outgoing message to a recipient. Implementations
// publish to redis pub/sub or kafka depending on configuration.
type Service interface {
	Enqueue(ctx context.Context, notification Notification) error
}

// Dispatcher composes and sends the student-facing grade notification.
// Delivery is best effort: the grade write has already committed by the
// time Notify runs, so a failing mail or push backend is logged and
// never turns the webhook into a failure.
type Dispatcher struct {
	service       Service
	logger        *zap.Logger
	feedbackLimit int
	timeout       time.Duration
}

func NewDispatcher(service Service, logger *zap.Logger, feedbackLimit int, timeout time.Duration) *Dispatcher {
	if feedbackLimit <= 0 {
		feedbackLimit = 200
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		service:       service,
		logger:        logger,
		feedbackLimit: feedbackLimit,
		timeout:       timeout,
	}
}

// Notify sends the grade message and reports whether it was enqueued.
func (d *Dispatcher) Notify(ctx context.Context, sub *model.Submission, result *grading.Result) bool {
	if d == nil || d.service == nil || sub == nil || result == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	notification := Notification{
		SubmissionID: result.SubmissionID,
		Recipient:    sub.StudentEmail,
		Subject:      fmt.Sprintf("Your submission for %s has been graded", sub.AssignmentName),
		Body:         d.composeBody(sub, result),
	}

	if err := d.service.Enqueue(ctx, notification); err != nil {
		d.logger.Warn("failed to enqueue grade notification",
			zap.Int64("submission_id", result.SubmissionID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (d *Dispatcher) composeBody(sub *model.Submission, result *grading.Result) string {
	body := fmt.Sprintf("You scored %d/%.0f (%.2f%%).", result.Score, result.MaxScore, result.Percentage)
	if feedback := truncate(sub.Feedback, d.feedbackLimit); feedback != "" {
		body += "\n\nFeedback: " + feedback
	}
	return body
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

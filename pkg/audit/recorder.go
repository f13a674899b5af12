package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/model"
)

// Sink persists audit entries. The postgres AuditRepository is the
// production implementation.
type Sink interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
}

// Recorder writes the append-only audit trail for every pipeline stage.
// The audit subsystem is diagnostic, not authoritative: a failed write is
// logged at warn level and swallowed so it can never abort grading.
type Recorder struct {
	sink      Sink
	logger    *zap.Logger
	createdBy string
}

func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{
		sink:      sink,
		logger:    logger,
		createdBy: "autograder-webhook",
	}
}

func (r *Recorder) Record(ctx context.Context, submissionID int64, eventType model.AuditEventType, details model.JSONB) {
	if r == nil || r.sink == nil {
		return
	}

	entry := &model.AuditEntry{
		SubmissionID: submissionID,
		EventType:    eventType,
		Details:      details,
		CreatedBy:    r.createdBy,
	}

	if err := r.sink.Append(ctx, entry); err != nil {
		r.logger.Warn("failed to write audit entry",
			zap.Int64("submission_id", submissionID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

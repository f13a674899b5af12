package webhook

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/audit"
	"github.com/gradeflow/gradeflow/pkg/eventbus"
	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/metrics"
	"github.com/gradeflow/gradeflow/pkg/model"
	"github.com/gradeflow/gradeflow/pkg/notify"
)

// Delivery is one webhook delivery as received at the HTTP boundary: the
// exact raw body bytes, the signature header value, and the caller IP.
type Delivery struct {
	Body      []byte
	Signature string
	RemoteIP  string
}

// FailureStore durably records deliveries whose processing failed after
// the signature check.
type FailureStore interface {
	Create(ctx context.Context, record *model.FailedWebhook) error
}

// Pipeline owns the webhook stage sequence: signature verification,
// replay guard, payload validation, transactional grade apply, and
// best-effort notification, with an audit entry at every stage. It is the
// single processing entry point shared by the HTTP handler and the retry
// scheduler.
type Pipeline struct {
	secret     string
	guard      *ReplayGuard
	applier    *grading.Applier
	recorder   *audit.Recorder
	dispatcher *notify.Dispatcher
	failures   FailureStore
	bus        *eventbus.Bus
	logger     *zap.Logger
	timeout    time.Duration
}

type PipelineOptions struct {
	Secret     string
	Guard      *ReplayGuard
	Applier    *grading.Applier
	Recorder   *audit.Recorder
	Dispatcher *notify.Dispatcher
	Failures   FailureStore
	Bus        *eventbus.Bus
	Logger     *zap.Logger
	Timeout    time.Duration
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		secret:     opts.Secret,
		guard:      opts.Guard,
		applier:    opts.Applier,
		recorder:   opts.Recorder,
		dispatcher: opts.Dispatcher,
		failures:   opts.Failures,
		bus:        opts.Bus,
		logger:     opts.Logger,
		timeout:    opts.Timeout,
	}
}

// Process runs a freshly delivered webhook through the full pipeline.
// The returned error, if any, is always a *Error carrying the failure
// kind for HTTP status mapping.
func (p *Pipeline) Process(ctx context.Context, d Delivery) (*grading.Result, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if !VerifySignature(d.Body, d.Signature, p.secret) {
		metrics.WebhooksTotal.WithLabelValues("unauthorized").Inc()
		p.recorder.Record(ctx, 0, model.AuditError, model.JSONB{
			"reason":    "invalid or missing signature",
			"remote_ip": d.RemoteIP,
		})
		return nil, newSignatureError("invalid webhook signature")
	}

	event, verr := ParseEvent(d.Body)
	if verr != nil {
		metrics.WebhooksTotal.WithLabelValues("invalid").Inc()
		p.recorder.Record(ctx, 0, model.AuditError, model.JSONB{
			"reason":    verr.Message,
			"field":     verr.Field,
			"remote_ip": d.RemoteIP,
		})
		return nil, verr
	}

	p.recorder.Record(ctx, event.SubmissionID, model.AuditReceived, model.JSONB{
		"remote_ip": d.RemoteIP,
		"timestamp": event.Timestamp,
	})
	p.recorder.Record(ctx, event.SubmissionID, model.AuditSignatureVerified, nil)

	eventTime, verr := event.EventTime()
	if verr != nil {
		metrics.WebhooksTotal.WithLabelValues("invalid").Inc()
		p.recordError(ctx, event.SubmissionID, verr)
		return nil, verr
	}

	accepted, err := p.guard.AcceptOnce(ctx, event.SubmissionID, eventTime)
	if err != nil {
		// With the replay store down, at-most-once cannot be
		// guaranteed; park the delivery for asynchronous retry.
		werr := newPersistenceError("replay guard unavailable", err)
		p.recordError(ctx, event.SubmissionID, werr)
		p.storeFailure(ctx, d, event.SubmissionID, werr, model.FailedWebhookPending)
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		return nil, werr
	}
	if !accepted {
		// Dead end: no audit entry and no submission state change.
		metrics.ReplayRejections.Inc()
		metrics.WebhooksTotal.WithLabelValues("replay_rejected").Inc()
		return nil, newReplayError("stale or duplicate delivery")
	}

	return p.run(ctx, d, event, true)
}

// Reprocess replays a stored delivery that already passed signature
// verification at ingestion time. The signature and replay stages are
// skipped: the original delivery consumed its replay key, and its
// timestamp has usually aged past the freshness window by the time the
// scheduler picks it up. Failure bookkeeping belongs to the scheduler,
// so no new failure records are written here.
func (p *Pipeline) Reprocess(ctx context.Context, d Delivery) (*grading.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	event, verr := ParseEvent(d.Body)
	if verr != nil {
		p.recordError(ctx, 0, verr)
		return nil, verr
	}

	return p.run(ctx, d, event, false)
}

func (p *Pipeline) run(ctx context.Context, d Delivery, event *Event, recordFailures bool) (*grading.Result, error) {
	if verr := event.Validate(); verr != nil {
		metrics.WebhooksTotal.WithLabelValues("invalid").Inc()
		p.recordError(ctx, event.SubmissionID, verr)
		return nil, verr
	}
	p.recorder.Record(ctx, event.SubmissionID, model.AuditValidated, model.JSONB{
		"score":     *event.Score,
		"max_score": *event.MaxScore,
	})

	result, err := p.applier.Apply(ctx, event.SubmissionID, *event.Score, event.MaxScore, event.FeedbackText())
	if err != nil {
		if errors.Is(err, grading.ErrNotFound) {
			werr := newNotFoundError(event.SubmissionID)
			p.recordError(ctx, event.SubmissionID, werr)
			if recordFailures {
				// Kept for forensics, but terminal: a missing
				// submission fails identically on every retry.
				p.storeFailure(ctx, d, event.SubmissionID, werr, model.FailedWebhookFailed)
			}
			metrics.WebhooksTotal.WithLabelValues("not_found").Inc()
			return nil, werr
		}

		werr := newPersistenceError("failed to apply grade", err)
		p.recordError(ctx, event.SubmissionID, werr)
		if recordFailures {
			p.storeFailure(ctx, d, event.SubmissionID, werr, model.FailedWebhookPending)
		}
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		return nil, werr
	}

	metrics.GradesApplied.Inc()
	p.recorder.Record(ctx, event.SubmissionID, model.AuditGradeApplied, model.JSONB{
		"score":      result.Score,
		"max_score":  result.MaxScore,
		"percentage": result.Percentage,
	})
	p.publishGradeEvent(ctx, result)

	if p.dispatcher.Notify(ctx, result.Submission, result) {
		p.recorder.Record(ctx, event.SubmissionID, model.AuditNotificationSent, model.JSONB{
			"recipient": result.Submission.StudentEmail,
		})
	}

	metrics.WebhooksTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (p *Pipeline) recordError(ctx context.Context, submissionID int64, werr *Error) {
	details := model.JSONB{
		"kind":   werr.Kind.String(),
		"reason": werr.Message,
	}
	if werr.Field != "" {
		details["field"] = werr.Field
	}
	p.recorder.Record(ctx, submissionID, model.AuditError, details)
}

func (p *Pipeline) storeFailure(ctx context.Context, d Delivery, submissionID int64, werr *Error, status model.FailedWebhookStatus) {
	if p.failures == nil {
		return
	}
	record := &model.FailedWebhook{
		SubmissionID: submissionID,
		RawPayload:   d.Body,
		ErrorMessage: werr.Error(),
		RemoteIP:     d.RemoteIP,
		Status:       status,
	}
	if err := p.failures.Create(ctx, record); err != nil {
		p.logger.Error("failed to persist failed webhook record",
			zap.Int64("submission_id", submissionID),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) publishGradeEvent(ctx context.Context, result *grading.Result) {
	if p.bus == nil {
		return
	}
	gradeEvent := eventbus.GradeEvent{
		SubmissionID: result.SubmissionID,
		Score:        result.Score,
		MaxScore:     result.MaxScore,
		Percentage:   result.Percentage,
		Status:       string(model.SubmissionGraded),
	}
	if event, err := eventbus.NewEvent("grade_applied", gradeEvent); err == nil {
		_ = p.bus.Publish(ctx, eventbus.ChannelGrade, event)
	}
}

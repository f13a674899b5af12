package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MaxScoreCeiling caps max_score to block absurd values from a
// misconfigured autograder.
const MaxScoreCeiling = 10000

// Event is the transient, per-request view of an autograder webhook
// payload. Score, MaxScore and Feedback are pointers so that missing
// fields can be distinguished from zero values during validation.
type Event struct {
	SubmissionID int64    `json:"submission_id"`
	Score        *float64 `json:"score"`
	MaxScore     *float64 `json:"max_score"`
	Feedback     *string  `json:"feedback"`
	Timestamp    string   `json:"timestamp"`
}

// ParseEvent decodes the raw webhook body. JSON type mismatches are
// reported as field-level validation errors so the autograder sees which
// field was malformed; syntactically broken JSON is reported against the
// body as a whole.
func ParseEvent(raw []byte) (*Event, *Error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, newValidationError(typeErr.Field, fmt.Sprintf("expected %s", typeErr.Type))
		}
		return nil, newValidationError("body", "malformed JSON")
	}
	return &event, nil
}

// Validate applies the structural and numeric-range rules. It is pure:
// no side effects, and the event is not mutated.
func (e *Event) Validate() *Error {
	if e.SubmissionID <= 0 {
		return newValidationError("submission_id", "missing or not a positive integer")
	}
	if e.Score == nil {
		return newValidationError("score", "missing")
	}
	if e.MaxScore == nil {
		return newValidationError("max_score", "missing")
	}
	if *e.Score < 0 {
		return newValidationError("score", "must not be negative")
	}
	if *e.MaxScore <= 0 {
		return newValidationError("max_score", "must be positive")
	}
	if *e.Score > *e.MaxScore {
		return newValidationError("score", "exceeds max_score")
	}
	if *e.MaxScore > MaxScoreCeiling {
		return newValidationError("max_score", fmt.Sprintf("exceeds ceiling of %d", MaxScoreCeiling))
	}
	return nil
}

// EventTime parses the ISO-8601 timestamp carried by the payload.
func (e *Event) EventTime() (time.Time, *Error) {
	if e.Timestamp == "" {
		return time.Time{}, newValidationError("timestamp", "missing")
	}
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, newValidationError("timestamp", "not a valid ISO-8601 timestamp")
	}
	return ts, nil
}

// FeedbackText returns the feedback string, treating an omitted field as
// empty feedback.
func (e *Event) FeedbackText() string {
	if e.Feedback == nil {
		return ""
	}
	return *e.Feedback
}

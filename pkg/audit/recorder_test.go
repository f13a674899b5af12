package audit

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/model"
)

type captureSink struct {
	entries []*model.AuditEntry
	err     error
}

func (s *captureSink) Append(_ context.Context, entry *model.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecord(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink, zap.NewNop())

	recorder.Record(context.Background(), 42, model.AuditGradeApplied, model.JSONB{"score": 85})

	if len(sink.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if entry.SubmissionID != 42 || entry.EventType != model.AuditGradeApplied {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.CreatedBy != "autograder-webhook" {
		t.Fatalf("unexpected created_by %q", entry.CreatedBy)
	}
	if entry.Details["score"] != 85 {
		t.Fatalf("unexpected details %v", entry.Details)
	}
}

func TestRecordSwallowsSinkFailure(t *testing.T) {
	recorder := NewRecorder(&captureSink{err: errors.New("db down")}, zap.NewNop())

	// Must not panic or propagate; auditing never aborts grading.
	recorder.Record(context.Background(), 42, model.AuditError, nil)
}

func TestRecordNilSafe(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), 42, model.AuditReceived, nil)

	NewRecorder(nil, zap.NewNop()).Record(context.Background(), 42, model.AuditReceived, nil)
}

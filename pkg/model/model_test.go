package model

import (
	"testing"
)

func TestJSONBValue(t *testing.T) {
	j := JSONB{"score": 85, "reason": "ok"}

	value, err := j.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var decoded JSONB
	if err := decoded.Scan(value.([]byte)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if decoded["reason"] != "ok" {
		t.Fatalf("unexpected round trip %v", decoded)
	}
	if decoded["score"] != float64(85) {
		t.Fatalf("unexpected score %v", decoded["score"])
	}
}

func TestJSONBValueNil(t *testing.T) {
	var j JSONB
	value, err := j.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil driver value, got %v", value)
	}
}

func TestJSONBScanNil(t *testing.T) {
	j := JSONB{"stale": true}
	if err := j.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if j != nil {
		t.Fatalf("expected nil map after scanning NULL, got %v", j)
	}
}

func TestJSONBScanInvalid(t *testing.T) {
	var j JSONB
	if err := j.Scan(42); err == nil {
		t.Fatal("expected error scanning a non-byte value")
	}
}

func TestSubmissionStatusValidity(t *testing.T) {
	for _, status := range []SubmissionStatus{SubmissionSubmitted, SubmissionGraded} {
		if !IsValidSubmissionStatus(status) {
			t.Errorf("expected %s to be valid", status)
		}
	}
	if IsValidSubmissionStatus("PENDING") {
		t.Error("PENDING is not a submission status")
	}
	if IsValidSubmissionStatus("") {
		t.Error("empty status must be invalid")
	}
}

func TestAuditEventTypeValidity(t *testing.T) {
	valid := []AuditEventType{
		AuditReceived, AuditSignatureVerified, AuditValidated,
		AuditGradeApplied, AuditNotificationSent, AuditError,
	}
	for _, eventType := range valid {
		if !IsValidAuditEventType(eventType) {
			t.Errorf("expected %s to be valid", eventType)
		}
	}
	if IsValidAuditEventType("GRADED") {
		t.Error("GRADED is not an audit event type")
	}
}

func TestTableNames(t *testing.T) {
	if got := (AuditEntry{}).TableName(); got != "audit_entries" {
		t.Fatalf("unexpected table name %q", got)
	}
	if got := (FailedWebhook{}).TableName(); got != "failed_webhooks" {
		t.Fatalf("unexpected table name %q", got)
	}
}

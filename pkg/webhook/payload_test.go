package webhook

import (
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

func validEvent() *Event {
	return &Event{
		SubmissionID: 42,
		Score:        floatPtr(85),
		MaxScore:     floatPtr(100),
		Feedback:     stringPtr("Good"),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

func TestParseEvent(t *testing.T) {
	raw := []byte(`{"submission_id":42,"score":85.5,"max_score":100,"feedback":"Good","timestamp":"2024-05-01T12:00:00Z"}`)

	event, verr := ParseEvent(raw)
	if verr != nil {
		t.Fatalf("ParseEvent() error: %v", verr)
	}
	if event.SubmissionID != 42 {
		t.Fatalf("expected submission id 42, got %d", event.SubmissionID)
	}
	if event.Score == nil || *event.Score != 85.5 {
		t.Fatalf("expected score 85.5, got %v", event.Score)
	}
	if event.FeedbackText() != "Good" {
		t.Fatalf("expected feedback Good, got %q", event.FeedbackText())
	}
}

func TestParseEventMalformed(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"broken JSON", `{"submission_id":`, "body"},
		{"score not numeric", `{"submission_id":42,"score":"eighty"}`, "score"},
		{"feedback not a string", `{"submission_id":42,"score":85,"max_score":100,"feedback":7}`, "feedback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verr := ParseEvent([]byte(tt.raw))
			if verr == nil {
				t.Fatal("expected validation error")
			}
			if verr.Kind != KindValidation {
				t.Fatalf("expected validation kind, got %v", verr.Kind)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Event)
		field  string
	}{
		{"valid", func(e *Event) {}, ""},
		{"zero score is valid", func(e *Event) { e.Score = floatPtr(0) }, ""},
		{"missing submission id", func(e *Event) { e.SubmissionID = 0 }, "submission_id"},
		{"missing score", func(e *Event) { e.Score = nil }, "score"},
		{"missing max score", func(e *Event) { e.MaxScore = nil }, "max_score"},
		{"negative score", func(e *Event) { e.Score = floatPtr(-1) }, "score"},
		{"zero max score", func(e *Event) { e.MaxScore = floatPtr(0) }, "max_score"},
		{"negative max score", func(e *Event) { e.MaxScore = floatPtr(-10) }, "max_score"},
		{"score above max", func(e *Event) { e.Score = floatPtr(150) }, "score"},
		{"max score above ceiling", func(e *Event) {
			e.Score = floatPtr(500)
			e.MaxScore = floatPtr(10001)
		}, "max_score"},
		{"max score at ceiling is valid", func(e *Event) {
			e.Score = floatPtr(500)
			e.MaxScore = floatPtr(10000)
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)

			verr := event.Validate()
			if tt.field == "" {
				if verr != nil {
					t.Fatalf("expected valid event, got %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestEventTime(t *testing.T) {
	event := validEvent()
	event.Timestamp = "2024-05-01T12:00:00Z"

	ts, verr := event.EventTime()
	if verr != nil {
		t.Fatalf("EventTime() error: %v", verr)
	}
	if !ts.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", ts)
	}

	event.Timestamp = "yesterday"
	if _, verr := event.EventTime(); verr == nil || verr.Field != "timestamp" {
		t.Fatalf("expected timestamp validation error, got %v", verr)
	}

	event.Timestamp = ""
	if _, verr := event.EventTime(); verr == nil || verr.Field != "timestamp" {
		t.Fatalf("expected timestamp validation error, got %v", verr)
	}
}

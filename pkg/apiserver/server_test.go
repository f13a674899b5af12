package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/grading"
	"github.com/gradeflow/gradeflow/pkg/model"
	"github.com/gradeflow/gradeflow/pkg/retry"
	"github.com/gradeflow/gradeflow/pkg/webhook"
)

type stubPipeline struct {
	result *grading.Result
	err    error
	last   webhook.Delivery
}

func (p *stubPipeline) Process(_ context.Context, d webhook.Delivery) (*grading.Result, error) {
	p.last = d
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type stubSubmissions struct {
	sub *model.Submission
}

func (s *stubSubmissions) GetByID(_ context.Context, id int64) (*model.Submission, error) {
	if s.sub == nil || s.sub.ID != id {
		return nil, grading.ErrNotFound
	}
	return s.sub, nil
}

type stubAudits struct {
	entries []model.AuditEntry
}

func (s *stubAudits) ListBySubmission(_ context.Context, submissionID int64, limit, offset int) ([]model.AuditEntry, int64, error) {
	var out []model.AuditEntry
	for _, entry := range s.entries {
		if entry.SubmissionID == submissionID {
			out = append(out, entry)
		}
	}
	return out, int64(len(out)), nil
}

type stubFailures struct {
	records []model.FailedWebhook
}

func (s *stubFailures) List(_ context.Context, status *model.FailedWebhookStatus, limit, offset int) ([]model.FailedWebhook, int64, error) {
	var out []model.FailedWebhook
	for _, record := range s.records {
		if status != nil && record.Status != *status {
			continue
		}
		out = append(out, record)
	}
	return out, int64(len(out)), nil
}

type stubRetries struct {
	stats         retry.BatchStats
	gotBatchSize  int
	gotMaxRetries int
	err           error
}

func (s *stubRetries) RunBatchWith(_ context.Context, batchSize, maxRetries int) (retry.BatchStats, error) {
	s.gotBatchSize = batchSize
	s.gotMaxRetries = maxRetries
	return s.stats, s.err
}

type serverFixture struct {
	server      *Server
	pipeline    *stubPipeline
	submissions *stubSubmissions
	audits      *stubAudits
	failures    *stubFailures
	retries     *stubRetries
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Webhook.SignatureHeader = "X-Autograder-Signature"

	fx := &serverFixture{
		pipeline:    &stubPipeline{},
		submissions: &stubSubmissions{},
		audits:      &stubAudits{},
		failures:    &stubFailures{},
		retries:     &stubRetries{},
	}
	fx.server = NewServer(cfg, zap.NewNop(), Deps{
		Pipeline:    fx.pipeline,
		Submissions: fx.submissions,
		Audits:      fx.audits,
		Failures:    fx.failures,
		Retries:     fx.retries,
	})
	return fx
}

func (fx *serverFixture) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(w, req)
	return w
}

func (fx *serverFixture) operatorToken(t *testing.T) string {
	t.Helper()
	token, err := fx.server.Tokens().GenerateToken("operator", "audit,failed-webhooks,retries")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	return token
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	fx := newTestServer(t)

	w := fx.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestWebhookMissingSignatureHeader(t *testing.T) {
	fx := newTestServer(t)

	w := fx.do(t, http.MethodPost, "/webhooks/autograder/", "", `{"submission_id":42}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if fx.pipeline.last.Body != nil {
		t.Fatal("pipeline must not run without a signature header")
	}
}

func TestWebhookSuccess(t *testing.T) {
	fx := newTestServer(t)
	fx.pipeline.result = &grading.Result{SubmissionID: 42, Score: 85, MaxScore: 100, Percentage: 85}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/autograder/", strings.NewReader(`{"submission_id":42}`))
	req.Header.Set("X-Autograder-Signature", "sha256=deadbeef")
	w := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["success"] != true {
		t.Fatalf("expected success=true, got %v", body)
	}
	if body["submission_id"] != float64(42) {
		t.Fatalf("expected submission_id 42, got %v", body["submission_id"])
	}
	if fx.pipeline.last.Signature != "sha256=deadbeef" {
		t.Fatalf("signature header not forwarded: %q", fx.pipeline.last.Signature)
	}
}

func TestWebhookErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid signature", &webhook.Error{Kind: webhook.KindSignature, Message: "invalid webhook signature"}, http.StatusUnauthorized},
		{"validation failure", &webhook.Error{Kind: webhook.KindValidation, Field: "score", Message: "must not exceed max_score"}, http.StatusBadRequest},
		{"unknown submission", &webhook.Error{Kind: webhook.KindNotFound, Message: "submission 99 not found"}, http.StatusNotFound},
		{"persistence failure", &webhook.Error{Kind: webhook.KindPersistence, Message: "failed to apply grade"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTestServer(t)
			fx.pipeline.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/webhooks/autograder/", strings.NewReader(`{}`))
			req.Header.Set("X-Autograder-Signature", "sha256=deadbeef")
			w := httptest.NewRecorder()
			fx.server.Router().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestWebhookReplayAcknowledged(t *testing.T) {
	fx := newTestServer(t)
	fx.pipeline.err = &webhook.Error{Kind: webhook.KindReplay, Message: "stale or duplicate delivery"}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/autograder/", strings.NewReader(`{}`))
	req.Header.Set("X-Autograder-Signature", "sha256=deadbeef")
	w := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("replays are acknowledged with 200, got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	fx := newTestServer(t)

	for _, path := range []string{
		"/api/v1/submissions/42",
		"/api/v1/submissions/42/audit",
		"/api/v1/failed-webhooks",
	} {
		w := fx.do(t, http.MethodGet, path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: expected 401, got %d", path, w.Code)
		}
	}

	w := fx.do(t, http.MethodGet, "/api/v1/submissions/42", "not-a-jwt", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
}

func TestGetSubmission(t *testing.T) {
	fx := newTestServer(t)
	score := 85
	gradedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fx.submissions.sub = &model.Submission{
		ID:             42,
		StudentID:      "student-1",
		AssignmentName: "Assignment 1",
		MaxScore:       100,
		Score:          &score,
		Status:         model.SubmissionGraded,
		GradedAt:       &gradedAt,
	}
	token := fx.operatorToken(t)

	w := fx.do(t, http.MethodGet, "/api/v1/submissions/42", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["status"] != "GRADED" || body["score"] != float64(85) {
		t.Fatalf("unexpected body %v", body)
	}

	w = fx.do(t, http.MethodGet, "/api/v1/submissions/999", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown submission, got %d", w.Code)
	}

	w = fx.do(t, http.MethodGet, "/api/v1/submissions/abc", token, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestListAudit(t *testing.T) {
	fx := newTestServer(t)
	fx.audits.entries = []model.AuditEntry{
		{ID: uuid.New(), SubmissionID: 42, EventType: model.AuditReceived, CreatedBy: "autograder-webhook"},
		{ID: uuid.New(), SubmissionID: 42, EventType: model.AuditGradeApplied, CreatedBy: "autograder-webhook"},
		{ID: uuid.New(), SubmissionID: 7, EventType: model.AuditReceived, CreatedBy: "autograder-webhook"},
	}

	w := fx.do(t, http.MethodGet, "/api/v1/submissions/42/audit", fx.operatorToken(t), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["total"] != float64(2) {
		t.Fatalf("expected 2 entries for submission 42, got %v", body["total"])
	}
}

func TestListFailedWebhooks(t *testing.T) {
	fx := newTestServer(t)
	fx.failures.records = []model.FailedWebhook{
		{ID: uuid.New(), SubmissionID: 42, Status: model.FailedWebhookPending, ErrorMessage: "persistence: db down"},
		{ID: uuid.New(), SubmissionID: 7, Status: model.FailedWebhookFailed, ErrorMessage: "not_found: submission 7 not found"},
	}
	token := fx.operatorToken(t)

	w := fx.do(t, http.MethodGet, "/api/v1/failed-webhooks?status=PENDING", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["total"] != float64(1) {
		t.Fatalf("expected 1 pending record, got %v", body["total"])
	}

	w = fx.do(t, http.MethodGet, "/api/v1/failed-webhooks?status=BOGUS", token, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status filter, got %d", w.Code)
	}
}

func TestRunRetries(t *testing.T) {
	fx := newTestServer(t)
	fx.retries.stats = retry.BatchStats{Selected: 3, Succeeded: 2, Requeued: 1}
	token := fx.operatorToken(t)

	w := fx.do(t, http.MethodPost, "/api/v1/retries/run", token, `{"batch_size":10,"max_retries":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fx.retries.gotBatchSize != 10 || fx.retries.gotMaxRetries != 5 {
		t.Fatalf("overrides not forwarded: %d/%d", fx.retries.gotBatchSize, fx.retries.gotMaxRetries)
	}
	body := decodeJSON(t, w)
	if body["selected"] != float64(3) || body["succeeded"] != float64(2) {
		t.Fatalf("unexpected stats %v", body)
	}

	// Empty body runs with the scheduler defaults.
	w = fx.do(t, http.MethodPost, "/api/v1/retries/run", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", w.Code)
	}
	if fx.retries.gotBatchSize != 0 || fx.retries.gotMaxRetries != 0 {
		t.Fatalf("empty body must not override defaults: %d/%d", fx.retries.gotBatchSize, fx.retries.gotMaxRetries)
	}
}

func TestRunRetriesFailure(t *testing.T) {
	fx := newTestServer(t)
	fx.retries.err = errors.New("db down")

	w := fx.do(t, http.MethodPost, "/api/v1/retries/run", fx.operatorToken(t), "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/observability/metrics"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type submitterFake struct {
	err      error
	filename string
	body     string
}

func (f *submitterFake) Upload(_ context.Context, filename, _ string, body io.Reader) (*domain.DocumentState, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(body)
	f.filename = filename
	f.body = string(raw)
	return domain.NewDocumentState("doc-1", domain.SourceInfo{Filename: filename, FileType: "txt"}, testNow), nil
}

func (f *submitterFake) SubmitText(ctx context.Context, title, content string) (*domain.DocumentState, error) {
	return f.Upload(ctx, title+".txt", "text/plain", strings.NewReader(content))
}

type reviewsFake struct {
	err error
	got domain.ReviewSubmission
}

func (f *reviewsFake) Submit(_ context.Context, id string, sub domain.ReviewSubmission) (*domain.DocumentState, error) {
	f.got = sub
	if f.err != nil {
		return nil, f.err
	}
	state := domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)
	state.Status = domain.StatusProcessing
	return state, nil
}

type cancellerFake struct {
	err   error
	actor string
}

func (f *cancellerFake) Cancel(_ context.Context, id, actor, _ string) (*domain.DocumentState, error) {
	f.actor = actor
	if f.err != nil {
		return nil, f.err
	}
	state := domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)
	state.CancelRequested = true
	return state, nil
}

type statusFake struct {
	err   error
	limit int
}

func (f *statusFake) Status(_ context.Context, id string) (*domain.StatusView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewStatusView(domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)), nil
}

func (f *statusFake) Results(_ context.Context, id string) (*domain.ResultView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "get results", errors.New("document is still pending"))
}

func (f *statusFake) ReviewContext(_ context.Context, id string) (*domain.ReviewContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReviewContext{DocumentID: id}, nil
}

func (f *statusFake) Audit(context.Context, string) ([]domain.AuditEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *statusFake) PendingReviews(_ context.Context, limit int) ([]domain.DocumentSummary, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []domain.DocumentSummary{{DocumentID: "doc-1", Status: domain.StatusHumanReviewRequired}}, nil
}

type testDeps struct {
	submitter *submitterFake
	reviews   *reviewsFake
	canceller *cancellerFake
	status    *statusFake
	metrics   *metrics.HTTPServerMetrics
}

func newTestRouter(t *testing.T, cfg config.Config) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		submitter: &submitterFake{},
		reviews:   &reviewsFake{},
		canceller: &cancellerFake{},
		status:    &statusFake{},
		metrics:   metrics.NewHTTPServerMetrics("test"),
	}
	router, err := NewRouter(cfg, Dependencies{
		Submitter: deps.submitter,
		Reviews:   deps.reviews,
		Canceller: deps.canceller,
		Status:    deps.status,
		Metrics:   deps.metrics,
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler(), deps
}

func doJSON(handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestUploadDocumentAccepted(t *testing.T) {
	handler, deps := newTestRouter(t, config.Config{MaxUploadBytes: 1 << 20})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "invoice.txt")
	_, _ = part.Write([]byte("Invoice Number: INV-1"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if deps.submitter.filename != "invoice.txt" || deps.submitter.body != "Invoice Number: INV-1" {
		t.Fatalf("unexpected upload %q %q", deps.submitter.filename, deps.submitter.body)
	}
	var view domain.StatusView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.DocumentID != "doc-1" || view.Status != domain.StatusPending {
		t.Fatalf("unexpected view %+v", view)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentTooLargeReturns413(t *testing.T) {
	handler, _ := newTestRouter(t, config.Config{MaxUploadBytes: 64})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "big.txt")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 4096))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestSubmitTextValidatesBody(t *testing.T) {
	handler, _ := newTestRouter(t, config.Config{})

	res := doJSON(handler, http.MethodPost, "/v1/documents/text", map[string]any{"title": "memo"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing content, got %d", res.Code)
	}

	res = doJSON(handler, http.MethodPost, "/v1/documents/text", map[string]any{"title": "memo", "content": "hello"})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing")), http.StatusNotFound},
		{"invalid", domain.WrapError(domain.ErrInvalidInput, "get", errors.New("bad")), http.StatusBadRequest},
		{"temporary", domain.WrapError(domain.ErrTemporary, "get", errors.New("db down")), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, deps := newTestRouter(t, config.Config{})
			deps.status.err = tc.err
			res := doJSON(handler, http.MethodGet, "/v1/documents/missing", nil)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestResultsOfPendingDocumentIs400(t *testing.T) {
	handler, _ := newTestRouter(t, config.Config{})
	res := doJSON(handler, http.MethodGet, "/v1/documents/doc-1/results", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAuditReturnsEmptyList(t *testing.T) {
	handler, _ := newTestRouter(t, config.Config{})
	res := doJSON(handler, http.MethodGet, "/v1/documents/doc-1/audit", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"entries":[]`) {
		t.Fatalf("expected empty entries array, got %s", res.Body.String())
	}
}

func TestSubmitReviewStaleIs409(t *testing.T) {
	handler, deps := newTestRouter(t, config.Config{})
	deps.reviews.err = domain.WrapError(domain.ErrStaleReview, "submit review", errors.New("review already resolved"))

	res := doJSON(handler, http.MethodPost, "/v1/documents/doc-1/review", map[string]any{
		"review_id": "rev-1",
		"decision":  "approve",
		"reviewer":  "alice@example.com",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
	if deps.reviews.got.Decision != domain.DecisionApprove {
		t.Fatalf("unexpected submission %+v", deps.reviews.got)
	}
}

func TestSubmitReviewRejectsUnknownDecision(t *testing.T) {
	handler, deps := newTestRouter(t, config.Config{})

	res := doJSON(handler, http.MethodPost, "/v1/documents/doc-1/review", map[string]any{
		"decision": "maybe",
		"reviewer": "alice@example.com",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if deps.reviews.got.Reviewer != "" {
		t.Fatalf("invalid submission reached the gate")
	}
}

func TestSubmitReviewModifyPassesModifications(t *testing.T) {
	handler, deps := newTestRouter(t, config.Config{})

	res := doJSON(handler, http.MethodPost, "/v1/documents/doc-1/review", map[string]any{
		"review_id":     "rev-1",
		"decision":      "modify",
		"reviewer":      "alice@example.com",
		"modifications": map[string]any{"total_amount": 120.5},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.reviews.got.Modifications["total_amount"] != 120.5 {
		t.Fatalf("modifications not forwarded: %+v", deps.reviews.got.Modifications)
	}
}

func TestCancelDefaultsActorAndMapsTerminal(t *testing.T) {
	handler, deps := newTestRouter(t, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/cancel", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if deps.canceller.actor != defaultCancelActor {
		t.Fatalf("expected default actor, got %q", deps.canceller.actor)
	}

	deps.canceller.err = domain.WrapError(domain.ErrTerminalState, "cancel document", errors.New("completed"))
	res = doJSON(handler, http.MethodPost, "/v1/documents/doc-1/cancel", map[string]any{"actor": "ops", "reason": "duplicate"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	if deps.canceller.actor != "ops" {
		t.Fatalf("expected explicit actor, got %q", deps.canceller.actor)
	}
}

func TestListPendingReviewsParsesLimit(t *testing.T) {
	handler, deps := newTestRouter(t, config.Config{})

	res := doJSON(handler, http.MethodGet, "/v1/reviews?limit=7", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if deps.status.limit != 7 {
		t.Fatalf("expected limit 7, got %d", deps.status.limit)
	}
	if !strings.Contains(res.Body.String(), `"count":1`) {
		t.Fatalf("unexpected body %s", res.Body.String())
	}

	res = doJSON(handler, http.MethodGet, "/v1/reviews?limit=abc", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", res.Code)
	}
}

func TestStreamWithoutHubIs404(t *testing.T) {
	handler, _ := newTestRouter(t, config.Config{})
	res := doJSON(handler, http.MethodGet, "/v1/documents/doc-1/stream", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestOpenAPIAndMetricsAreServed(t *testing.T) {
	handler, _ := newTestRouter(t, config.Config{})

	res := doJSON(handler, http.MethodGet, "/openapi.yaml", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "openapi: 3.0.3") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}

	_ = doJSON(handler, http.MethodGet, "/healthz", nil)
	res = doJSON(handler, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "docflow_http_requests_total") {
		t.Fatalf("expected request metrics, got %d", res.Code)
	}
}

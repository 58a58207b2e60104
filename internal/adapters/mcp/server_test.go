package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/docflow/internal/core/domain"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeStatus struct {
	err   error
	limit int
}

func (f *fakeStatus) Status(_ context.Context, id string) (*domain.StatusView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewStatusView(domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)), nil
}

func (f *fakeStatus) Results(_ context.Context, id string) (*domain.ResultView, error) {
	state := domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)
	state.Status = domain.StatusCompleted
	return domain.NewResultView(state), nil
}

func (f *fakeStatus) ReviewContext(context.Context, string) (*domain.ReviewContext, error) {
	return nil, nil
}

func (f *fakeStatus) Audit(context.Context, string) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeStatus) PendingReviews(_ context.Context, limit int) ([]domain.DocumentSummary, error) {
	f.limit = limit
	return nil, nil
}

type fakeReviews struct {
	err error
	got domain.ReviewSubmission
}

func (f *fakeReviews) Submit(_ context.Context, id string, sub domain.ReviewSubmission) (*domain.DocumentState, error) {
	f.got = sub
	if f.err != nil {
		return nil, f.err
	}
	state := domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)
	state.Status = domain.StatusProcessing
	return state, nil
}

type fakeCanceller struct {
	actor, reason string
}

func (f *fakeCanceller) Cancel(_ context.Context, id, actor, reason string) (*domain.DocumentState, error) {
	f.actor, f.reason = actor, reason
	state := domain.NewDocumentState(id, domain.SourceInfo{Filename: "a.txt"}, testNow)
	state.CancelRequested = true
	return state, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestStatusToolReturnsView(t *testing.T) {
	s := NewServer("test", &fakeStatus{}, &fakeReviews{}, &fakeCanceller{})

	res, err := s.handleStatus(context.Background(), callRequest("get_document_status", map[string]any{"document_id": "doc-1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var view domain.StatusView
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &view))
	assert.Equal(t, "doc-1", view.DocumentID)
	assert.Equal(t, domain.StatusPending, view.Status)
}

func TestStatusToolReportsNotFound(t *testing.T) {
	status := &fakeStatus{err: domain.WrapError(domain.ErrDocumentNotFound, "get state", errors.New("id=nope"))}
	s := NewServer("test", status, &fakeReviews{}, &fakeCanceller{})

	res, err := s.handleStatus(context.Background(), callRequest("get_document_status", map[string]any{"document_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not_found")
}

func TestStatusToolRequiresDocumentID(t *testing.T) {
	s := NewServer("test", &fakeStatus{}, &fakeReviews{}, &fakeCanceller{})

	res, err := s.handleStatus(context.Background(), callRequest("get_document_status", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestResultsTool(t *testing.T) {
	s := NewServer("test", &fakeStatus{}, &fakeReviews{}, &fakeCanceller{})

	res, err := s.handleResults(context.Background(), callRequest("get_document_results", map[string]any{"document_id": "doc-1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"status":"completed"`)
}

func TestPendingReviewsToolPassesLimit(t *testing.T) {
	status := &fakeStatus{}
	s := NewServer("test", status, &fakeReviews{}, &fakeCanceller{})

	res, err := s.handlePendingReviews(context.Background(), callRequest("list_pending_reviews", map[string]any{"limit": float64(5)}))
	require.NoError(t, err)
	assert.Equal(t, 5, status.limit)
	assert.JSONEq(t, `{"items":[],"count":0}`, resultText(t, res))
}

func TestSubmitReviewToolForwardsModifications(t *testing.T) {
	reviews := &fakeReviews{}
	s := NewServer("test", &fakeStatus{}, reviews, &fakeCanceller{})

	res, err := s.handleSubmitReview(context.Background(), callRequest("submit_review", map[string]any{
		"document_id":   "doc-1",
		"review_id":     "rev-1",
		"decision":      "modify",
		"reviewer":      "alice@example.com",
		"modifications": map[string]any{"total_amount": 99.5},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, domain.DecisionModify, reviews.got.Decision)
	assert.Equal(t, "rev-1", reviews.got.ReviewID)
	assert.Equal(t, 99.5, reviews.got.Modifications["total_amount"])
}

func TestSubmitReviewToolAcceptsEncodedModifications(t *testing.T) {
	reviews := &fakeReviews{}
	s := NewServer("test", &fakeStatus{}, reviews, &fakeCanceller{})

	_, err := s.handleSubmitReview(context.Background(), callRequest("submit_review", map[string]any{
		"document_id":   "doc-1",
		"decision":      "modify",
		"reviewer":      "alice@example.com",
		"modifications": `{"vendor_name":"Acme Corp"}`,
	}))
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", reviews.got.Modifications["vendor_name"])
}

func TestSubmitReviewToolReportsStaleReview(t *testing.T) {
	reviews := &fakeReviews{err: domain.WrapError(domain.ErrStaleReview, "submit review", errors.New("already resolved"))}
	s := NewServer("test", &fakeStatus{}, reviews, &fakeCanceller{})

	res, err := s.handleSubmitReview(context.Background(), callRequest("submit_review", map[string]any{
		"document_id": "doc-1",
		"decision":    "approve",
		"reviewer":    "bob",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "stale_review")
}

func TestCancelToolDefaultsActor(t *testing.T) {
	canceller := &fakeCanceller{}
	s := NewServer("test", &fakeStatus{}, &fakeReviews{}, canceller)

	res, err := s.handleCancel(context.Background(), callRequest("cancel_document", map[string]any{
		"document_id": "doc-1",
		"reason":      "duplicate upload",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, defaultActor, canceller.actor)
	assert.Equal(t, "duplicate upload", canceller.reason)
	assert.Contains(t, resultText(t, res), `"cancel_requested":true`)
}

func TestParseModificationsRejectsNonObject(t *testing.T) {
	_, err := parseModifications(42)
	assert.Error(t, err)
	_, err = parseModifications("[1,2]")
	assert.Error(t, err)
}

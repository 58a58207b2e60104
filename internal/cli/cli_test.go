package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

func newAPIStub(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStatusCommandPrintsDocument(t *testing.T) {
	srv, seen := newAPIStub(t, http.StatusOK, `{"document_id":"doc-1","status":"processing"}`)

	out, err := runCommand(t, "--api", srv.URL, "status", "doc-1")
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodGet, (*seen)[0].Method)
	assert.Equal(t, "/v1/documents/doc-1", (*seen)[0].Path)
	assert.Contains(t, out, `"status": "processing"`)
}

func TestResultsCommandSurfacesAPIError(t *testing.T) {
	srv, _ := newAPIStub(t, http.StatusBadRequest, `{"error":"document is not finished","code":"invalid_input"}`)

	_, err := runCommand(t, "--api", srv.URL, "results", "doc-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "document is not finished", apiErr.Message)
	assert.Equal(t, "invalid_input", apiErr.Code)
}

func TestReviewCommandSendsSubmission(t *testing.T) {
	srv, seen := newAPIStub(t, http.StatusOK, `{"document_id":"doc-1","status":"processing"}`)

	_, err := runCommand(t, "--api", srv.URL, "review", "doc-1",
		"--decision", "Modify",
		"--reviewer", "alice",
		"--review-id", "rev-1",
		"--set", "total_amount=1250.5",
		"--set", "vendor_name=Acme Corp",
	)
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/documents/doc-1/review", req.Path)

	var sub domain.ReviewSubmission
	require.NoError(t, json.Unmarshal(req.Body, &sub))
	assert.Equal(t, domain.DecisionModify, sub.Decision)
	assert.Equal(t, "alice", sub.Reviewer)
	assert.Equal(t, "rev-1", sub.ReviewID)
	assert.Equal(t, 1250.5, sub.Modifications["total_amount"])
	assert.Equal(t, "Acme Corp", sub.Modifications["vendor_name"])
}

func TestReviewCommandRequiresDecision(t *testing.T) {
	srv, seen := newAPIStub(t, http.StatusOK, `{}`)

	_, err := runCommand(t, "--api", srv.URL, "review", "doc-1", "--reviewer", "alice")
	require.Error(t, err)
	assert.Empty(t, *seen)
}

func TestCancelCommandDefaultsActor(t *testing.T) {
	srv, seen := newAPIStub(t, http.StatusOK, `{"document_id":"doc-1","status":"failed"}`)

	_, err := runCommand(t, "--api", srv.URL, "cancel", "doc-1", "--reason", "duplicate upload")
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	var body map[string]string
	require.NoError(t, json.Unmarshal((*seen)[0].Body, &body))
	assert.Equal(t, "docflowctl", body["actor"])
	assert.Equal(t, "duplicate upload", body["reason"])
}

func TestReviewsCommandPassesLimit(t *testing.T) {
	srv, seen := newAPIStub(t, http.StatusOK, `{"documents":[]}`)

	_, err := runCommand(t, "--api", srv.URL, "reviews", "--limit", "7")
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, "/v1/reviews", (*seen)[0].Path)
	assert.Equal(t, "limit=7", (*seen)[0].Query)
}

func TestParseAssignmentsRejectsMissingKey(t *testing.T) {
	_, err := parseAssignments([]string{"=5"})
	require.Error(t, err)

	_, err = parseAssignments([]string{"no-equals"})
	require.Error(t, err)

	mods, err := parseAssignments([]string{"flag=true", "note=null", "name=plain text"})
	require.NoError(t, err)
	assert.Equal(t, true, mods["flag"])
	assert.Nil(t, mods["note"])
	assert.Equal(t, "plain text", mods["name"])
}

func TestRulesValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(good, []byte("review_threshold: 0.8\n"), 0o600))

	out, err := runCommand(t, "rules", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "policy is valid")
	assert.Contains(t, out, "0.80")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("review_threshold: 3\n"), 0o600))

	_, err = runCommand(t, "rules", "validate", bad)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestProcessCommandRunsDocumentToReview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Quarterly picnic planning notes. Bring snacks."), 0o600))

	out, err := runCommand(t, "process", path)
	require.NoError(t, err)

	var view domain.StatusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, domain.StatusHumanReviewRequired, view.Status)
}

func TestProcessCommandAutoApprove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Quarterly picnic planning notes. Bring snacks."), 0o600))

	out, err := runCommand(t, "process", "--approve", path)
	require.NoError(t, err)

	var view domain.StatusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, domain.StatusCompleted, view.Status)
}

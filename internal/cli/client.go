package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// APIError is a non-2xx answer from the docflow API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the docflow HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Status(ctx context.Context, documentID string) (json.RawMessage, error) {
	return c.get(ctx, "/v1/documents/"+url.PathEscape(documentID))
}

func (c *Client) Results(ctx context.Context, documentID string) (json.RawMessage, error) {
	return c.get(ctx, "/v1/documents/"+url.PathEscape(documentID)+"/results")
}

func (c *Client) PendingReviews(ctx context.Context, limit int) (json.RawMessage, error) {
	path := "/v1/reviews"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return c.get(ctx, path)
}

func (c *Client) SubmitReview(ctx context.Context, documentID string, sub domain.ReviewSubmission) (json.RawMessage, error) {
	return c.post(ctx, "/v1/documents/"+url.PathEscape(documentID)+"/review", sub)
}

func (c *Client) Cancel(ctx context.Context, documentID, actor, reason string) (json.RawMessage, error) {
	return c.post(ctx, "/v1/documents/"+url.PathEscape(documentID)+"/cancel", map[string]string{
		"actor":  actor,
		"reason": reason,
	})
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, raw)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Code = payload.Code
		}
		return nil, apiErr
	}
	return raw, nil
}

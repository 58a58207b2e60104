package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

func generateServer(t *testing.T, response string, capture *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if capture != nil {
			*capture, _ = payload["prompt"].(string)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func TestClassifierParsesAndNormalizesResponse(t *testing.T) {
	var prompt string
	server := generateServer(t, "Sure! {\"document_type\":\"Invoice\",\"confidence\":1.4,\"reasoning\":\"has totals\"}", &prompt)
	defer server.Close()

	got, err := NewClassifier(New(server.URL, "llama3")).Classify(context.Background(), "INVOICE #42")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.DocumentType != "invoice" || got.Confidence != 1 || got.Reasoning != "has totals" {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if !strings.Contains(prompt, "INVOICE #42") || !strings.Contains(prompt, "financial_statement") {
		t.Fatalf("prompt misses content or type list: %s", prompt)
	}
}

func TestClassifierMapsUnknownTypeToOther(t *testing.T) {
	server := generateServer(t, `{"document_type":"passport","confidence":0.8,"reasoning":"x"}`, nil)
	defer server.Close()

	got, err := NewClassifier(New(server.URL, "llama3")).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.DocumentType != "other" {
		t.Fatalf("expected other, got %q", got.DocumentType)
	}
}

func TestClassifierRejectsIncompleteResponse(t *testing.T) {
	server := generateServer(t, `{"reasoning":"no idea"}`, nil)
	defer server.Close()

	if _, err := NewClassifier(New(server.URL, "llama3")).Classify(context.Background(), "text"); err == nil {
		t.Fatalf("expected error for missing keys")
	}
}

func TestExtractorNormalizesKeysAndKeepsUniversalFields(t *testing.T) {
	var prompt string
	server := generateServer(t, `{"fields":{"Invoice Number":"INV-1","total-amount":1200.5,"title":"Invoice"},"metadata":{"po":"77"},"confidence":0.92}`, &prompt)
	defer server.Close()

	got, err := NewExtractor(New(server.URL, "llama3")).Extract(context.Background(), "INVOICE INV-1", "invoice")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Fields["invoice_number"] != "INV-1" || got.Fields["total_amount"] != 1200.5 {
		t.Fatalf("unexpected fields: %+v", got.Fields)
	}
	for _, key := range domain.UniversalFields {
		if _, ok := got.Fields[key]; !ok {
			t.Fatalf("universal field %q missing", key)
		}
	}
	if got.Fields[domain.FieldSummary] != nil {
		t.Fatalf("absent universal field must be null")
	}
	if meta, ok := got.Fields[domain.FieldMetadata].(map[string]any); !ok || meta["po"] != "77" {
		t.Fatalf("metadata bag not kept: %+v", got.Fields[domain.FieldMetadata])
	}
	if got.Confidence != 0.92 || got.Method != "ollama" {
		t.Fatalf("unexpected confidence/method: %+v", got)
	}
	if !strings.Contains(prompt, "invoice document") {
		t.Fatalf("prompt misses document type: %s", prompt)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClassifier(New(server.URL, "llama3")).Classify(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error for 502, got %v", err)
	}
}

func TestGenerateRetriesThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"{\"document_type\":\"contract\",\"confidence\":0.8,\"reasoning\":\"parties\"}"}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	})
	got, err := NewClassifier(New(server.URL, "llama3", WithResilienceExecutor(executor))).Classify(context.Background(), "agreement")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.DocumentType != "contract" || calls.Load() != 2 {
		t.Fatalf("unexpected result %+v after %d calls", got, calls.Load())
	}
}

func TestBadRequestIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewExtractor(New(server.URL, "llama3")).Extract(context.Background(), "x", "invoice")
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Invoice Number": "invoice_number",
		"total-amount":   "total_amount",
		"  Due  Date: ":  "due_date",
		"vendor_name":    "vendor_name",
		"%%":             "",
	}
	for in, want := range cases {
		if got := normalizeKey(in); got != want {
			t.Fatalf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	text := strings.Repeat("ж", 10)
	got := truncate(text, 5)
	if !strings.HasSuffix(got, "... [truncated]") || strings.ContainsRune(got, '�') {
		t.Fatalf("bad truncation: %q", got)
	}
}

func TestExtractorMergesLongDocumentWindows(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		prompt, _ := payload["prompt"].(string)

		response := `{"fields":{"vendor_name":null,"total_amount":990},"confidence":0.6}`
		if strings.Contains(prompt, "PART-A") {
			response = `{"fields":{"vendor_name":"Acme Corp","total_amount":null},"metadata":{"po":"77"},"confidence":1}`
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
	defer server.Close()

	content := "PART-A\n" + strings.Repeat("line item\n", 400) + "PART-B\n" + strings.Repeat("totals\n", 300)
	got, err := NewExtractor(New(server.URL, "llama3")).Extract(context.Background(), content, "invoice")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected several windows, got %d calls", calls.Load())
	}
	if got.Fields["vendor_name"] != "Acme Corp" || got.Fields["total_amount"] != float64(990) {
		t.Fatalf("unexpected merged fields: %+v", got.Fields)
	}
	if meta, ok := got.Fields[domain.FieldMetadata].(map[string]any); !ok || meta["po"] != "77" {
		t.Fatalf("metadata not merged: %+v", got.Fields[domain.FieldMetadata])
	}
	if got.Confidence <= 0.6 || got.Confidence >= 1 {
		t.Fatalf("confidence should average windows, got %v", got.Confidence)
	}
}

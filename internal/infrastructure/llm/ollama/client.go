package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/chunking"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithResilienceExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, content string) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, buildClassificationPrompt(content))
	if err != nil {
		return domain.Classification{}, err
	}

	var raw struct {
		DocumentType string   `json:"document_type"`
		Confidence   *float64 `json:"confidence"`
		Reasoning    string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	if raw.DocumentType == "" || raw.Confidence == nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: missing document_type or confidence")
	}

	result := domain.Classification{
		DocumentType: strings.ToLower(strings.TrimSpace(raw.DocumentType)),
		Confidence:   domain.ClampConfidence(*raw.Confidence),
		Reasoning:    raw.Reasoning,
	}
	if !domain.IsKnownDocumentType(result.DocumentType) {
		result.DocumentType = "other"
	}
	return result, nil
}

type Extractor struct {
	client   *Client
	splitter *chunking.Splitter
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{
		client:   client,
		splitter: chunking.NewSplitter(extractionWindow, extractionOverlap, maxExtractionWindows),
	}
}

// Extract sends long documents window by window and merges the answers. An
// earlier window wins a field unless its value is empty.
func (e *Extractor) Extract(ctx context.Context, content, documentType string) (domain.Extraction, error) {
	windows := e.splitter.Split(content)
	if len(windows) <= 1 {
		return e.extractWindow(ctx, content, documentType)
	}

	merged := domain.Extraction{Fields: domain.Fields{}, Method: "ollama"}
	metadata := map[string]any{}
	var confidenceSum float64
	for _, window := range windows {
		part, err := e.extractWindow(ctx, window, documentType)
		if err != nil {
			return domain.Extraction{}, err
		}
		for key, value := range part.Fields {
			if key == domain.FieldMetadata {
				if m, ok := value.(map[string]any); ok {
					mergeMissing(metadata, m)
				}
				continue
			}
			if current, ok := merged.Fields[key]; !ok || domain.IsEmptyValue(current) {
				merged.Fields[key] = value
			}
		}
		confidenceSum += part.Confidence
	}
	if len(metadata) > 0 {
		merged.Fields[domain.FieldMetadata] = metadata
	}
	merged.Fields = merged.Fields.EnsureUniversal()
	merged.Confidence = domain.ClampConfidence(confidenceSum / float64(len(windows)))
	return merged, nil
}

func (e *Extractor) extractWindow(ctx context.Context, content, documentType string) (domain.Extraction, error) {
	respText, err := e.client.generateJSON(ctx, buildExtractionPrompt(content, documentType))
	if err != nil {
		return domain.Extraction{}, err
	}

	var raw struct {
		Fields     map[string]any `json:"fields"`
		Metadata   map[string]any `json:"metadata"`
		Confidence *float64       `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.Extraction{}, fmt.Errorf("parse extraction json: %w", err)
	}
	if raw.Fields == nil {
		return domain.Extraction{}, fmt.Errorf("parse extraction json: missing fields object")
	}

	fields := make(domain.Fields, len(raw.Fields)+1)
	for key, value := range raw.Fields {
		if k := normalizeKey(key); k != "" {
			fields[k] = value
		}
	}
	if len(raw.Metadata) > 0 {
		fields[domain.FieldMetadata] = raw.Metadata
	}

	confidence := 0.5
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	return domain.Extraction{
		Fields:     fields.EnsureUniversal(),
		Confidence: domain.ClampConfidence(confidence),
		Method:     "ollama",
	}, nil
}

func mergeMissing(dst, src map[string]any) {
	for key, value := range src {
		if current, ok := dst[key]; !ok || domain.IsEmptyValue(current) {
			dst[key] = value
		}
	}
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0.1,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	text, err := resilience.Call(ctx, c.executor, "ollama.generate", func(callCtx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return text, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// normalizeKey turns "Invoice Number" or "invoice-number" into "invoice_number".
func normalizeKey(key string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(key) {
		switch {
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
			fallthrough
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

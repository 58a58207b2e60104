package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/docflow/internal/core/domain"
)

func TestLoadPolicyWithoutFileUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	if policy.ReviewThreshold != 0.7 {
		t.Fatalf("expected default threshold 0.7, got %v", policy.ReviewThreshold)
	}
	if len(policy.RuleSet()) == 0 {
		t.Fatalf("expected default rules")
	}
	if err := policy.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestLoadPolicyReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := `
review_threshold: 0.85
review_actions: [flag_for_review, require_approval]
review_severity: high
validation:
  max_invoice_amount: 50000
approved_vendors: [initech]
anomaly:
  min_samples: 5
  ranges:
    invoice:
      total_amount: {min: 1, max: 10000}
rules:
  - id: big_invoice
    name: Big invoice
    document_types: [invoice]
    when: {field: total_amount, op: gt, value: 20000}
    action: require_approval
    priority: 2
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	wf := policy.Workflow()
	if wf.ConfidenceThreshold != 0.85 || wf.ReviewSeverity != domain.SeverityHigh || len(wf.ReviewActions) != 2 {
		t.Fatalf("unexpected workflow policy %+v", wf)
	}
	if policy.Validation.MaxInvoiceAmount != 50000 {
		t.Fatalf("unexpected validation limits %+v", policy.Validation)
	}
	if policy.Anomaly.MinSamples != 5 || policy.Anomaly.Ranges["invoice"]["total_amount"].Max != 10000 {
		t.Fatalf("unexpected anomaly config %+v", policy.Anomaly)
	}
	rules := policy.RuleSet()
	if len(rules) != 1 || rules[0].ID != "big_invoice" || rules[0].When.Op != domain.OpGreaterThan {
		t.Fatalf("unexpected rules %+v", rules)
	}
}

func TestParsePolicyRejectsInvalidRules(t *testing.T) {
	raw := `
rules:
  - id: broken
    when: {field: total_amount, op: roughly, value: 1}
    action: flag_for_review
    priority: 1
`
	_, err := ParsePolicy([]byte(raw))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestParsePolicyRejectsInvertedRange(t *testing.T) {
	raw := `
anomaly:
  ranges:
    invoice:
      total_amount: {min: 100, max: 1}
`
	if _, err := ParsePolicy([]byte(raw)); err == nil {
		t.Fatalf("expected inverted range to be rejected")
	}
}

func TestWithThresholdIgnoresOutOfRange(t *testing.T) {
	policy := DefaultPolicy()
	if got := policy.WithThreshold(0).ReviewThreshold; got != 0.7 {
		t.Fatalf("expected unchanged threshold, got %v", got)
	}
	if got := policy.WithThreshold(0.9).ReviewThreshold; got != 0.9 {
		t.Fatalf("expected override, got %v", got)
	}
}

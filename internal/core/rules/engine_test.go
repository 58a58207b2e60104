package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func invoiceState(fields domain.Fields) *domain.DocumentState {
	s := domain.NewDocumentState("doc-1", domain.SourceInfo{Filename: "inv.txt"}, now)
	s.DocumentType = "invoice"
	s.ExtractedData = fields.EnsureUniversal()
	s.ValidatedData = s.ExtractedData.Clone()
	s.ConfidenceScores[domain.StageExtraction] = 0.9
	return s
}

func ruleIDs(outcomes []domain.RuleOutcome) []string {
	ids := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		ids = append(ids, o.RuleID)
	}
	return ids
}

func hasRule(outcomes []domain.RuleOutcome, id string) bool {
	for _, o := range outcomes {
		if o.RuleID == id {
			return true
		}
	}
	return false
}

func TestDefaultRulesCleanInvoiceTriggersNothing(t *testing.T) {
	s := invoiceState(domain.Fields{
		"invoice_number": "INV-1",
		"total_amount":   900.0,
		"vendor_name":    "Acme Corp",
		"due_date":       "2026-04-01",
	})
	out := Evaluate(s, DefaultRules(nil, 0.7), now)
	if len(out) != 0 {
		t.Fatalf("expected no outcomes, got %v", ruleIDs(out))
	}
}

func TestDefaultRulesInvoiceTriggers(t *testing.T) {
	s := invoiceState(domain.Fields{
		"invoice_number": "INV-2",
		"total_amount":   "$15,000.00",
		"vendor_name":    "Unknown Vendor LLC",
		"due_date":       "2026-02-01",
	})
	out := Evaluate(s, DefaultRules(nil, 0.7), now)

	for _, id := range []string{"invoice_amount_limit", "invoice_vendor_whitelist", "invoice_due_date"} {
		if !hasRule(out, id) {
			t.Fatalf("expected %s to trigger, got %v", id, ruleIDs(out))
		}
	}
	if out[0].Priority != 1 {
		t.Fatalf("expected outcomes sorted by priority, got %v", out)
	}
	for _, o := range out {
		if o.RuleID == "invoice_amount_limit" {
			if o.Action != domain.RuleActionFlagForReview || o.Condition != "total_amount > 10000" {
				t.Fatalf("unexpected outcome %+v", o)
			}
		}
		if o.RuleID == "invoice_due_date" && !strings.Contains(o.Details, "29 days") {
			t.Fatalf("unexpected overdue detail %q", o.Details)
		}
	}
}

func TestRulesIgnoreOtherDocumentTypes(t *testing.T) {
	s := invoiceState(domain.Fields{"contract_value": 900000.0})
	out := Evaluate(s, DefaultRules(nil, 0.7), now)
	if hasRule(out, "contract_value_approval") {
		t.Fatalf("contract rule must not apply to invoice")
	}
}

func TestMissingCriticalFields(t *testing.T) {
	s := invoiceState(domain.Fields{"invoice_number": "INV-3", "vendor_name": "acme corp"})
	out := Evaluate(s, DefaultRules(nil, 0.7), now)
	if !hasRule(out, "missing_critical_fields_invoice") {
		t.Fatalf("expected missing fields rule, got %v", ruleIDs(out))
	}
	for _, o := range out {
		if o.RuleID == "missing_critical_fields_invoice" && o.Details != "missing: total_amount" {
			t.Fatalf("unexpected details %q", o.Details)
		}
	}
}

func TestLowConfidencePseudoField(t *testing.T) {
	s := invoiceState(domain.Fields{"invoice_number": "INV-4", "total_amount": 10.0, "vendor_name": "acme corp"})
	s.ConfidenceScores[domain.StageExtraction] = 0.4
	out := Evaluate(s, DefaultRules(nil, 0.7), now)
	if !hasRule(out, "low_confidence_data") {
		t.Fatalf("expected low confidence rule, got %v", ruleIDs(out))
	}
}

func TestContractExpirationWithinDays(t *testing.T) {
	s := invoiceState(domain.Fields{"expiration_date": "2026-03-20", "contract_value": 1000.0})
	s.DocumentType = "contract"
	out := Evaluate(s, DefaultRules(nil, 0.7), now)
	if !hasRule(out, "contract_expiration_warning") {
		t.Fatalf("expected expiration warning, got %v", ruleIDs(out))
	}
}

func TestCompositeConditions(t *testing.T) {
	rules := []domain.Rule{{
		ID:     "big_foreign",
		Action: domain.RuleActionFlagForReview,
		When: domain.Condition{All: []domain.Condition{
			{Field: "total_amount", Op: domain.OpGreaterOrEqual, Value: 500},
			{Any: []domain.Condition{
				{Field: "currency", Op: domain.OpIn, Values: []any{"EUR", "GBP"}},
				{Field: "vendor_country", Op: domain.OpNotEqual, Value: "US"},
			}},
		}},
		Priority: 2,
	}}

	s := invoiceState(domain.Fields{"total_amount": 700.0, "currency": "eur"})
	out := Evaluate(s, rules, now)
	if len(out) != 1 {
		t.Fatalf("expected composite rule to trigger, got %v", out)
	}
	if out[0].Condition != "total_amount >= 500 and (currency in [EUR GBP] or vendor_country != US)" {
		t.Fatalf("unexpected condition text %q", out[0].Condition)
	}

	s = invoiceState(domain.Fields{"total_amount": 700.0, "currency": "USD"})
	if out := Evaluate(s, rules, now); len(out) != 0 {
		t.Fatalf("missing vendor_country must not satisfy ne, got %v", out)
	}
}

func TestEvaluateIsOrderIndependent(t *testing.T) {
	s := invoiceState(domain.Fields{"total_amount": 20000.0, "vendor_name": "someone"})
	rules := DefaultRules(nil, 0.7)
	reversed := make([]domain.Rule, len(rules))
	for i := range rules {
		reversed[len(rules)-1-i] = rules[i]
	}
	a := ruleIDs(Evaluate(s, rules, now))
	b := ruleIDs(Evaluate(s, reversed, now))
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Fatalf("evaluation depends on order: %v vs %v", a, b)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	if err := Validate(DefaultRules(nil, 0.7)); err != nil {
		t.Fatalf("default rules must validate: %v", err)
	}
	err := Validate([]domain.Rule{
		{ID: "a", Action: "x", Priority: 1, When: domain.Condition{Field: "f", Op: "approx"}},
		{ID: "a", Action: "", Priority: 0, When: domain.Condition{Field: "f", Op: domain.OpGreaterThan, Value: "lots"}},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	for _, want := range []string{"unknown op", "duplicate id", "action is required", "numeric value"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

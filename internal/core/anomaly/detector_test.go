package anomaly

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

func stateWith(docType string, data domain.Fields) *domain.DocumentState {
	s := domain.NewDocumentState("doc-1", domain.SourceInfo{Filename: "a.txt"}, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	s.DocumentType = docType
	s.ValidatedData = data.EnsureUniversal()
	return s
}

func kinds(anomalies []domain.Anomaly) map[string]domain.Severity {
	out := make(map[string]domain.Severity, len(anomalies))
	for _, a := range anomalies {
		out[a.Kind] = a.Severity
	}
	return out
}

func TestCleanInvoiceHasNoAnomalies(t *testing.T) {
	s := stateWith("invoice", domain.Fields{
		"invoice_number": "INV-1",
		"vendor_name":    "Acme Corp",
		"subtotal":       900.0,
		"tax_amount":     90.0,
		"total_amount":   990.0,
		"invoice_date":   "2026-02-01",
		"due_date":       "2026-03-01",
	})
	got := NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{})
	if len(got) != 0 {
		t.Fatalf("expected no anomalies, got %+v", got)
	}
}

func TestInvoiceRangeAndBusinessChecks(t *testing.T) {
	s := stateWith("invoice", domain.Fields{
		"invoice_number": "INV-2",
		"vendor_name":    "Acme Corp",
		"subtotal":       1000.0,
		"tax_amount":     -600.0,
		"total_amount":   250000.0,
	})
	got := kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))

	if got["range_outlier"] != domain.SeverityHigh {
		t.Fatalf("expected high range outlier, got %v", got)
	}
	if got["negative_amount"] != domain.SeverityHigh {
		t.Fatalf("expected negative amount, got %v", got)
	}
	if got["round_number"] != domain.SeverityLow {
		t.Fatalf("expected round number, got %v", got)
	}
}

func TestRangeSeverityMediumJustOutside(t *testing.T) {
	s := stateWith("invoice", domain.Fields{"invoice_number": "A1", "vendor_name": "v", "total_amount": 150000.5})
	got := NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{})
	if len(got) == 0 || got[0].Kind != "range_outlier" || got[0].Severity != domain.SeverityMedium {
		t.Fatalf("unexpected anomalies %+v", got)
	}
	if !strings.Contains(got[0].Description, "outside expected range (0-100000)") {
		t.Fatalf("unexpected description %q", got[0].Description)
	}
}

func TestHighTaxRate(t *testing.T) {
	s := stateWith("invoice", domain.Fields{"invoice_number": "A2", "subtotal": 100.0, "tax_amount": 60.0, "total_amount": 160.0})
	got := kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))
	if got["unusual_tax_rate"] != domain.SeverityMedium {
		t.Fatalf("expected tax rate anomaly, got %v", got)
	}
}

func TestContractChecks(t *testing.T) {
	s := stateWith("contract", domain.Fields{
		"parties":         "A and B",
		"effective_date":  "2026-01-01",
		"expiration_date": "2026-01-10",
		"contract_value":  0.0,
	})
	got := kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))
	if got["short_contract_duration"] != domain.SeverityMedium || got["zero_value_contract"] != domain.SeverityMedium {
		t.Fatalf("unexpected anomalies %v", got)
	}
}

func TestFinancialStatementChecks(t *testing.T) {
	s := stateWith("financial_statement", domain.Fields{
		"company_name":      "Acme",
		"total_assets":      500000.0,
		"total_liabilities": 600000.0,
		"total_equity":      -200000.0,
	})
	got := kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))
	if got["accounting_equation_imbalance"] != domain.SeverityHigh || got["negative_equity"] != domain.SeverityHigh {
		t.Fatalf("unexpected anomalies %v", got)
	}
}

func TestDataQualityChecks(t *testing.T) {
	s := stateWith("other", domain.Fields{
		"title":     "XXXXXXXXXX",
		"reference": "aaaaaaaaaaaaaaab",
	})
	got := kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))
	if got["placeholder_text"] != domain.SeverityMedium {
		t.Fatalf("expected placeholder text, got %v", got)
	}
	if got["repeated_characters"] != domain.SeverityLow {
		t.Fatalf("expected repeated characters, got %v", got)
	}
	if got["insufficient_data"] != domain.SeverityHigh {
		t.Fatalf("expected insufficient data, got %v", got)
	}
}

func TestDateFormatsReadExtractedSpellings(t *testing.T) {
	s := stateWith("invoice", domain.Fields{"invoice_number": "A7", "invoice_date": "2026-02-01", "due_date": "2026-03-01"})
	s.ExtractedData = domain.Fields{"invoice_number": "A7", "invoice_date": "2026-02-01", "due_date": "03/01/2026"}.EnsureUniversal()
	got := kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))
	if got["inconsistent_date_formats"] != domain.SeverityLow {
		t.Fatalf("expected date format anomaly from extracted data, got %v", got)
	}

	s.ExtractedData["due_date"] = "2026-03-01"
	got = kinds(NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{}))
	if _, ok := got["inconsistent_date_formats"]; ok {
		t.Fatalf("consistent spellings must not be flagged, got %v", got)
	}
}

func TestDistributionOutlierNeedsSamples(t *testing.T) {
	s := stateWith("invoice", domain.Fields{"invoice_number": "A3", "vendor_name": "v", "total_amount": 5000.0})
	d := NewDetector(DefaultConfig())

	few := domain.HistorySnapshot{Fields: map[string]domain.FieldStats{"total_amount": {Count: 3, Mean: 500, StdDev: 100}}}
	if got := kinds(d.Detect(s, few)); got["distribution_outlier"] != "" {
		t.Fatalf("distribution check must wait for enough samples, got %v", got)
	}

	many := domain.HistorySnapshot{Fields: map[string]domain.FieldStats{"total_amount": {Count: 40, Mean: 500, StdDev: 100}}}
	if got := kinds(d.Detect(s, many)); got["distribution_outlier"] != domain.SeverityHigh {
		t.Fatalf("expected high distribution outlier, got %v", got)
	}

	moderate := domain.HistorySnapshot{Fields: map[string]domain.FieldStats{"total_amount": {Count: 40, Mean: 4000, StdDev: 250}}}
	if got := kinds(d.Detect(s, moderate)); got["distribution_outlier"] != domain.SeverityMedium {
		t.Fatalf("expected medium distribution outlier, got %v", got)
	}
}

func TestDuplicateFingerprint(t *testing.T) {
	s := stateWith("invoice", domain.Fields{"invoice_number": "A4", "vendor_name": "v", "total_amount": 10.0})
	got := NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{DuplicateOf: "doc-0"})
	if len(got) == 0 || got[0].Kind != "duplicate_document" || got[0].Severity != domain.SeverityHigh {
		t.Fatalf("expected duplicate first, got %+v", got)
	}
	if got := NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{DuplicateOf: "doc-1"}); len(kinds(got)) != 0 {
		t.Fatalf("a document is not a duplicate of itself, got %+v", got)
	}
}

func TestResultsSortedBySeverity(t *testing.T) {
	s := stateWith("invoice", domain.Fields{"invoice_number": "A5", "total_amount": -2000.0, "due_date": "03/01/2026", "invoice_date": "2026-02-01"})
	got := NewDetector(DefaultConfig()).Detect(s, domain.HistorySnapshot{})
	for i := 1; i < len(got); i++ {
		if got[i-1].Severity.Rank() < got[i].Severity.Rank() {
			t.Fatalf("anomalies not sorted: %+v", got)
		}
	}
	if kinds(got)["inconsistent_date_formats"] != domain.SeverityLow {
		t.Fatalf("expected date format anomaly, got %+v", got)
	}
}

func TestFingerprintPrefersContentDigest(t *testing.T) {
	a := stateWith("invoice", domain.Fields{"invoice_number": "A6"})
	b := stateWith("invoice", domain.Fields{"invoice_number": "A6", "summary": "different wording"})
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("summary must not affect fingerprint")
	}
	a.RawContent = &domain.ContentRef{Digest: "abc"}
	if Fingerprint(a) != "invoice:abc" {
		t.Fatalf("unexpected fingerprint %q", Fingerprint(a))
	}
}

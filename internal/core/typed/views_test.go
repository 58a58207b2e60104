package typed

import (
	"testing"

	"github.com/kirillkom/docflow/internal/core/domain"
)

func TestInvoiceOfParsesFormattedAmounts(t *testing.T) {
	inv := InvoiceOf(domain.Fields{
		"invoice_number": "INV-9",
		"total_amount":   "$1,250.50",
		"tax_amount":     100,
		"due_date":       "2026-04-01",
	})
	if inv.InvoiceNumber != "INV-9" || inv.DueDate != "2026-04-01" {
		t.Fatalf("unexpected strings %+v", inv)
	}
	if inv.TotalAmount == nil || *inv.TotalAmount != 1250.5 {
		t.Fatalf("unexpected total %v", inv.TotalAmount)
	}
	if inv.TaxAmount == nil || *inv.TaxAmount != 100 {
		t.Fatalf("unexpected tax %v", inv.TaxAmount)
	}
	if inv.Subtotal != nil {
		t.Fatalf("missing subtotal must stay nil")
	}
}

func TestDecodeReportsUnconvertibleValues(t *testing.T) {
	var c Contract
	err := Decode(domain.Fields{"contract_value": "tbd", "effective_date": "2026-01-01"}, &c)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if c.EffectiveDate != "2026-01-01" {
		t.Fatalf("other fields must still decode, got %+v", c)
	}
	if c.ContractValue != nil && *c.ContractValue != 0 {
		t.Fatalf("unexpected contract value %v", *c.ContractValue)
	}
}

func TestNullFieldsStayNil(t *testing.T) {
	fs := FinancialStatementOf(domain.Fields{"total_assets": nil, "total_equity": 5.0})
	if fs.TotalAssets != nil {
		t.Fatalf("null must decode to nil")
	}
	if fs.TotalEquity == nil || *fs.TotalEquity != 5 {
		t.Fatalf("unexpected equity %v", fs.TotalEquity)
	}
}

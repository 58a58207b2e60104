package rules

import (
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

var DefaultApprovedVendors = []string{"acme corp", "global supplies", "tech solutions inc"}

// CriticalFields lists, per document type, the fields a usable document must carry.
var CriticalFields = map[string][]string{
	"invoice":             {"invoice_number", "total_amount", "vendor_name"},
	"contract":            {"parties", "effective_date", "contract_value"},
	"financial_statement": {"company_name", "total_assets", "period_ending"},
}

// DefaultRules returns the built-in business rules.
func DefaultRules(approvedVendors []string, confidenceThreshold float64) []domain.Rule {
	if len(approvedVendors) == 0 {
		approvedVendors = DefaultApprovedVendors
	}
	vendors := make([]any, 0, len(approvedVendors))
	for _, v := range approvedVendors {
		vendors = append(vendors, strings.ToLower(strings.TrimSpace(v)))
	}
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.7
	}

	out := []domain.Rule{
		{
			ID:            "invoice_amount_limit",
			Name:          "Invoice amount limit",
			DocumentTypes: []string{"invoice"},
			When:          domain.Condition{Field: "total_amount", Op: domain.OpGreaterThan, Value: 10000},
			Action:        domain.RuleActionFlagForReview,
			Priority:      1,
		},
		{
			ID:            "invoice_due_date",
			Name:          "Invoice overdue",
			DocumentTypes: []string{"invoice"},
			When:          domain.Condition{Field: "due_date", Op: domain.OpBeforeNow},
			Action:        "flag_overdue",
			Priority:      2,
		},
		{
			ID:            "invoice_vendor_whitelist",
			Name:          "Vendor not on approved list",
			DocumentTypes: []string{"invoice"},
			When:          domain.Condition{Field: "vendor_name", Op: domain.OpNotIn, Values: vendors},
			Action:        domain.RuleActionRequireApproval,
			Priority:      1,
		},
		{
			ID:            "contract_value_approval",
			Name:          "Contract value approval",
			DocumentTypes: []string{"contract"},
			When:          domain.Condition{Field: "contract_value", Op: domain.OpGreaterThan, Value: 50000},
			Action:        domain.RuleActionRequireExecutiveApproval,
			Priority:      1,
		},
		{
			ID:            "contract_expiration_warning",
			Name:          "Contract expiring soon",
			DocumentTypes: []string{"contract"},
			When:          domain.Condition{Field: "expiration_date", Op: domain.OpWithinDays, Days: 30},
			Action:        "send_expiration_warning",
			Priority:      3,
		},
		{
			ID:            "financial_audit_required",
			Name:          "Financial audit required",
			DocumentTypes: []string{"financial_statement"},
			When:          domain.Condition{Field: "total_assets", Op: domain.OpGreaterThan, Value: 1000000},
			Action:        "require_audit",
			Priority:      1,
		},
	}

	for _, docType := range []string{"invoice", "contract", "financial_statement"} {
		out = append(out, domain.Rule{
			ID:            "missing_critical_fields_" + docType,
			Name:          "Missing critical fields",
			DocumentTypes: []string{docType},
			When:          domain.Condition{Op: domain.OpMissingAny, Fields: CriticalFields[docType]},
			Action:        "flag_incomplete",
			Priority:      1,
		})
	}

	out = append(out, domain.Rule{
		ID:       "low_confidence_data",
		Name:     "Low confidence data",
		When:     domain.Condition{Field: "confidence.extraction", Op: domain.OpLessThan, Value: confidenceThreshold},
		Action:   "require_manual_review",
		Priority: 2,
	})
	return out
}

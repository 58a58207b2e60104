package anomaly

import (
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/typed"
)

func checkInvoice(inv typed.Invoice) []domain.Anomaly {
	var out []domain.Anomaly
	amounts := []struct {
		field string
		value *float64
	}{
		{"total_amount", inv.TotalAmount},
		{"subtotal", inv.Subtotal},
		{"tax_amount", inv.TaxAmount},
	}
	for _, a := range amounts {
		if a.value != nil && *a.value < 0 {
			out = append(out, domain.Anomaly{
				Kind:        "negative_amount",
				Description: fmt.Sprintf("Negative %s: %s", a.field, formatNumber(*a.value)),
				Severity:    domain.SeverityHigh,
				Fields:      []string{a.field},
			})
		}
	}

	if inv.Subtotal != nil && inv.TaxAmount != nil && *inv.Subtotal > 0 {
		rate := *inv.TaxAmount / *inv.Subtotal * 100
		if rate > 50 {
			out = append(out, domain.Anomaly{
				Kind:        "unusual_tax_rate",
				Description: fmt.Sprintf("Unusually high tax rate: %.1f%%", rate),
				Severity:    domain.SeverityMedium,
				Fields:      []string{"tax_amount", "subtotal"},
			})
		}
	}

	if total := inv.TotalAmount; total != nil && *total > 1000 && math.Mod(*total, 100) == 0 {
		out = append(out, domain.Anomaly{
			Kind:        "round_number",
			Description: fmt.Sprintf("Total amount is a round number: %s", formatNumber(*total)),
			Severity:    domain.SeverityLow,
			Fields:      []string{"total_amount"},
		})
	}
	return out
}

func checkContract(c typed.Contract) []domain.Anomaly {
	var out []domain.Anomaly
	effective, okEffective := domain.ParseDate(c.EffectiveDate)
	expiration, okExpiration := domain.ParseDate(c.ExpirationDate)
	if okEffective && okExpiration {
		days := int(expiration.Sub(effective).Hours() / 24)
		dateFields := []string{"effective_date", "expiration_date"}
		switch {
		case days < 30:
			out = append(out, domain.Anomaly{
				Kind:        "short_contract_duration",
				Description: fmt.Sprintf("Very short contract duration: %d days", days),
				Severity:    domain.SeverityMedium,
				Fields:      dateFields,
			})
		case days > 3650:
			out = append(out, domain.Anomaly{
				Kind:        "long_contract_duration",
				Description: fmt.Sprintf("Very long contract duration: %d days (%.1f years)", days, float64(days)/365),
				Severity:    domain.SeverityMedium,
				Fields:      dateFields,
			})
		}
	}
	if c.ContractValue != nil && *c.ContractValue == 0 {
		out = append(out, domain.Anomaly{
			Kind:        "zero_value_contract",
			Description: "Contract has zero value",
			Severity:    domain.SeverityMedium,
			Fields:      []string{"contract_value"},
		})
	}
	return out
}

func checkFinancialStatement(fs typed.FinancialStatement) []domain.Anomaly {
	var out []domain.Anomaly
	if fs.TotalAssets != nil && fs.TotalLiabilities != nil && fs.TotalEquity != nil {
		assets, liabilities, equity := *fs.TotalAssets, *fs.TotalLiabilities, *fs.TotalEquity
		diff := math.Abs(assets - (liabilities + equity))
		tolerance := math.Max(assets*0.01, 1000)
		if diff > tolerance {
			out = append(out, domain.Anomaly{
				Kind: "accounting_equation_imbalance",
				Description: fmt.Sprintf("Accounting equation imbalance: Assets (%s) != Liabilities (%s) + Equity (%s)",
					formatNumber(assets), formatNumber(liabilities), formatNumber(equity)),
				Severity: domain.SeverityHigh,
				Fields:   []string{"total_assets", "total_liabilities", "total_equity"},
			})
		}
	}
	if fs.TotalEquity != nil && *fs.TotalEquity < 0 {
		out = append(out, domain.Anomaly{
			Kind:        "negative_equity",
			Description: fmt.Sprintf("Negative equity: %s", formatNumber(*fs.TotalEquity)),
			Severity:    domain.SeverityHigh,
			Fields:      []string{"total_equity"},
		})
	}
	return out
}

// checkDataQuality flags OCR noise, placeholder text and near-empty extractions.
func checkDataQuality(data domain.Fields) []domain.Anomaly {
	var out []domain.Anomaly
	for _, field := range sortedKeys(data) {
		value, ok := data[field].(string)
		if !ok {
			continue
		}
		runes := []rune(value)
		if len(runes) > 10 && float64(distinctRunes(runes)) < float64(len(runes))*0.3 {
			out = append(out, domain.Anomaly{
				Kind:        "repeated_characters",
				Description: fmt.Sprintf("Field %s has many repeated characters, possible OCR error", field),
				Severity:    domain.SeverityLow,
				Fields:      []string{field},
			})
		}
		if len(runes) > 5 && float64(strings.Count(value, "X")) > float64(len(runes))*0.5 {
			out = append(out, domain.Anomaly{
				Kind:        "placeholder_text",
				Description: fmt.Sprintf("Field %s appears to contain placeholder text", field),
				Severity:    domain.SeverityMedium,
				Fields:      []string{field},
			})
		}
	}

	if n := data.NonNullCount(); n < 3 {
		out = append(out, domain.Anomaly{
			Kind:        "insufficient_data",
			Description: fmt.Sprintf("Very few fields extracted: only %d non-null fields", n),
			Severity:    domain.SeverityHigh,
			Fields:      sortedKeys(data),
		})
	}
	return out
}

// checkDateFormats flags documents mixing slash, dash and dot date spellings.
func checkDateFormats(data domain.Fields) []domain.Anomaly {
	var fields []string
	styles := make(map[string]bool)
	for _, field := range sortedKeys(data) {
		value, ok := data[field].(string)
		if !ok || value == "" || !strings.Contains(strings.ToLower(field), "date") {
			continue
		}
		fields = append(fields, field)
		switch {
		case strings.Contains(value, "/"):
			styles["slash"] = true
		case strings.Contains(value, "-"):
			styles["dash"] = true
		case strings.Contains(value, "."):
			styles["dot"] = true
		}
	}
	if len(styles) < 2 {
		return nil
	}
	return []domain.Anomaly{{
		Kind:        "inconsistent_date_formats",
		Description: fmt.Sprintf("Inconsistent date formats detected: %s", strings.Join(sortedKeys(styles), ", ")),
		Severity:    domain.SeverityLow,
		Fields:      fields,
	}}
}

func distinctRunes(runes []rune) int {
	seen := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		seen[r] = struct{}{}
	}
	return len(seen)
}

package heuristic

import (
	"context"
	"regexp"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/rules"
)

// labels maps normalised "Label:" prefixes to field names.
var labels = map[string]string{
	"invoice number":    "invoice_number",
	"invoice no":        "invoice_number",
	"invoice #":         "invoice_number",
	"inv #":             "invoice_number",
	"vendor":            "vendor_name",
	"vendor name":       "vendor_name",
	"supplier":          "vendor_name",
	"from":              "vendor_name",
	"customer":          "customer_name",
	"bill to":           "customer_name",
	"invoice date":      "invoice_date",
	"date":              "invoice_date",
	"due date":          "due_date",
	"due":               "due_date",
	"subtotal":          "subtotal",
	"tax":               "tax_amount",
	"tax amount":        "tax_amount",
	"total":             "total_amount",
	"total amount":      "total_amount",
	"amount due":        "total_amount",
	"currency":          "currency",
	"parties":           "parties",
	"effective date":    "effective_date",
	"expiration date":   "expiration_date",
	"expiry date":       "expiration_date",
	"contract value":    "contract_value",
	"company":           "company_name",
	"company name":      "company_name",
	"period ending":     "period_ending",
	"total assets":      "total_assets",
	"total liabilities": "total_liabilities",
	"total equity":      "total_equity",
	"revenue":           "revenue",
	"email":             "email",
	"phone":             "phone",
}

var numericFields = map[string]bool{
	"subtotal":          true,
	"tax_amount":        true,
	"total_amount":      true,
	"contract_value":    true,
	"total_assets":      true,
	"total_liabilities": true,
	"total_equity":      true,
	"revenue":           true,
}

var (
	labelLine = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z #]{0,30}?)\s*:\s*(.+?)\s*$`)
	emailRe   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe   = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	dateRe    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`)
	moneyRe   = regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`)
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads "Label: value" lines into fields and fills the universal
// fields from them. Anything found only by pattern goes to metadata.
func (e *Extractor) Extract(ctx context.Context, content, documentType string) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}

	fields := domain.Fields{}
	var title string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title == "" {
			title = truncateRunes(line, 120)
		}
		m := labelLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		field, ok := labels[strings.ToLower(strings.Join(strings.Fields(m[1]), " "))]
		if !ok {
			continue
		}
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = fieldValue(field, m[2])
	}

	metadata := map[string]any{}
	for name, re := range map[string]*regexp.Regexp{"emails": emailRe, "phones": phoneRe, "dates": dateRe, "amounts": moneyRe} {
		if matches := re.FindAllString(content, 5); len(matches) > 0 {
			metadata[name] = toAnySlice(matches)
		}
	}
	if len(metadata) > 0 {
		fields[domain.FieldMetadata] = metadata
	}

	fields[domain.FieldTitle] = nullIfEmpty(title)
	fields[domain.FieldPrimaryEntity] = firstPresent(fields, "vendor_name", "company_name", "parties", "customer_name")
	fields[domain.FieldPrimaryDate] = firstPresent(fields, "invoice_date", "effective_date", "period_ending")
	fields[domain.FieldMonetaryValue] = firstPresent(fields, "total_amount", "contract_value", "total_assets")
	fields[domain.FieldSummary] = nullIfEmpty(truncateRunes(strings.Join(strings.Fields(content), " "), 200))
	fields[domain.FieldKeyPoints] = nil

	return domain.Extraction{
		Fields:     fields.EnsureUniversal(),
		Confidence: confidence(fields, documentType),
		Method:     "heuristic",
	}, nil
}

// confidence starts at 0.3 and rises with the share of critical fields found.
func confidence(fields domain.Fields, documentType string) float64 {
	critical := rules.CriticalFields[documentType]
	if len(critical) == 0 {
		labelled := 0
		for key, v := range fields {
			if key != domain.FieldMetadata && !domain.IsEmptyValue(v) {
				labelled++
			}
		}
		return domain.ClampConfidence(0.3 + min(0.4, 0.05*float64(labelled)))
	}
	found := 0
	for _, key := range critical {
		if !domain.IsEmptyValue(fields[key]) {
			found++
		}
	}
	return domain.ClampConfidence(0.3 + 0.6*float64(found)/float64(len(critical)))
}

func fieldValue(field, raw string) any {
	if numericFields[field] {
		if f, ok := domain.ToFloat(raw); ok {
			return f
		}
	}
	if field == "parties" {
		var parties []any
		for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
			if p = strings.TrimSpace(p); p != "" {
				parties = append(parties, p)
			}
		}
		return parties
	}
	return raw
}

func firstPresent(fields domain.Fields, keys ...string) any {
	for _, key := range keys {
		v := fields[key]
		if domain.IsEmptyValue(v) {
			continue
		}
		if list, ok := v.([]any); ok {
			return list[0]
		}
		return v
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

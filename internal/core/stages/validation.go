package stages

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/typed"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidationLimits are the configurable cross-field limits. Zero disables a limit.
type ValidationLimits struct {
	MaxInvoiceAmount float64 `yaml:"max_invoice_amount" json:"max_invoice_amount"`
}

type Validation struct {
	limits ValidationLimits
	now    Clock
}

func NewValidation(limits ValidationLimits, clock Clock) *Validation {
	return &Validation{limits: limits, now: clockOrDefault(clock)}
}

func (s *Validation) Stage() domain.Stage { return domain.StageValidation }

type fieldCheck struct {
	value      any
	confidence float64
	errors     []domain.ValidationError
	warnings   []string
}

func (s *Validation) Execute(_ context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	validated := make(domain.Fields, len(state.ExtractedData))
	var (
		errs        []domain.ValidationError
		warnings    []string
		confidences []float64
	)

	keys := make([]string, 0, len(state.ExtractedData))
	for k := range state.ExtractedData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, field := range keys {
		value := state.ExtractedData[field]
		if field == domain.FieldMetadata || value == nil {
			validated[field] = domain.CloneValue(value)
			continue
		}
		check := validateField(field, value)
		validated[field] = check.value
		errs = append(errs, check.errors...)
		warnings = append(warnings, check.warnings...)
		confidences = append(confidences, check.confidence)
	}

	crossErrs, crossWarnings := s.crossField(state.DocumentType, validated)
	errs = append(errs, crossErrs...)
	warnings = append(warnings, crossWarnings...)

	confidence := 0.0
	if len(confidences) > 0 {
		sum := 0.0
		for _, c := range confidences {
			sum += c
		}
		confidence = sum/float64(len(confidences)) - 0.2*float64(len(errs)) - 0.1*float64(len(warnings))
	}

	detail := fmt.Sprintf("%d error(s), %d warning(s)", len(errs), len(warnings))
	if len(warnings) > 0 {
		detail += ": " + strings.Join(warnings, "; ")
	}
	return domain.StageResult{
		Stage:            s.Stage(),
		Signal:           domain.SignalOK,
		Validated:        validated.EnsureUniversal(),
		ValidationErrors: errs,
		Detail:           detail,
	}.WithConfidence(confidence), nil
}

func inferFieldType(field string, value any) string {
	name := strings.ToLower(field)
	switch {
	case strings.Contains(name, "email"):
		return "email"
	case strings.Contains(name, "phone") || name == "tel" || strings.HasSuffix(name, "_tel") || strings.Contains(name, "fax"):
		return "phone"
	case strings.Contains(name, "date"):
		return "date"
	case strings.Contains(name, "amount"), strings.Contains(name, "total"), strings.Contains(name, "price"),
		strings.HasSuffix(name, "_value"), strings.Contains(name, "subtotal"):
		return "number"
	}
	switch value.(type) {
	case []any, []string:
		return "array"
	case float64, float32, int, int64, int32:
		return "number"
	case map[string]any, domain.Fields:
		return "object"
	default:
		return "string"
	}
}

func validateField(field string, value any) fieldCheck {
	switch inferFieldType(field, value) {
	case "email":
		return validateEmail(field, value)
	case "phone":
		return validatePhone(field, value)
	case "date":
		return validateDate(field, value)
	case "number":
		return validateNumber(field, value)
	case "array":
		return validateArray(field, value)
	case "object":
		return fieldCheck{value: domain.CloneValue(value), confidence: 1}
	default:
		return validateString(field, value)
	}
}

func validateEmail(field string, value any) fieldCheck {
	s, ok := value.(string)
	if !ok {
		return fieldCheck{value: value, errors: []domain.ValidationError{{Field: field, Message: "Email must be a string"}}}
	}
	s = strings.TrimSpace(s)
	if !emailPattern.MatchString(s) {
		return fieldCheck{
			value:      value,
			confidence: 0.2,
			errors:     []domain.ValidationError{{Field: field, Message: fmt.Sprintf("Invalid email format: %s", s)}},
		}
	}
	return fieldCheck{value: strings.ToLower(s), confidence: 1}
}

func validatePhone(field string, value any) fieldCheck {
	s, ok := value.(string)
	if !ok {
		return fieldCheck{value: value, errors: []domain.ValidationError{{Field: field, Message: "Phone number must be a string"}}}
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '+' {
			return r
		}
		return -1
	}, s)
	switch {
	case len(cleaned) < 10:
		return fieldCheck{
			value:      value,
			confidence: 0.3,
			errors:     []domain.ValidationError{{Field: field, Message: fmt.Sprintf("Phone number too short: %s", s)}},
		}
	case len(cleaned) > 15:
		return fieldCheck{value: value, confidence: 0.7, warnings: []string{fmt.Sprintf("Phone number unusually long: %s", s)}}
	default:
		return fieldCheck{value: cleaned, confidence: 1}
	}
}

func validateDate(field string, value any) fieldCheck {
	t, ok := domain.ParseDate(value)
	if !ok {
		return fieldCheck{
			value:      value,
			confidence: 0.1,
			errors:     []domain.ValidationError{{Field: field, Message: fmt.Sprintf("Invalid date format: %v", value)}},
		}
	}
	out := fieldCheck{value: t.Format(domain.DateLayout), confidence: 1}
	if t.Year() < 1900 || t.Year() > 2100 {
		out.confidence = 0.7
		out.warnings = []string{fmt.Sprintf("Date seems unusual: %v", value)}
	}
	return out
}

func validateNumber(field string, value any) fieldCheck {
	n, ok := domain.ToFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return fieldCheck{
			value:      value,
			confidence: 0.1,
			errors:     []domain.ValidationError{{Field: field, Message: fmt.Sprintf("Invalid number format: %v", value)}},
		}
	}
	out := fieldCheck{value: n, confidence: 1}
	switch {
	case n < 0:
		out.confidence = 0.8
		out.warnings = []string{fmt.Sprintf("Negative value detected in %s", field)}
	case n > 1e9:
		out.confidence = 0.8
		out.warnings = []string{fmt.Sprintf("Very large number detected in %s", field)}
	}
	return out
}

func validateString(field string, value any) fieldCheck {
	s, ok := value.(string)
	if !ok {
		return fieldCheck{value: value, confidence: 0.5, warnings: []string{fmt.Sprintf("Unexpected value type in %s", field)}}
	}
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return fieldCheck{value: nil, confidence: 0.5, warnings: []string{fmt.Sprintf("Empty string value in %s", field)}}
	case len(s) > 1000:
		return fieldCheck{value: s, confidence: 0.8, warnings: []string{fmt.Sprintf("Very long string value in %s", field)}}
	default:
		return fieldCheck{value: s, confidence: 1}
	}
}

func validateArray(field string, value any) fieldCheck {
	cloned := domain.CloneValue(value)
	n := 0
	switch items := value.(type) {
	case []any:
		n = len(items)
	case []string:
		n = len(items)
	}
	switch {
	case n == 0:
		return fieldCheck{value: cloned, confidence: 0.7, warnings: []string{fmt.Sprintf("Empty array in %s", field)}}
	case n > 100:
		return fieldCheck{value: cloned, confidence: 0.8, warnings: []string{fmt.Sprintf("Very large array in %s", field)}}
	default:
		return fieldCheck{value: cloned, confidence: 1}
	}
}

// crossField checks relations between fields of the normalised data.
func (s *Validation) crossField(docType string, data domain.Fields) ([]domain.ValidationError, []string) {
	var (
		errs     []domain.ValidationError
		warnings []string
	)
	switch docType {
	case "invoice":
		inv := typed.InvoiceOf(data)
		if inv.Subtotal != nil && inv.TaxAmount != nil && inv.TotalAmount != nil {
			calculated := *inv.Subtotal + *inv.TaxAmount
			if math.Abs(calculated-*inv.TotalAmount) > 0.01 {
				warnings = append(warnings, fmt.Sprintf("Total amount mismatch: %v vs calculated %v", *inv.TotalAmount, calculated))
			}
		}
		invoiceDate, okInvoice := domain.ParseDate(inv.InvoiceDate)
		if due, ok := domain.ParseDate(inv.DueDate); ok && okInvoice && due.Before(invoiceDate) {
			errs = append(errs, domain.ValidationError{Field: "due_date", Message: "Due date cannot be before invoice date"})
		}
		if okInvoice && domain.StartOfDay(invoiceDate).After(domain.StartOfDay(s.now())) {
			errs = append(errs, domain.ValidationError{Field: "invoice_date", Message: "Invoice date is in the future"})
		}
		if limit := s.limits.MaxInvoiceAmount; limit > 0 && inv.TotalAmount != nil && *inv.TotalAmount > limit {
			errs = append(errs, domain.ValidationError{Field: "total_amount", Message: fmt.Sprintf("Total amount exceeds limit (%v)", limit)})
		}
	case "contract":
		c := typed.ContractOf(data)
		effective, okEffective := domain.ParseDate(c.EffectiveDate)
		if expiration, ok := domain.ParseDate(c.ExpirationDate); ok && okEffective && !expiration.After(effective) {
			errs = append(errs, domain.ValidationError{Field: "expiration_date", Message: "Expiration date must be after effective date"})
		}
	case "financial_statement":
		fs := typed.FinancialStatementOf(data)
		if fs.TotalAssets != nil && fs.TotalLiabilities != nil && fs.TotalEquity != nil &&
			math.Abs(*fs.TotalAssets-(*fs.TotalLiabilities+*fs.TotalEquity)) > 0.01 {
			warnings = append(warnings, "Assets != Liabilities + Equity (accounting equation)")
		}
	}
	return errs, warnings
}

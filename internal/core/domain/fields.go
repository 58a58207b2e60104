package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Universal field keys present in every extraction result.
const (
	FieldTitle         = "title"
	FieldPrimaryEntity = "primary_entity"
	FieldPrimaryDate   = "primary_date"
	FieldMonetaryValue = "monetary_value"
	FieldSummary       = "summary"
	FieldKeyPoints     = "key_points"

	// FieldMetadata holds type-specific extras that have no dedicated key.
	FieldMetadata = "metadata"
)

var UniversalFields = []string{
	FieldTitle,
	FieldPrimaryEntity,
	FieldPrimaryDate,
	FieldMonetaryValue,
	FieldSummary,
	FieldKeyPoints,
}

// Fields maps field names to JSON-compatible values. A nil value means the
// field exists but has no analog in the document.
type Fields map[string]any

// EnsureUniversal adds null entries for any missing universal field.
func (f Fields) EnsureUniversal() Fields {
	if f == nil {
		f = Fields{}
	}
	for _, key := range UniversalFields {
		if _, ok := f[key]; !ok {
			f[key] = nil
		}
	}
	return f
}

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the JSON-compatible containers inside v.
func CloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = CloneValue(item)
		}
		return out
	case Fields:
		return typed.Clone()
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}

// NonNullCount counts keys with a meaningful value.
func (f Fields) NonNullCount() int {
	n := 0
	for _, v := range f {
		if !IsEmptyValue(v) {
			n++
		}
	}
	return n
}

func (f Fields) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", false
	}
	switch typed := v.(type) {
	case string:
		s := strings.TrimSpace(typed)
		return s, s != ""
	case fmt.Stringer:
		return typed.String(), true
	default:
		return fmt.Sprint(typed), true
	}
}

func (f Fields) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat converts JSON numbers and numeric strings ("$1,200.50") to float64.
func ToFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case nil:
		return 0, false
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case json.Number:
		n, err := typed.Float64()
		return n, err == nil
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r >= '0' && r <= '9', r == '.', r == '-':
				return r
			default:
				return -1
			}
		}, typed)
		if cleaned == "" || cleaned == "-" || cleaned == "." {
			return 0, false
		}
		n, err := strconv.ParseFloat(cleaned, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// IsEmptyValue reports nil, blank strings and empty collections.
func IsEmptyValue(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	default:
		return false
	}
}

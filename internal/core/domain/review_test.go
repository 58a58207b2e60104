package domain

import "testing"

func TestValidationErrorReferences(t *testing.T) {
	cases := []struct {
		name string
		err  ValidationError
		key  string
		want bool
	}{
		{"field match", ValidationError{Field: "total_amount", Message: "Total amount exceeds limit (500)"}, "total_amount", true},
		{"field match ignores case", ValidationError{Field: "Due_Date"}, "due_date", true},
		{"field set, message mentions key", ValidationError{Field: "total_amount", Message: "Total amount exceeds limit (500)"}, "amount", false},
		{"field set, other field", ValidationError{Field: "invoice_date", Message: "Invoice date is in the future"}, "due_date", false},
		{"no field, message names key", ValidationError{Message: "Due date cannot be before invoice date"}, "due_date", true},
		{"no field, unrelated", ValidationError{Message: "Phone number too short"}, "vendor_name", false},
		{"blank key", ValidationError{Field: "total_amount"}, "  ", false},
	}
	for _, tc := range cases {
		if got := tc.err.References(tc.key); got != tc.want {
			t.Errorf("%s: References(%q) = %v, want %v", tc.name, tc.key, got, tc.want)
		}
	}
}

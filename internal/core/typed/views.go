// Package typed decodes the loosely typed field map into per-document-type
// structs for checks that compare several fields at once.
package typed

import (
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type Invoice struct {
	InvoiceNumber string   `mapstructure:"invoice_number"`
	VendorName    string   `mapstructure:"vendor_name"`
	InvoiceDate   string   `mapstructure:"invoice_date"`
	DueDate       string   `mapstructure:"due_date"`
	Subtotal      *float64 `mapstructure:"subtotal"`
	TaxAmount     *float64 `mapstructure:"tax_amount"`
	TotalAmount   *float64 `mapstructure:"total_amount"`
	Currency      string   `mapstructure:"currency"`
}

type Contract struct {
	EffectiveDate  string   `mapstructure:"effective_date"`
	ExpirationDate string   `mapstructure:"expiration_date"`
	ContractValue  *float64 `mapstructure:"contract_value"`
}

type FinancialStatement struct {
	CompanyName      string   `mapstructure:"company_name"`
	PeriodEnding     string   `mapstructure:"period_ending"`
	TotalAssets      *float64 `mapstructure:"total_assets"`
	TotalLiabilities *float64 `mapstructure:"total_liabilities"`
	TotalEquity      *float64 `mapstructure:"total_equity"`
	Revenue          *float64 `mapstructure:"revenue"`
}

// Decode fills out from fields. Values that cannot be converted are left at
// their zero value; the returned error lists them.
func Decode(fields domain.Fields, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       numericHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(fields))
}

func InvoiceOf(fields domain.Fields) Invoice {
	var v Invoice
	_ = Decode(fields, &v)
	return v
}

func ContractOf(fields domain.Fields) Contract {
	var v Contract
	_ = Decode(fields, &v)
	return v
}

func FinancialStatementOf(fields domain.Fields) FinancialStatement {
	var v FinancialStatement
	_ = Decode(fields, &v)
	return v
}

// numericHook accepts formatted amounts such as "$1,200.50" for float targets.
func numericHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Float64 || from.Kind() != reflect.String {
		return data, nil
	}
	if f, ok := domain.ToFloat(data); ok {
		return f, nil
	}
	return data, nil
}

// Package billing holds the side-effect free arithmetic behind invoices and services.
// Every function takes and returns shopspring decimals; nothing here touches binary floats.
package billing

import (
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/shopspring/decimal"
)

// InvoiceTotals are the derived money fields of an invoice, excluding base currency
type InvoiceTotals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// ServiceTax describes how a service amount relates to its tax
type ServiceTax struct {
	Amount  decimal.Decimal
	HasTax  bool
	TaxRate decimal.Decimal
	TaxType types.TaxType
}

// ServiceAmounts is the base/tax/total decomposition of a service amount
type ServiceAmounts struct {
	BaseAmount  decimal.Decimal `json:"base_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// LineItemTotal returns quantity × unitPrice rounded to money precision
func LineItemTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return types.RoundMoney(types.Multiply(decimal.NewFromInt(int64(quantity)), unitPrice))
}

// CalculateInvoiceTotals sums already rounded item totals and applies the tax rate.
// The subtotal is the exact sum; only the tax is rounded.
func CalculateInvoiceTotals(itemTotals []decimal.Decimal, taxRatePercent decimal.Decimal) InvoiceTotals {
	subtotal := types.Add(itemTotals...)
	taxAmount := types.RoundMoney(types.PercentageOf(subtotal, taxRatePercent))

	return InvoiceTotals{
		Subtotal:    subtotal,
		TaxAmount:   taxAmount,
		TotalAmount: types.Add(subtotal, taxAmount),
	}
}

// BaseCurrencyTotal converts an invoice total into the freelancer's base currency
func BaseCurrencyTotal(totalAmount, exchangeRate decimal.Decimal) decimal.Decimal {
	return types.RoundMoney(types.Multiply(totalAmount, exchangeRate))
}

// ServiceBaseAmount returns the pre-tax amount of a service.
// Inclusive tax is divided out of the amount; exclusive or untaxed amounts are returned as is.
func ServiceBaseAmount(in ServiceTax) (decimal.Decimal, error) {
	if !in.HasTax {
		return types.RoundMoney(in.Amount), nil
	}

	switch in.TaxType {
	case types.TaxTypeExclusive:
		return types.RoundMoney(in.Amount), nil
	case types.TaxTypeInclusive:
		denominator := decimal.NewFromInt(1).Add(types.PercentToFraction(in.TaxRate))
		if !denominator.IsPositive() {
			return decimal.Zero, ierr.NewError("inclusive tax denominator is not positive").
				WithHint("Tax rate makes the inclusive tax base amount undefined").
				WithReportableDetails(map[string]any{
					"tax_rate": in.TaxRate.String(),
				}).
				Mark(ierr.ErrArithmetic)
		}
		return types.RoundMoney(in.Amount.Div(denominator)), nil
	default:
		return decimal.Zero, in.TaxType.Validate()
	}
}

// ServiceTaxAmount returns the tax portion of a service, zero when the service is untaxed.
// Tax is taken on the rounded base amount, the same way CalculateInvoiceTotals taxes an
// invoice whose single item is priced at that base. For inclusive tax the total can then
// differ from the entered amount by a cent.
func ServiceTaxAmount(in ServiceTax) (decimal.Decimal, error) {
	if !in.HasTax {
		return decimal.Zero, nil
	}

	base, err := ServiceBaseAmount(in)
	if err != nil {
		return decimal.Zero, err
	}
	return types.RoundMoney(types.PercentageOf(base, in.TaxRate)), nil
}

// ServiceTotalAmount returns base plus tax
func ServiceTotalAmount(in ServiceTax) (decimal.Decimal, error) {
	amounts, err := CalculateServiceAmounts(in)
	if err != nil {
		return decimal.Zero, err
	}
	return amounts.TotalAmount, nil
}

// CalculateServiceAmounts returns the full decomposition in one pass
func CalculateServiceAmounts(in ServiceTax) (ServiceAmounts, error) {
	base, err := ServiceBaseAmount(in)
	if err != nil {
		return ServiceAmounts{}, err
	}

	tax, err := ServiceTaxAmount(in)
	if err != nil {
		return ServiceAmounts{}, err
	}

	return ServiceAmounts{
		BaseAmount:  base,
		TaxAmount:   tax,
		TotalAmount: types.Add(base, tax),
	}, nil
}

package types

import (
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/shopspring/decimal"
)

const (
	// MoneyPrecision is the number of fraction digits persisted for every money field
	MoneyPrecision int32 = 2
	// RatePrecision is the number of fraction digits persisted for exchange rates
	RatePrecision int32 = 6
	// PercentPrecision is the number of fraction digits persisted for tax rates
	PercentPrecision int32 = 2
)

var hundred = decimal.NewFromInt(100)

// Add returns the unrounded sum of the given amounts
func Add(amounts ...decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}

// Subtract returns a - b
func Subtract(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b)
}

// Multiply returns amount × by without rounding
func Multiply(amount, by decimal.Decimal) decimal.Decimal {
	return amount.Mul(by)
}

// PercentageOf returns amount × ratePercent / 100 without rounding
func PercentageOf(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred)
}

// PercentToFraction turns 18 into 0.18
func PercentToFraction(ratePercent decimal.Decimal) decimal.Decimal {
	return ratePercent.Div(hundred)
}

// Round rounds half-up (away from zero) to the given number of fraction digits.
// It is the only rounding primitive used at persist points.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// RoundMoney rounds to MoneyPrecision
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return Round(d, MoneyPrecision)
}

// RoundRate rounds to RatePrecision
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return Round(d, RatePrecision)
}

// ValidateScale rejects d when it has more than places fraction digits. Values are
// refused rather than rounded so the stored value is the one calculations used.
func ValidateScale(field string, d decimal.Decimal, places int32) error {
	if d.Equal(d.Round(places)) {
		return nil
	}
	return ierr.NewErrorf("%s has too many fraction digits", field).
		WithHintf("%s supports at most %d decimal places", field, places).
		WithReportableDetails(map[string]any{
			field: d.String(),
		}).
		Mark(ierr.ErrValidation)
}

package types

import (
	"strings"
	"unicode"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
)

const DefaultCurrency = "USD"

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrencyCode checks the code is three ASCII letters
func ValidateCurrencyCode(code string) error {
	code = NormalizeCurrency(code)
	if len(code) != 3 {
		return ierr.NewError("invalid currency code").
			WithHint("Currency must be a 3-letter ISO code").
			WithReportableDetails(map[string]any{
				"currency": code,
			}).
			Mark(ierr.ErrValidation)
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return ierr.NewError("invalid currency code").
				WithHint("Currency must be a 3-letter ISO code").
				WithReportableDetails(map[string]any{
					"currency": code,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

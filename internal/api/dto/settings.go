package dto

import (
	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/freelanceflow/freelanceflow/internal/validator"
	"github.com/shopspring/decimal"
)

// UpdateSettingsRequest changes the user editable settings. The invoice counter
// and year are owned by the numbering sequencer and cannot be set here.
type UpdateSettingsRequest struct {
	InvoicePrefix  *string          `json:"invoice_prefix,omitempty" validate:"omitempty,min=1,max=10"`
	BaseCurrency   *string          `json:"base_currency,omitempty" validate:"omitempty,len=3"`
	DefaultTaxRate *decimal.Decimal `json:"default_tax_rate,omitempty"`
	InvoiceDueDays *int             `json:"invoice_due_days,omitempty" validate:"omitempty,min=1,max=365"`
}

func (r *UpdateSettingsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.DefaultTaxRate != nil && (r.DefaultTaxRate.IsNegative() || r.DefaultTaxRate.GreaterThan(maxInvoiceTaxRate)) {
		return ierr.NewError("default_tax_rate out of range").
			WithHint("Default tax rate must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"default_tax_rate": r.DefaultTaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if r.DefaultTaxRate != nil {
		if err := types.ValidateScale("default_tax_rate", *r.DefaultTaxRate, types.PercentPrecision); err != nil {
			return err
		}
	}
	if r.BaseCurrency != nil {
		if err := types.ValidateCurrencyCode(*r.BaseCurrency); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTo copies the provided fields onto s
func (r *UpdateSettingsRequest) ApplyTo(s *settings.FreelancerSetting) {
	if r.InvoicePrefix != nil {
		s.InvoicePrefix = *r.InvoicePrefix
	}
	if r.BaseCurrency != nil {
		s.BaseCurrency = types.NormalizeCurrency(*r.BaseCurrency)
	}
	if r.DefaultTaxRate != nil {
		s.DefaultTaxRate = *r.DefaultTaxRate
	}
	if r.InvoiceDueDays != nil {
		s.InvoiceDueDays = *r.InvoiceDueDays
	}
}

type SettingsResponse struct {
	*settings.FreelancerSetting
}

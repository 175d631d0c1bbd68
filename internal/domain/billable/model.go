package billable

import (
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/billing"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/shopspring/decimal"
)

var maxServiceTaxRate = decimal.RequireFromString("999.99")

// Service is a one-time or recurring offering billed to a client
type Service struct {
	ID              string                 `db:"id" json:"id"`
	ClientID        string                 `db:"client_id" json:"client_id"`
	ProjectID       *string                `db:"project_id" json:"project_id,omitempty"`
	Name            string                 `db:"name" json:"name"`
	Description     *string                `db:"description" json:"description,omitempty"`
	Amount          decimal.Decimal        `db:"amount" json:"amount"`
	Currency        string                 `db:"currency" json:"currency"`
	HasTax          bool                   `db:"has_tax" json:"has_tax"`
	TaxRate         decimal.Decimal        `db:"tax_rate" json:"tax_rate"`
	TaxType         types.TaxType          `db:"tax_type" json:"tax_type"`
	Frequency       types.BillingFrequency `db:"frequency" json:"frequency"`
	StartDate       time.Time              `db:"start_date" json:"start_date"`
	EndDate         *time.Time             `db:"end_date" json:"end_date,omitempty"`
	NextBillingDate *time.Time             `db:"next_billing_date" json:"next_billing_date,omitempty"`
	LastBilledAt    *time.Time             `db:"last_billed_at" json:"last_billed_at,omitempty"`
	ServiceStatus   types.ServiceStatus    `db:"service_status" json:"service_status"`
	IsActive        bool                   `db:"is_active" json:"is_active"`
	BillingCount    int                    `db:"billing_count" json:"billing_count"`
	types.BaseModel
}

// TaxInput returns the calculator view of the service
func (s *Service) TaxInput() billing.ServiceTax {
	return billing.ServiceTax{
		Amount:  s.Amount,
		HasTax:  s.HasTax,
		TaxRate: s.TaxRate,
		TaxType: s.TaxType,
	}
}

// Amounts returns the base/tax/total decomposition of the service amount
func (s *Service) Amounts() (billing.ServiceAmounts, error) {
	return billing.CalculateServiceAmounts(s.TaxInput())
}

// BaseAmount returns the pre-tax amount
func (s *Service) BaseAmount() (decimal.Decimal, error) {
	return billing.ServiceBaseAmount(s.TaxInput())
}

// Normalize enforces the frequency/next billing date pairing before persisting:
// one-time services never carry a next billing date and recurring ones default to the start date.
func (s *Service) Normalize() {
	s.Currency = types.NormalizeCurrency(s.Currency)
	if s.TaxType == "" {
		s.TaxType = types.TaxTypeExclusive
	}
	if !s.HasTax {
		s.TaxRate = decimal.Zero
	}
	if !s.Frequency.IsRecurring() {
		s.NextBillingDate = nil
		return
	}
	if s.NextBillingDate == nil && s.ServiceStatus != types.ServiceStatusCompleted {
		start := s.StartDate
		s.NextBillingDate = &start
	}
}

// IsEligible reports whether the service is due for billing as of asOf
func (s *Service) IsEligible(asOf time.Time) bool {
	return s.ServiceStatus == types.ServiceStatusActive &&
		s.IsActive &&
		s.NextBillingDate != nil &&
		!s.NextBillingDate.After(asOf)
}

// AdvanceBillingCycle records a successful bill at billedAt and moves the next billing date
// forward by one period. A service whose next date passes its end date is completed.
func (s *Service) AdvanceBillingCycle(billedAt time.Time) error {
	if !s.Frequency.IsRecurring() || s.NextBillingDate == nil {
		return ierr.NewError("service has no billing cycle to advance").
			WithHint("Only recurring services with a next billing date can be advanced").
			WithReportableDetails(map[string]any{
				"service_id": s.ID,
				"frequency":  s.Frequency,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	next, err := types.NextBillingDate(*s.NextBillingDate, s.Frequency)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Could not compute the next billing date").
			Mark(ierr.ErrValidation)
	}

	s.BillingCount++
	s.LastBilledAt = &billedAt

	if s.EndDate != nil && next.After(*s.EndDate) {
		s.NextBillingDate = nil
		s.ServiceStatus = types.ServiceStatusCompleted
		return nil
	}

	s.NextBillingDate = &next
	return nil
}

// Validate checks the service invariants
func (s *Service) Validate() error {
	if s.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("Service must reference a client").
			Mark(ierr.ErrValidation)
	}
	if strings.TrimSpace(s.Name) == "" {
		return ierr.NewError("name is required").
			WithHint("Service name is required").
			Mark(ierr.ErrValidation)
	}
	if s.Amount.IsNegative() {
		return ierr.NewError("amount is negative").
			WithHint("Service amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateScale("amount", s.Amount, types.MoneyPrecision); err != nil {
		return err
	}
	if err := types.ValidateCurrencyCode(s.Currency); err != nil {
		return err
	}
	if err := s.Frequency.Validate(); err != nil {
		return err
	}
	if err := s.ServiceStatus.Validate(); err != nil {
		return err
	}
	if err := s.TaxType.Validate(); err != nil {
		return err
	}
	if s.TaxRate.IsNegative() || s.TaxRate.GreaterThan(maxServiceTaxRate) {
		return ierr.NewError("invalid tax rate").
			WithHint("Service tax rate must be between 0 and 999.99").
			WithReportableDetails(map[string]any{
				"tax_rate": s.TaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateScale("tax_rate", s.TaxRate, types.PercentPrecision); err != nil {
		return err
	}
	if s.StartDate.IsZero() {
		return ierr.NewError("start_date is required").
			WithHint("Service start date is required").
			Mark(ierr.ErrValidation)
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return ierr.NewError("end date before start date").
			WithHint("Service end date must be on or after the start date").
			Mark(ierr.ErrValidation)
	}
	if !s.Frequency.IsRecurring() && s.NextBillingDate != nil {
		return ierr.NewError("one-time service has a next billing date").
			WithHint("One-time services cannot have a next billing date").
			Mark(ierr.ErrValidation)
	}
	if s.Frequency.IsRecurring() && s.NextBillingDate == nil && s.ServiceStatus != types.ServiceStatusCompleted {
		return ierr.NewError("recurring service has no next billing date").
			WithHint("Recurring services need a next billing date").
			Mark(ierr.ErrValidation)
	}
	if s.BillingCount < 0 {
		return ierr.NewError("billing count is negative").
			WithHint("Billing count cannot be negative").
			Mark(ierr.ErrValidation)
	}
	// the amounts must be computable, e.g. no zero denominator for inclusive tax
	_, err := s.Amounts()
	return err
}

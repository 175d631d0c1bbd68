package types

import (
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/samber/lo"
)

// ServiceStatus is the business status of a billable service
type ServiceStatus string

const (
	ServiceStatusDraft           ServiceStatus = "draft"
	ServiceStatusActive          ServiceStatus = "active"
	ServiceStatusPaused          ServiceStatus = "paused"
	ServiceStatusCompleted       ServiceStatus = "completed"
	ServiceStatusCancelled       ServiceStatus = "cancelled"
	ServiceStatusPendingApproval ServiceStatus = "pending_approval"
)

func (s ServiceStatus) String() string {
	return string(s)
}

func (s ServiceStatus) Validate() error {
	allowed := []ServiceStatus{
		ServiceStatusDraft,
		ServiceStatusActive,
		ServiceStatusPaused,
		ServiceStatusCompleted,
		ServiceStatusCancelled,
		ServiceStatusPendingApproval,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid service status").
			WithHint("Please provide a valid service status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TaxType decides whether a service amount already contains tax
type TaxType string

const (
	TaxTypeInclusive TaxType = "inclusive"
	TaxTypeExclusive TaxType = "exclusive"
)

func (t TaxType) String() string {
	return string(t)
}

func (t TaxType) Validate() error {
	allowed := []TaxType{
		TaxTypeInclusive,
		TaxTypeExclusive,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid tax type").
			WithHint("Tax type must be inclusive or exclusive").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingFrequency is the cadence a service is billed at
type BillingFrequency string

const (
	BillingFrequencyOneTime    BillingFrequency = "one-time"
	BillingFrequencyWeekly     BillingFrequency = "weekly"
	BillingFrequencyMonthly    BillingFrequency = "monthly"
	BillingFrequencyQuarterly  BillingFrequency = "quarterly"
	BillingFrequencyHalfYearly BillingFrequency = "half-yearly"
	BillingFrequencyYearly     BillingFrequency = "yearly"
)

func (f BillingFrequency) String() string {
	return string(f)
}

func (f BillingFrequency) Validate() error {
	allowed := []BillingFrequency{
		BillingFrequencyOneTime,
		BillingFrequencyWeekly,
		BillingFrequencyMonthly,
		BillingFrequencyQuarterly,
		BillingFrequencyHalfYearly,
		BillingFrequencyYearly,
	}
	if !lo.Contains(allowed, f) {
		return ierr.NewError("invalid billing frequency").
			WithHint("Please provide a valid billing frequency").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsRecurring is false only for one-time services
func (f BillingFrequency) IsRecurring() bool {
	return f != BillingFrequencyOneTime
}

// ServiceFilter represents the filter options for listing services
type ServiceFilter struct {
	*QueryFilter

	ServiceIDs    []string        `json:"service_ids,omitempty" form:"service_ids"`
	ClientID      string          `json:"client_id,omitempty" form:"client_id"`
	ServiceStatus []ServiceStatus `json:"service_status,omitempty" form:"service_status"`
	RecurringOnly bool            `json:"recurring_only,omitempty" form:"recurring_only"`
	ActiveOnly    bool            `json:"active_only,omitempty" form:"active_only"`
}

// NewServiceFilter creates a new service filter with default options
func NewServiceFilter() *ServiceFilter {
	return &ServiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f ServiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.ServiceStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

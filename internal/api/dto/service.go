package dto

import (
	"context"
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/billing"
	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/freelanceflow/freelanceflow/internal/validator"
	"github.com/shopspring/decimal"
)

// CreateServiceRequest represents the request payload for a billable service
type CreateServiceRequest struct {
	ClientID    string                 `json:"client_id" validate:"required"`
	ProjectID   *string                `json:"project_id,omitempty"`
	Name        string                 `json:"name" validate:"required,max=255"`
	Description *string                `json:"description,omitempty"`
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency,omitempty" validate:"omitempty,len=3"`
	HasTax      bool                   `json:"has_tax"`
	TaxRate     decimal.Decimal        `json:"tax_rate"`
	TaxType     types.TaxType          `json:"tax_type,omitempty"`
	Frequency   types.BillingFrequency `json:"frequency" validate:"required"`
	StartDate   time.Time              `json:"start_date" validate:"required"`
	EndDate     *time.Time             `json:"end_date,omitempty"`

	// next_billing_date defaults to start_date for recurring services and is ignored for one-time ones
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`

	// service_status defaults to active
	ServiceStatus *types.ServiceStatus `json:"service_status,omitempty"`
	IsActive      *bool                `json:"is_active,omitempty"`
}

func (r *CreateServiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if r.TaxType != "" {
		if err := r.TaxType.Validate(); err != nil {
			return err
		}
	}
	if r.ServiceStatus != nil {
		if err := r.ServiceStatus.Validate(); err != nil {
			return err
		}
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ierr.NewError("end_date must be on or after start_date").
			WithHint("Service end date must be on or after the start date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToService builds the service. The caller fills the currency default, then normalizes and validates.
func (r *CreateServiceRequest) ToService(ctx context.Context) *billable.Service {
	s := &billable.Service{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SERVICE),
		ClientID:        strings.TrimSpace(r.ClientID),
		ProjectID:       r.ProjectID,
		Name:            strings.TrimSpace(r.Name),
		Description:     r.Description,
		Amount:          r.Amount,
		Currency:        r.Currency,
		HasTax:          r.HasTax,
		TaxRate:         r.TaxRate,
		TaxType:         r.TaxType,
		Frequency:       r.Frequency,
		StartDate:       r.StartDate.UTC(),
		EndDate:         r.EndDate,
		NextBillingDate: r.NextBillingDate,
		ServiceStatus:   types.ServiceStatusActive,
		IsActive:        true,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if r.ServiceStatus != nil {
		s.ServiceStatus = *r.ServiceStatus
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
	return s
}

// UpdateServiceRequest changes a service. Only provided fields are applied.
type UpdateServiceRequest struct {
	ClientID        *string                 `json:"client_id,omitempty" validate:"omitempty,min=1"`
	ProjectID       *string                 `json:"project_id,omitempty"`
	Name            *string                 `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description     *string                 `json:"description,omitempty"`
	Amount          *decimal.Decimal        `json:"amount,omitempty"`
	Currency        *string                 `json:"currency,omitempty" validate:"omitempty,len=3"`
	HasTax          *bool                   `json:"has_tax,omitempty"`
	TaxRate         *decimal.Decimal        `json:"tax_rate,omitempty"`
	TaxType         *types.TaxType          `json:"tax_type,omitempty"`
	Frequency       *types.BillingFrequency `json:"frequency,omitempty"`
	StartDate       *time.Time              `json:"start_date,omitempty"`
	EndDate         *time.Time              `json:"end_date,omitempty"`
	NextBillingDate *time.Time              `json:"next_billing_date,omitempty"`
	ServiceStatus   *types.ServiceStatus    `json:"service_status,omitempty"`
	IsActive        *bool                   `json:"is_active,omitempty"`
}

func (r *UpdateServiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ApplyTo copies the provided fields onto s. Switching a service to one-time clears
// its next billing date during normalization.
func (r *UpdateServiceRequest) ApplyTo(s *billable.Service) {
	if r.ClientID != nil {
		s.ClientID = *r.ClientID
	}
	if r.ProjectID != nil {
		s.ProjectID = r.ProjectID
	}
	if r.Name != nil {
		s.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		s.Description = r.Description
	}
	if r.Amount != nil {
		s.Amount = *r.Amount
	}
	if r.Currency != nil {
		s.Currency = *r.Currency
	}
	if r.HasTax != nil {
		s.HasTax = *r.HasTax
	}
	if r.TaxRate != nil {
		s.TaxRate = *r.TaxRate
	}
	if r.TaxType != nil {
		s.TaxType = *r.TaxType
	}
	if r.Frequency != nil {
		s.Frequency = *r.Frequency
	}
	if r.StartDate != nil {
		s.StartDate = r.StartDate.UTC()
	}
	if r.EndDate != nil {
		s.EndDate = r.EndDate
	}
	if r.NextBillingDate != nil {
		s.NextBillingDate = r.NextBillingDate
	}
	if r.ServiceStatus != nil {
		s.ServiceStatus = *r.ServiceStatus
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

// ServiceResponse carries the service and its derived amounts
type ServiceResponse struct {
	*billable.Service
	BaseAmount  decimal.Decimal `json:"base_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func NewServiceResponse(s *billable.Service) (*ServiceResponse, error) {
	amounts, err := s.Amounts()
	if err != nil {
		return nil, err
	}
	return &ServiceResponse{
		Service:     s,
		BaseAmount:  amounts.BaseAmount,
		TaxAmount:   amounts.TaxAmount,
		TotalAmount: amounts.TotalAmount,
	}, nil
}

// ListServicesResponse represents the response for listing services
type ListServicesResponse = types.ListResponse[*ServiceResponse]

// ServiceAmountsResponse is the calculator view of a service amount
type ServiceAmountsResponse struct {
	ServiceID string `json:"service_id"`
	Currency  string `json:"currency"`
	billing.ServiceAmounts
}

// BillingRunResponse summarizes one pass of the recurring billing runner
type BillingRunResponse struct {
	AsOf       time.Time `json:"as_of"`
	Processed  int       `json:"processed"`
	Billed     int       `json:"billed"`
	Failed     int       `json:"failed"`
	InvoiceIDs []string  `json:"invoice_ids"`
}

package dto

import (
	"context"
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/freelanceflow/freelanceflow/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	maxInvoiceTaxRate = decimal.NewFromInt(100)
	minExchangeRate   = decimal.New(1, -6)
	maxExchangeRate   = decimal.RequireFromString("9999.999999")
)

// InvoiceItemRequest is one submitted line of an invoice
type InvoiceItemRequest struct {
	// service_id links the line to the service it was billed from, as a point in time snapshot
	ServiceID *string `json:"service_id,omitempty"`

	Description string          `json:"description" validate:"required,max=500"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`

	ServicePeriodStart *time.Time `json:"service_period_start,omitempty"`
	ServicePeriodEnd   *time.Time `json:"service_period_end,omitempty"`
	IsRecurring        bool       `json:"is_recurring"`
	Notes              *string    `json:"notes,omitempty"`
}

func (r *InvoiceItemRequest) Validate() error {
	if r.UnitPrice.IsNegative() {
		return ierr.NewError("unit_price must be non-negative").
			WithHint("Item unit price cannot be negative").
			WithReportableDetails(map[string]any{
				"unit_price": r.UnitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateScale("unit_price", r.UnitPrice, types.MoneyPrecision); err != nil {
		return err
	}
	if r.ServicePeriodStart != nil && r.ServicePeriodEnd != nil && r.ServicePeriodEnd.Before(*r.ServicePeriodStart) {
		return ierr.NewError("service_period_end must be on or after service_period_start").
			WithHint("Service period end must be on or after its start").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *InvoiceItemRequest) ToItemInput() invoice.ItemInput {
	return invoice.ItemInput{
		ServiceID:          r.ServiceID,
		Description:        r.Description,
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice,
		ServicePeriodStart: r.ServicePeriodStart,
		ServicePeriodEnd:   r.ServicePeriodEnd,
		IsRecurring:        r.IsRecurring,
		Notes:              r.Notes,
	}
}

// CreateInvoiceRequest represents the request payload for creating a new invoice.
// The invoice number is always minted by the server.
type CreateInvoiceRequest struct {
	ClientID  string  `json:"client_id" validate:"required"`
	ProjectID *string `json:"project_id,omitempty"`

	// invoice_date defaults to today (UTC)
	InvoiceDate *time.Time `json:"invoice_date,omitempty"`

	// due_date defaults to invoice_date plus the freelancer's invoice_due_days
	DueDate *time.Time `json:"due_date,omitempty"`

	// currency defaults to the freelancer's base currency
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`

	// exchange_rate converts the invoice currency into the base currency and defaults to 1
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`

	// tax_rate is a percentage and defaults to the freelancer's default_tax_rate
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty"`

	Notes *string `json:"notes,omitempty"`

	Items []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := validateInvoiceFields(r.InvoiceDate, r.DueDate, r.ExchangeRate, r.TaxRate); err != nil {
		return err
	}
	return validateItems(r.Items)
}

// ItemInputs converts the submitted lines keeping their order
func (r *CreateInvoiceRequest) ItemInputs() []invoice.ItemInput {
	return lo.Map(r.Items, func(item InvoiceItemRequest, _ int) invoice.ItemInput {
		return item.ToItemInput()
	})
}

// UpdateInvoiceRequest changes an existing invoice. Items, when given, replace the whole
// item set. invoice_status moves only along the invoice state machine.
type UpdateInvoiceRequest struct {
	ClientID      *string              `json:"client_id,omitempty" validate:"omitempty,min=1"`
	ProjectID     *string              `json:"project_id,omitempty"`
	InvoiceDate   *time.Time           `json:"invoice_date,omitempty"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	Currency      *string              `json:"currency,omitempty" validate:"omitempty,len=3"`
	ExchangeRate  *decimal.Decimal     `json:"exchange_rate,omitempty"`
	TaxRate       *decimal.Decimal     `json:"tax_rate,omitempty"`
	InvoiceStatus *types.InvoiceStatus `json:"invoice_status,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
	Items         []InvoiceItemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := validateInvoiceFields(r.InvoiceDate, r.DueDate, r.ExchangeRate, r.TaxRate); err != nil {
		return err
	}
	if r.InvoiceStatus != nil {
		if err := r.InvoiceStatus.Validate(); err != nil {
			return err
		}
	}
	return validateItems(r.Items)
}

// ItemInputs converts the submitted lines keeping their order, or nil when items are untouched
func (r *UpdateInvoiceRequest) ItemInputs() []invoice.ItemInput {
	if r.Items == nil {
		return nil
	}
	return lo.Map(r.Items, func(item InvoiceItemRequest, _ int) invoice.ItemInput {
		return item.ToItemInput()
	})
}

// ApplyTo copies the provided scalar fields onto inv. Status and items are handled by the service.
func (r *UpdateInvoiceRequest) ApplyTo(inv *invoice.Invoice) {
	if r.ClientID != nil {
		inv.ClientID = *r.ClientID
	}
	if r.ProjectID != nil {
		inv.ProjectID = r.ProjectID
	}
	if r.InvoiceDate != nil {
		inv.InvoiceDate = r.InvoiceDate.UTC()
	}
	if r.DueDate != nil {
		due := r.DueDate.UTC()
		inv.DueDate = &due
	}
	if r.Currency != nil {
		inv.Currency = types.NormalizeCurrency(*r.Currency)
	}
	if r.ExchangeRate != nil {
		inv.ExchangeRate = *r.ExchangeRate
	}
	if r.TaxRate != nil {
		inv.TaxRate = *r.TaxRate
	}
	if r.Notes != nil {
		inv.Notes = r.Notes
	}
}

// ToInvoice builds the draft invoice. Defaults from the freelancer's settings are
// applied by the service before numbering.
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		ClientID:      strings.TrimSpace(r.ClientID),
		ProjectID:     r.ProjectID,
		Currency:      types.NormalizeCurrency(r.Currency),
		InvoiceStatus: types.InvoiceStatusDraft,
		Notes:         r.Notes,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
	if r.InvoiceDate != nil {
		inv.InvoiceDate = r.InvoiceDate.UTC()
	}
	if r.DueDate != nil {
		due := r.DueDate.UTC()
		inv.DueDate = &due
	}
	if r.ExchangeRate != nil {
		inv.ExchangeRate = *r.ExchangeRate
	}
	if r.TaxRate != nil {
		inv.TaxRate = *r.TaxRate
	}
	return inv
}

func validateInvoiceFields(invoiceDate, dueDate *time.Time, exchangeRate, taxRate *decimal.Decimal) error {
	if exchangeRate != nil && (exchangeRate.LessThan(minExchangeRate) || exchangeRate.GreaterThan(maxExchangeRate)) {
		return ierr.NewError("exchange_rate out of range").
			WithHint("Exchange rate must be between 0.000001 and 9999.999999").
			WithReportableDetails(map[string]any{
				"exchange_rate": exchangeRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if taxRate != nil && (taxRate.IsNegative() || taxRate.GreaterThan(maxInvoiceTaxRate)) {
		return ierr.NewError("tax_rate out of range").
			WithHint("Tax rate must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"tax_rate": taxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if exchangeRate != nil {
		if err := types.ValidateScale("exchange_rate", *exchangeRate, types.RatePrecision); err != nil {
			return err
		}
	}
	if taxRate != nil {
		if err := types.ValidateScale("tax_rate", *taxRate, types.PercentPrecision); err != nil {
			return err
		}
	}
	if invoiceDate != nil && dueDate != nil && dueDate.Before(*invoiceDate) {
		return ierr.NewError("due_date must be on or after invoice_date").
			WithHint("Due date must be on or after the invoice date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func validateItems(items []InvoiceItemRequest) error {
	for idx := range items {
		if err := items[idx].Validate(); err != nil {
			return ierr.WithError(err).
				WithReportableDetails(map[string]any{
					"item_index": idx,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// InvoiceResponse is an invoice with its items in sort order
type InvoiceResponse struct {
	*invoice.Invoice
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv}
}

// ListInvoicesResponse represents the response for listing invoices
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

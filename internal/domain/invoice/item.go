package invoice

import (
	"context"
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/billing"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/shopspring/decimal"
)

// InvoiceItem is one billable line of an invoice. It is a point-in-time snapshot:
// ServiceID is a reference only and later service changes never alter the item.
type InvoiceItem struct {
	ID                 string          `db:"id" json:"id"`
	InvoiceID          string          `db:"invoice_id" json:"invoice_id"`
	ServiceID          *string         `db:"service_id" json:"service_id,omitempty"`
	Description        string          `db:"description" json:"description"`
	Quantity           int             `db:"quantity" json:"quantity"`
	UnitPrice          decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice         decimal.Decimal `db:"total_price" json:"total_price"`
	ServicePeriodStart *time.Time      `db:"service_period_start" json:"service_period_start,omitempty"`
	ServicePeriodEnd   *time.Time      `db:"service_period_end" json:"service_period_end,omitempty"`
	IsRecurring        bool            `db:"is_recurring" json:"is_recurring"`
	Notes              *string         `db:"notes" json:"notes,omitempty"`
	SortOrder          int             `db:"sort_order" json:"sort_order"`
	types.BaseModel
}

// ItemInput is a submitted line before pricing and ordering
type ItemInput struct {
	ServiceID          *string
	Description        string
	Quantity           int
	UnitPrice          decimal.Decimal
	ServicePeriodStart *time.Time
	ServicePeriodEnd   *time.Time
	IsRecurring        bool
	Notes              *string
}

// Validate checks a single submitted line
func (in ItemInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return ierr.NewError("item description is required").
			WithHint("Every invoice item needs a description").
			Mark(ierr.ErrValidation)
	}
	if in.Quantity < 1 {
		return ierr.NewError("item quantity must be positive").
			WithHint("Item quantity must be at least 1").
			WithReportableDetails(map[string]any{
				"quantity": in.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if in.UnitPrice.IsNegative() {
		return ierr.NewError("item unit price is negative").
			WithHint("Item unit price cannot be negative").
			WithReportableDetails(map[string]any{
				"unit_price": in.UnitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateScale("unit_price", in.UnitPrice, types.MoneyPrecision); err != nil {
		return err
	}
	if in.ServicePeriodStart != nil && in.ServicePeriodEnd != nil && in.ServicePeriodEnd.Before(*in.ServicePeriodStart) {
		return ierr.NewError("service period ends before it starts").
			WithHint("Service period end must be on or after its start").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BuildItems validates the submitted lines and turns them into items of invoiceID,
// numbered 1..n in submission order and priced with LineItemTotal.
func BuildItems(ctx context.Context, invoiceID string, inputs []ItemInput) ([]*InvoiceItem, error) {
	if len(inputs) == 0 {
		return nil, ierr.NewError("invoice has no items").
			WithHint("An invoice needs at least one item").
			Mark(ierr.ErrValidation)
	}

	items := make([]*InvoiceItem, 0, len(inputs))
	for idx, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, ierr.WithError(err).
				WithReportableDetails(map[string]any{
					"item_index": idx,
				}).
				Mark(ierr.ErrValidation)
		}

		unitPrice := in.UnitPrice
		items = append(items, &InvoiceItem{
			ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM),
			InvoiceID:          invoiceID,
			ServiceID:          in.ServiceID,
			Description:        strings.TrimSpace(in.Description),
			Quantity:           in.Quantity,
			UnitPrice:          unitPrice,
			TotalPrice:         billing.LineItemTotal(in.Quantity, unitPrice),
			ServicePeriodStart: in.ServicePeriodStart,
			ServicePeriodEnd:   in.ServicePeriodEnd,
			IsRecurring:        in.IsRecurring,
			Notes:              in.Notes,
			SortOrder:          idx + 1,
			BaseModel:          types.GetDefaultBaseModel(ctx),
		})
	}

	return items, nil
}

package invoice

import (
	"time"

	"github.com/freelanceflow/freelanceflow/internal/billing"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/shopspring/decimal"
)

var (
	maxTaxRate      = decimal.NewFromInt(100)
	minExchangeRate = decimal.New(1, -6)
	maxExchangeRate = decimal.RequireFromString("9999.999999")
)

// Invoice is one bill to one client together with its ordered items
type Invoice struct {
	ID                      string              `db:"id" json:"id"`
	InvoiceNumber           string              `db:"invoice_number" json:"invoice_number"`
	ClientID                string              `db:"client_id" json:"client_id"`
	ProjectID               *string             `db:"project_id" json:"project_id,omitempty"`
	InvoiceDate             time.Time           `db:"invoice_date" json:"invoice_date"`
	DueDate                 *time.Time          `db:"due_date" json:"due_date,omitempty"`
	Currency                string              `db:"currency" json:"currency"`
	ExchangeRate            decimal.Decimal     `db:"exchange_rate" json:"exchange_rate"`
	TaxRate                 decimal.Decimal     `db:"tax_rate" json:"tax_rate"`
	Subtotal                decimal.Decimal     `db:"subtotal" json:"subtotal"`
	TaxAmount               decimal.Decimal     `db:"tax_amount" json:"tax_amount"`
	TotalAmount             decimal.Decimal     `db:"total_amount" json:"total_amount"`
	TotalAmountBaseCurrency decimal.Decimal     `db:"total_amount_base_currency" json:"total_amount_base_currency"`
	InvoiceStatus           types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	Notes                   *string             `db:"notes" json:"notes,omitempty"`
	SentAt                  *time.Time          `db:"sent_at" json:"sent_at,omitempty"`
	PaidAt                  *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	Items                   []*InvoiceItem      `db:"-" json:"items,omitempty"`
	types.BaseModel
}

// Recalculate derives subtotal, tax, total and base currency total from the current
// items, rate and exchange rate. All four fields are assigned together.
func (i *Invoice) Recalculate() {
	itemTotals := make([]decimal.Decimal, 0, len(i.Items))
	for _, item := range i.Items {
		itemTotals = append(itemTotals, item.TotalPrice)
	}

	totals := billing.CalculateInvoiceTotals(itemTotals, i.TaxRate)
	i.Subtotal = totals.Subtotal
	i.TaxAmount = totals.TaxAmount
	i.TotalAmount = totals.TotalAmount
	i.TotalAmountBaseCurrency = billing.BaseCurrencyTotal(totals.TotalAmount, i.ExchangeRate)
}

// IsOverdue reports whether an invoice awaiting payment has passed its due date as of asOf.
// Only the calendar day of asOf counts, so an invoice due today is not overdue.
func (i *Invoice) IsOverdue(asOf time.Time) bool {
	if i.DueDate == nil {
		return false
	}
	if i.InvoiceStatus != types.InvoiceStatusSent && i.InvoiceStatus != types.InvoiceStatusOverdue {
		return false
	}
	return truncateToDay(asOf).After(truncateToDay(*i.DueDate))
}

// CanMarkSent reports whether the invoice may be (re)sent. Only terminal invoices are refused.
func (i *Invoice) CanMarkSent() error {
	if i.InvoiceStatus.IsTerminal() {
		return ierr.NewErrorf("invoice in status %s cannot be sent", i.InvoiceStatus).
			WithHintf("Invoice is already %s and cannot be marked as sent", i.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id":     i.ID,
				"current_status": i.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidStateTransition)
	}
	return nil
}

// Validate checks the scalar fields of the invoice
func (i *Invoice) Validate() error {
	if i.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("Invoice must reference a client").
			Mark(ierr.ErrValidation)
	}

	if err := types.ValidateCurrencyCode(i.Currency); err != nil {
		return err
	}

	if i.ExchangeRate.LessThan(minExchangeRate) || i.ExchangeRate.GreaterThan(maxExchangeRate) {
		return ierr.NewError("invalid exchange rate").
			WithHint("Exchange rate must be between 0.000001 and 9999.999999").
			WithReportableDetails(map[string]any{
				"exchange_rate": i.ExchangeRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateScale("exchange_rate", i.ExchangeRate, types.RatePrecision); err != nil {
		return err
	}

	if i.TaxRate.IsNegative() || i.TaxRate.GreaterThan(maxTaxRate) {
		return ierr.NewError("invalid tax rate").
			WithHint("Tax rate must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"tax_rate": i.TaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateScale("tax_rate", i.TaxRate, types.PercentPrecision); err != nil {
		return err
	}

	if i.InvoiceDate.IsZero() {
		return ierr.NewError("invoice_date is required").
			WithHint("Invoice date is required").
			Mark(ierr.ErrValidation)
	}

	if i.DueDate != nil && truncateToDay(*i.DueDate).Before(truncateToDay(i.InvoiceDate)) {
		return ierr.NewError("due date before invoice date").
			WithHint("Due date must be on or after the invoice date").
			WithReportableDetails(map[string]any{
				"invoice_date": i.InvoiceDate,
				"due_date":     *i.DueDate,
			}).
			Mark(ierr.ErrValidation)
	}

	return i.InvoiceStatus.Validate()
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

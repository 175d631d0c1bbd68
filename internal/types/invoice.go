package types

import (
	"time"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the business status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// invoiceStatusTransitions lists, for each status, the statuses it may move to.
// paid and cancelled are terminal.
var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether no transition out of s exists
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// CanTransitionTo reports whether s -> next is an edge of the invoice state machine
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return lo.Contains(invoiceStatusTransitions[s], next)
}

// ValidateTransition returns ErrInvalidStateTransition when s -> next is not allowed
func (s InvoiceStatus) ValidateTransition(next InvoiceStatus) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if s.CanTransitionTo(next) {
		return nil
	}
	return ierr.NewErrorf("invoice cannot move from %s to %s", s, next).
		WithHintf("Invoice in status %s cannot be marked as %s", s, next).
		WithReportableDetails(map[string]any{
			"current_status":   s,
			"requested_status": next,
			"allowed":          invoiceStatusTransitions[s],
		}).
		Mark(ierr.ErrInvalidStateTransition)
}

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs    []string        `json:"invoice_ids,omitempty" form:"invoice_ids"`
	ClientID      string          `json:"client_id,omitempty" form:"client_id"`
	ProjectID     string          `json:"project_id,omitempty" form:"project_id"`
	InvoiceStatus []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
	// DueBefore selects invoices whose due date is strictly before the given instant
	DueBefore *time.Time `json:"due_before,omitempty" form:"due_before" time_format:"2006-01-02T15:04:05Z07:00"`
}

// NewInvoiceFilter creates a new invoice filter with default options
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// Validate validates the invoice filter
func (f InvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.InvoiceStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

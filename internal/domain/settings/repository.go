package settings

import (
	"context"
)

// Repository defines the interface for freelancer settings persistence.
// All lookups are scoped to the freelancer in ctx.
type Repository interface {
	Create(ctx context.Context, setting *FreelancerSetting) error

	// Get returns the freelancer's settings, or a not found error when none exist yet
	Get(ctx context.Context) (*FreelancerSetting, error)

	// GetForUpdate reads the freelancer's settings and holds a row lock on them until the
	// transaction in ctx ends. It must be called inside a transaction.
	GetForUpdate(ctx context.Context) (*FreelancerSetting, error)

	// Update persists the user editable fields. It never touches the numbering state.
	Update(ctx context.Context, setting *FreelancerSetting) error

	// UpdateSequence persists next_invoice_number and invoice_year only
	UpdateSequence(ctx context.Context, setting *FreelancerSetting) error
}

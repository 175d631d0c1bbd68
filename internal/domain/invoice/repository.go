package invoice

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/types"
)

// Repository defines the interface for invoice persistence operations.
// Every call is scoped to the freelancer in ctx.
type Repository interface {
	// Create inserts the invoice row only; items go through ItemRepository
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID without its items
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetForUpdate retrieves an invoice and locks its row until the transaction in ctx ends
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)

	// Update persists the scalar fields and all derived money fields
	Update(ctx context.Context, invoice *Invoice) error

	// Delete archives the invoice
	Delete(ctx context.Context, id string) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)
}

// ItemRepository persists the items of an invoice
type ItemRepository interface {
	// CreateMany inserts items in the given order
	CreateMany(ctx context.Context, items []*InvoiceItem) error

	// ListByInvoiceID returns the invoice's items ordered by sort_order
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*InvoiceItem, error)

	// DeleteByInvoiceID removes every item of the invoice
	DeleteByInvoiceID(ctx context.Context, invoiceID string) error
}

package testutil

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository. Invoice numbers are unique across
// every freelancer, as the invoices table enforces.
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	locks *rowLocks
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice),
		locks:         newRowLocks(DefaultLockTimeout),
	}
}

// copyInvoice drops Items, which live in the item store
func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.Items = nil
	return &c
}

func invoiceNotFound(id string) error {
	return ierr.NewErrorf("invoice %s not found", id).
		WithHintf("invoice %s not found", id).
		WithReportableDetails(map[string]any{
			"invoice_id": id,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}

	taken := s.InMemoryStore.Count(ctx, func(_ context.Context, other *invoice.Invoice) bool {
		return other.InvoiceNumber == inv.InvoiceNumber
	})
	if taken > 0 {
		return ierr.NewError("invoice number already exists").
			WithHintf("Invoice number %s is already in use", inv.InvoiceNumber).
			WithReportableDetails(map[string]any{
				"invoice_number": inv.InvoiceNumber,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !visible(ctx, inv.BaseModel) {
		return nil, invoiceNotFound(id)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.locks.acquire(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	existing, err := s.Get(ctx, inv.ID)
	if err != nil {
		return err
	}

	updated := copyInvoice(inv)
	updated.InvoiceNumber = existing.InvoiceNumber
	updated.BaseModel.FreelancerID = existing.FreelancerID
	updated.BaseModel.CreatedAt = existing.CreatedAt
	updated.BaseModel.Status = existing.Status
	return s.InMemoryStore.Update(ctx, inv.ID, updated)
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	existing.Status = types.StatusArchived
	existing.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, id, existing)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	items := s.InMemoryStore.List(ctx, invoiceFilterFn(filter), invoiceSortFn(filter.QueryFilter))
	return paginate(items, filter.QueryFilter), nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	return s.InMemoryStore.Count(ctx, invoiceFilterFn(filter)), nil
}

func visible(ctx context.Context, base types.BaseModel) bool {
	return CheckFreelancerFilter(ctx, base.FreelancerID) && base.Status == types.StatusPublished
}

func invoiceFilterFn(filter *types.InvoiceFilter) FilterFunc[*invoice.Invoice] {
	return func(ctx context.Context, inv *invoice.Invoice) bool {
		if !visible(ctx, inv.BaseModel) {
			return false
		}
		if len(filter.InvoiceIDs) > 0 && !lo.Contains(filter.InvoiceIDs, inv.ID) {
			return false
		}
		if filter.ClientID != "" && inv.ClientID != filter.ClientID {
			return false
		}
		if filter.ProjectID != "" && lo.FromPtr(inv.ProjectID) != filter.ProjectID {
			return false
		}
		if len(filter.InvoiceStatus) > 0 && !lo.Contains(filter.InvoiceStatus, inv.InvoiceStatus) {
			return false
		}
		if filter.TimeRangeFilter != nil {
			if filter.StartTime != nil && inv.InvoiceDate.Before(*filter.StartTime) {
				return false
			}
			if filter.EndTime != nil && inv.InvoiceDate.After(*filter.EndTime) {
				return false
			}
		}
		if filter.DueBefore != nil && (inv.DueDate == nil || !inv.DueDate.Before(*filter.DueBefore)) {
			return false
		}
		return true
	}
}

func invoiceSortFn(filter *types.QueryFilter) SortFunc[*invoice.Invoice] {
	sortBy := types.FILTER_DEFAULT_SORT
	desc := true
	if filter != nil {
		sortBy = filter.GetSort()
		desc = filter.GetOrder() == types.OrderDesc
	}

	less := func(a, b *invoice.Invoice) bool {
		switch sortBy {
		case "invoice_date":
			if !a.InvoiceDate.Equal(b.InvoiceDate) {
				return a.InvoiceDate.Before(b.InvoiceDate)
			}
		case "invoice_number":
			if a.InvoiceNumber != b.InvoiceNumber {
				return a.InvoiceNumber < b.InvoiceNumber
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}

	return func(a, b *invoice.Invoice) bool {
		if desc {
			return less(b, a)
		}
		return less(a, b)
	}
}

// InMemoryInvoiceItemStore implements invoice.ItemRepository with the unique
// (invoice_id, sort_order) constraint.
type InMemoryInvoiceItemStore struct {
	*InMemoryStore[*invoice.InvoiceItem]

	// FailCreateMany, when set, is returned by CreateMany before anything is written
	FailCreateMany error
}

var _ invoice.ItemRepository = (*InMemoryInvoiceItemStore)(nil)

func NewInMemoryInvoiceItemStore() *InMemoryInvoiceItemStore {
	return &InMemoryInvoiceItemStore{
		InMemoryStore: NewInMemoryStore(func(item *invoice.InvoiceItem) *invoice.InvoiceItem {
			c := *item
			return &c
		}),
	}
}

func (s *InMemoryInvoiceItemStore) CreateMany(ctx context.Context, items []*invoice.InvoiceItem) error {
	if s.FailCreateMany != nil {
		return s.FailCreateMany
	}

	for _, item := range items {
		clash := s.InMemoryStore.Count(ctx, func(_ context.Context, other *invoice.InvoiceItem) bool {
			return other.InvoiceID == item.InvoiceID && other.SortOrder == item.SortOrder
		})
		if clash > 0 {
			return ierr.NewError("duplicate item sort order").
				WithHintf("Invoice %s already has an item at position %d", item.InvoiceID, item.SortOrder).
				Mark(ierr.ErrAlreadyExists)
		}
		if err := s.InMemoryStore.Create(ctx, item.ID, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryInvoiceItemStore) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*invoice.InvoiceItem, error) {
	return s.InMemoryStore.List(ctx,
		func(ctx context.Context, item *invoice.InvoiceItem) bool {
			return item.InvoiceID == invoiceID && CheckFreelancerFilter(ctx, item.FreelancerID)
		},
		func(a, b *invoice.InvoiceItem) bool {
			return a.SortOrder < b.SortOrder
		},
	), nil
}

func (s *InMemoryInvoiceItemStore) DeleteByInvoiceID(ctx context.Context, invoiceID string) error {
	items, _ := s.ListByInvoiceID(ctx, invoiceID)
	for _, item := range items {
		if err := s.InMemoryStore.Delete(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

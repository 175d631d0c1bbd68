package testutil

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
)

// InMemoryServiceStore implements billable.Repository
type InMemoryServiceStore struct {
	*InMemoryStore[*billable.Service]
	locks *rowLocks
}

var _ billable.Repository = (*InMemoryServiceStore)(nil)

func NewInMemoryServiceStore() *InMemoryServiceStore {
	return &InMemoryServiceStore{
		InMemoryStore: NewInMemoryStore(copyService),
		locks:         newRowLocks(DefaultLockTimeout),
	}
}

func copyService(svc *billable.Service) *billable.Service {
	if svc == nil {
		return nil
	}
	c := *svc
	if svc.NextBillingDate != nil {
		c.NextBillingDate = lo.ToPtr(*svc.NextBillingDate)
	}
	if svc.LastBilledAt != nil {
		c.LastBilledAt = lo.ToPtr(*svc.LastBilledAt)
	}
	if svc.EndDate != nil {
		c.EndDate = lo.ToPtr(*svc.EndDate)
	}
	return &c
}

func serviceNotFound(id string) error {
	return ierr.NewErrorf("service %s not found", id).
		WithHintf("service %s not found", id).
		WithReportableDetails(map[string]any{
			"service_id": id,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryServiceStore) Create(ctx context.Context, svc *billable.Service) error {
	return s.InMemoryStore.Create(ctx, svc.ID, svc)
}

func (s *InMemoryServiceStore) Get(ctx context.Context, id string) (*billable.Service, error) {
	svc, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !visible(ctx, svc.BaseModel) {
		return nil, serviceNotFound(id)
	}
	return svc, nil
}

func (s *InMemoryServiceStore) GetForUpdate(ctx context.Context, id string) (*billable.Service, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.locks.acquire(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *InMemoryServiceStore) Update(ctx context.Context, svc *billable.Service) error {
	existing, err := s.Get(ctx, svc.ID)
	if err != nil {
		return err
	}

	updated := copyService(svc)
	updated.BaseModel.FreelancerID = existing.FreelancerID
	updated.BaseModel.CreatedAt = existing.CreatedAt
	return s.InMemoryStore.Update(ctx, svc.ID, updated)
}

func (s *InMemoryServiceStore) List(ctx context.Context, filter *types.ServiceFilter) ([]*billable.Service, error) {
	if filter == nil {
		filter = types.NewServiceFilter()
	}

	items := s.InMemoryStore.List(ctx, serviceFilterFn(filter), func(a, b *billable.Service) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return paginate(items, filter.QueryFilter), nil
}

func (s *InMemoryServiceStore) Count(ctx context.Context, filter *types.ServiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewServiceFilter()
	}
	return s.InMemoryStore.Count(ctx, serviceFilterFn(filter)), nil
}

func (s *InMemoryServiceStore) ListEligible(ctx context.Context, asOf time.Time) ([]*billable.Service, error) {
	freelancerID := types.GetFreelancerID(ctx)

	return s.InMemoryStore.List(ctx,
		func(_ context.Context, svc *billable.Service) bool {
			if freelancerID != "" && svc.FreelancerID != freelancerID {
				return false
			}
			return svc.Status == types.StatusPublished &&
				svc.ServiceStatus == types.ServiceStatusActive &&
				svc.IsActive &&
				svc.NextBillingDate != nil &&
				!svc.NextBillingDate.After(asOf)
		},
		func(a, b *billable.Service) bool {
			if !a.NextBillingDate.Equal(*b.NextBillingDate) {
				return a.NextBillingDate.Before(*b.NextBillingDate)
			}
			return a.ID < b.ID
		},
	), nil
}

func serviceFilterFn(filter *types.ServiceFilter) FilterFunc[*billable.Service] {
	return func(ctx context.Context, svc *billable.Service) bool {
		if !visible(ctx, svc.BaseModel) {
			return false
		}
		if len(filter.ServiceIDs) > 0 && !lo.Contains(filter.ServiceIDs, svc.ID) {
			return false
		}
		if filter.ClientID != "" && svc.ClientID != filter.ClientID {
			return false
		}
		if len(filter.ServiceStatus) > 0 && !lo.Contains(filter.ServiceStatus, svc.ServiceStatus) {
			return false
		}
		if filter.RecurringOnly && svc.Frequency == types.BillingFrequencyOneTime {
			return false
		}
		if filter.ActiveOnly && !svc.IsActive {
			return false
		}
		return true
	}
}

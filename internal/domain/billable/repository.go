package billable

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/types"
)

// Repository defines the interface for service persistence operations
type Repository interface {
	Create(ctx context.Context, service *Service) error
	Get(ctx context.Context, id string) (*Service, error)

	// GetForUpdate locks the service row until the transaction in ctx ends
	GetForUpdate(ctx context.Context, id string) (*Service, error)

	Update(ctx context.Context, service *Service) error
	List(ctx context.Context, filter *types.ServiceFilter) ([]*Service, error)
	Count(ctx context.Context, filter *types.ServiceFilter) (int, error)

	// ListEligible returns active services whose next billing date is at or before asOf,
	// earliest first. It is scoped to the freelancer in ctx when there is one, otherwise
	// it spans every freelancer.
	ListEligible(ctx context.Context, asOf time.Time) ([]*Service, error)
}

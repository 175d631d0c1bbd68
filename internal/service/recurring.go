package service

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	"github.com/freelanceflow/freelanceflow/internal/retry"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
)

// RecurringService manages billable services and selects the ones due for billing
type RecurringService interface {
	CreateService(ctx context.Context, req dto.CreateServiceRequest) (*dto.ServiceResponse, error)
	GetService(ctx context.Context, id string) (*dto.ServiceResponse, error)
	UpdateService(ctx context.Context, id string, req dto.UpdateServiceRequest) (*dto.ServiceResponse, error)
	ListServices(ctx context.Context, filter *types.ServiceFilter) (*dto.ListServicesResponse, error)

	// ListRecurringServices lists active services with a recurring frequency
	ListRecurringServices(ctx context.Context, filter *types.ServiceFilter) (*dto.ListServicesResponse, error)

	// SelectEligibleServices returns the active services whose next billing date is at or
	// before asOf, earliest first. It only selects; nothing is billed or advanced.
	SelectEligibleServices(ctx context.Context, asOf time.Time) ([]*billable.Service, error)

	GetServiceAmounts(ctx context.Context, id string) (*dto.ServiceAmountsResponse, error)

	// AdvanceBillingCycle records a successful bill of the service. Callers invoke it only
	// after the invoice for the cycle has been created.
	AdvanceBillingCycle(ctx context.Context, id string, billedAt time.Time) (*dto.ServiceResponse, error)
}

type recurringService struct {
	ServiceParams
}

func NewRecurringService(params ServiceParams) RecurringService {
	return &recurringService{ServiceParams: params}
}

func (s *recurringService) CreateService(ctx context.Context, req dto.CreateServiceRequest) (*dto.ServiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc := req.ToService(ctx)
	if svc.Currency == "" {
		setting, err := getOrCreateSettings(ctx, s.ServiceParams)
		if err != nil {
			return nil, err
		}
		svc.Currency = setting.BaseCurrency
	}

	svc.Normalize()
	if err := svc.Validate(); err != nil {
		return nil, err
	}

	if err := s.ServiceRepo.Create(ctx, svc); err != nil {
		s.Logger.Errorw("failed to create service",
			"client_id", svc.ClientID,
			"error", err,
		)
		return nil, err
	}

	s.Logger.Infow("created service",
		"service_id", svc.ID,
		"frequency", svc.Frequency,
		"next_billing_date", svc.NextBillingDate,
	)
	return dto.NewServiceResponse(svc)
}

func (s *recurringService) GetService(ctx context.Context, id string) (*dto.ServiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}

	svc, err := s.ServiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewServiceResponse(svc)
}

func (s *recurringService) UpdateService(ctx context.Context, id string, req dto.UpdateServiceRequest) (*dto.ServiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var svc *billable.Service
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.ServiceRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		req.ApplyTo(current)
		current.Normalize()
		if err := current.Validate(); err != nil {
			return err
		}
		current.UpdatedAt = s.now()

		if err := s.ServiceRepo.Update(txCtx, current); err != nil {
			return err
		}
		svc = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto.NewServiceResponse(svc)
}

func (s *recurringService) ListServices(ctx context.Context, filter *types.ServiceFilter) (*dto.ListServicesResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewServiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	services, err := s.ServiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.ServiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.ServiceResponse, 0, len(services))
	for _, svc := range services {
		resp, err := dto.NewServiceResponse(svc)
		if err != nil {
			return nil, err
		}
		items = append(items, resp)
	}

	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *recurringService) ListRecurringServices(ctx context.Context, filter *types.ServiceFilter) (*dto.ListServicesResponse, error) {
	if filter == nil {
		filter = types.NewServiceFilter()
	}
	filter.RecurringOnly = true
	filter.ActiveOnly = true
	filter.ServiceStatus = []types.ServiceStatus{types.ServiceStatusActive}
	return s.ListServices(ctx, filter)
}

func (s *recurringService) SelectEligibleServices(ctx context.Context, asOf time.Time) ([]*billable.Service, error) {
	services, err := s.ServiceRepo.ListEligible(ctx, asOf)
	if err != nil {
		return nil, err
	}

	eligible := lo.Filter(services, func(svc *billable.Service, _ int) bool {
		return svc.IsEligible(asOf)
	})

	s.Logger.Debugw("selected services eligible for billing",
		"as_of", asOf,
		"count", len(eligible),
	)
	return eligible, nil
}

func (s *recurringService) GetServiceAmounts(ctx context.Context, id string) (*dto.ServiceAmountsResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}

	svc, err := s.ServiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	amounts, err := svc.Amounts()
	if err != nil {
		return nil, err
	}
	return &dto.ServiceAmountsResponse{
		ServiceID:      svc.ID,
		Currency:       svc.Currency,
		ServiceAmounts: amounts,
	}, nil
}

func (s *recurringService) AdvanceBillingCycle(ctx context.Context, id string, billedAt time.Time) (*dto.ServiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}

	var svc *billable.Service
	err := retry.Do(ctx, s.retryConfig(), s.Logger, "advance_billing_cycle", func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(txCtx context.Context) error {
			current, err := s.ServiceRepo.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}

			if err := current.AdvanceBillingCycle(billedAt.UTC()); err != nil {
				return err
			}
			current.UpdatedAt = s.now()

			if err := s.ServiceRepo.Update(txCtx, current); err != nil {
				return err
			}
			svc = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("advanced service billing cycle",
		"service_id", svc.ID,
		"billing_count", svc.BillingCount,
		"next_billing_date", svc.NextBillingDate,
		"service_status", svc.ServiceStatus,
	)
	return dto.NewServiceResponse(svc)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

const serviceColumns = `id, freelancer_id, client_id, project_id, name, description, amount, currency,
	has_tax, tax_rate, tax_type, frequency, start_date, end_date, next_billing_date, last_billed_at,
	service_status, is_active, billing_count, status, created_at, updated_at`

var serviceSortColumns = []string{"created_at", "updated_at", "name", "start_date", "next_billing_date", "amount"}

type serviceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewServiceRepository(db *postgres.DB, logger *logger.Logger) billable.Repository {
	return &serviceRepository{db: db, logger: logger}
}

func (r *serviceRepository) Create(ctx context.Context, s *billable.Service) error {
	query := `
		INSERT INTO services (
			id, freelancer_id, client_id, project_id, name, description, amount, currency,
			has_tax, tax_rate, tax_type, frequency, start_date, end_date, next_billing_date, last_billed_at,
			service_status, is_active, billing_count, status, created_at, updated_at
		) VALUES (
			:id, :freelancer_id, :client_id, :project_id, :name, :description, :amount, :currency,
			:has_tax, :tax_rate, :tax_type, :frequency, :start_date, :end_date, :next_billing_date, :last_billed_at,
			:service_status, :is_active, :billing_count, :status, :created_at, :updated_at
		)`

	r.logger.Debugw("creating service",
		"service_id", s.ID,
		"frequency", s.Frequency,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return postgres.WrapError(err, "failed to create service")
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id string) (*billable.Service, error) {
	return r.get(ctx, id, "")
}

func (r *serviceRepository) GetForUpdate(ctx context.Context, id string) (*billable.Service, error) {
	if _, ok := postgres.GetTx(ctx); !ok {
		return nil, ierr.NewError("row lock requested outside a transaction").
			WithHint("Service lock requires a transaction").
			Mark(ierr.ErrInvalidOperation)
	}
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *serviceRepository) get(ctx context.Context, id, suffix string) (*billable.Service, error) {
	query := "SELECT " + serviceColumns + " FROM services WHERE id = $1 AND freelancer_id = $2 AND status = $3" + suffix

	var s billable.Service
	err := r.db.GetQuerier(ctx).GetContext(ctx, &s, query, id, types.GetFreelancerID(ctx), types.StatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierr.WithError(err).
			WithHintf("Service %s not found", id).
			WithReportableDetails(map[string]any{
				"service_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, postgres.WrapError(err, "failed to get service")
	}
	return &s, nil
}

func (r *serviceRepository) Update(ctx context.Context, s *billable.Service) error {
	query := `
		UPDATE services SET
			client_id = :client_id,
			project_id = :project_id,
			name = :name,
			description = :description,
			amount = :amount,
			currency = :currency,
			has_tax = :has_tax,
			tax_rate = :tax_rate,
			tax_type = :tax_type,
			frequency = :frequency,
			start_date = :start_date,
			end_date = :end_date,
			next_billing_date = :next_billing_date,
			last_billed_at = :last_billed_at,
			service_status = :service_status,
			is_active = :is_active,
			billing_count = :billing_count,
			updated_at = :updated_at
		WHERE id = :id AND freelancer_id = :freelancer_id AND status = 'published'`

	r.logger.Debugw("updating service",
		"service_id", s.ID,
		"service_status", s.ServiceStatus,
	)

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s)
	if err != nil {
		return postgres.WrapError(err, "failed to update service")
	}
	return expectAffected(result, "service", s.ID)
}

func (r *serviceRepository) List(ctx context.Context, filter *types.ServiceFilter) ([]*billable.Service, error) {
	if filter == nil {
		filter = types.NewServiceFilter()
	}

	query, args, err := r.where(ctx, filter).build("SELECT "+serviceColumns+" FROM services",
		orderAndPage(filter.QueryFilter, serviceSortColumns, "id"))
	if err != nil {
		return nil, err
	}

	var services []*billable.Service
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &services, query, args...); err != nil {
		return nil, postgres.WrapError(err, "failed to list services")
	}
	return services, nil
}

func (r *serviceRepository) Count(ctx context.Context, filter *types.ServiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewServiceFilter()
	}

	query, args, err := r.where(ctx, filter).build("SELECT COUNT(*) FROM services", "")
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, postgres.WrapError(err, "failed to count services")
	}
	return count, nil
}

func (r *serviceRepository) ListEligible(ctx context.Context, asOf time.Time) ([]*billable.Service, error) {
	w := &whereBuilder{}
	if freelancerID := types.GetFreelancerID(ctx); freelancerID != "" {
		w.add("freelancer_id = ?", freelancerID)
	}
	w.add("status = ?", types.StatusPublished)
	w.add("service_status = ?", types.ServiceStatusActive)
	w.add("is_active")
	w.add("next_billing_date IS NOT NULL")
	w.add("next_billing_date <= ?", asOf)

	query, args, err := w.build("SELECT "+serviceColumns+" FROM services", " ORDER BY next_billing_date ASC, id ASC")
	if err != nil {
		return nil, err
	}

	var services []*billable.Service
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &services, query, args...); err != nil {
		return nil, postgres.WrapError(err, "failed to list services ready for billing")
	}
	return services, nil
}

func (r *serviceRepository) where(ctx context.Context, filter *types.ServiceFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("freelancer_id = ?", types.GetFreelancerID(ctx))
	w.add("status = ?", types.StatusPublished)

	if len(filter.ServiceIDs) > 0 {
		w.add("id IN (?)", filter.ServiceIDs)
	}
	if filter.ClientID != "" {
		w.add("client_id = ?", filter.ClientID)
	}
	if len(filter.ServiceStatus) > 0 {
		statuses := make([]string, 0, len(filter.ServiceStatus))
		for _, s := range filter.ServiceStatus {
			statuses = append(statuses, string(s))
		}
		w.add("service_status IN (?)", statuses)
	}
	if filter.RecurringOnly {
		w.add("frequency <> ?", types.BillingFrequencyOneTime)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	return w
}

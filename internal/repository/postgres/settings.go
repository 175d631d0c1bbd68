package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

const settingsColumns = `id, freelancer_id, invoice_prefix, next_invoice_number, invoice_year,
	invoice_due_days, base_currency, default_tax_rate, status, created_at, updated_at`

type settingsRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSettingsRepository(db *postgres.DB, logger *logger.Logger) settings.Repository {
	return &settingsRepository{db: db, logger: logger}
}

func (r *settingsRepository) Create(ctx context.Context, s *settings.FreelancerSetting) error {
	query := `
		INSERT INTO freelancer_settings (
			id, freelancer_id, invoice_prefix, next_invoice_number, invoice_year,
			invoice_due_days, base_currency, default_tax_rate, status, created_at, updated_at
		) VALUES (
			:id, :freelancer_id, :invoice_prefix, :next_invoice_number, :invoice_year,
			:invoice_due_days, :base_currency, :default_tax_rate, :status, :created_at, :updated_at
		)`

	r.logger.Debugw("creating freelancer settings", "freelancer_id", s.FreelancerID)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return postgres.WrapError(err, "failed to create freelancer settings")
	}
	return nil
}

func (r *settingsRepository) Get(ctx context.Context) (*settings.FreelancerSetting, error) {
	return r.get(ctx, "")
}

// GetForUpdate takes the row lock that serializes invoice number allocation for a freelancer.
// Concurrent callers block here until the holder's transaction ends, bounded by lock_timeout.
func (r *settingsRepository) GetForUpdate(ctx context.Context) (*settings.FreelancerSetting, error) {
	if _, ok := postgres.GetTx(ctx); !ok {
		return nil, ierr.NewError("row lock requested outside a transaction").
			WithHint("Settings lock requires a transaction").
			Mark(ierr.ErrInvalidOperation)
	}
	return r.get(ctx, " FOR UPDATE")
}

func (r *settingsRepository) get(ctx context.Context, suffix string) (*settings.FreelancerSetting, error) {
	freelancerID := types.GetFreelancerID(ctx)
	query := "SELECT " + settingsColumns + " FROM freelancer_settings WHERE freelancer_id = $1 AND status = $2" + suffix

	var s settings.FreelancerSetting
	err := r.db.GetQuerier(ctx).GetContext(ctx, &s, query, freelancerID, types.StatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierr.WithError(err).
			WithHint("Freelancer settings not found").
			WithReportableDetails(map[string]any{
				"freelancer_id": freelancerID,
			}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, postgres.WrapError(err, "failed to get freelancer settings")
	}
	return &s, nil
}

func (r *settingsRepository) Update(ctx context.Context, s *settings.FreelancerSetting) error {
	query := `
		UPDATE freelancer_settings SET
			invoice_prefix = :invoice_prefix,
			invoice_due_days = :invoice_due_days,
			base_currency = :base_currency,
			default_tax_rate = :default_tax_rate,
			updated_at = :updated_at
		WHERE id = :id AND freelancer_id = :freelancer_id`

	r.logger.Debugw("updating freelancer settings", "freelancer_id", s.FreelancerID)

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s)
	if err != nil {
		return postgres.WrapError(err, "failed to update freelancer settings")
	}
	return expectAffected(result, "settings", s.ID)
}

func (r *settingsRepository) UpdateSequence(ctx context.Context, s *settings.FreelancerSetting) error {
	query := `
		UPDATE freelancer_settings SET
			next_invoice_number = :next_invoice_number,
			invoice_year = :invoice_year,
			updated_at = :updated_at
		WHERE id = :id AND freelancer_id = :freelancer_id`

	r.logger.Debugw("advancing invoice sequence",
		"freelancer_id", s.FreelancerID,
		"invoice_year", s.InvoiceYear,
		"next_invoice_number", s.NextInvoiceNumber,
	)

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s)
	if err != nil {
		return postgres.WrapError(err, "failed to update invoice sequence")
	}
	return expectAffected(result, "settings", s.ID)
}

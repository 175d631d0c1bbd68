package postgres

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

type invoiceItemRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceItemRepository(db *postgres.DB, logger *logger.Logger) invoice.ItemRepository {
	return &invoiceItemRepository{db: db, logger: logger}
}

func (r *invoiceItemRepository) CreateMany(ctx context.Context, items []*invoice.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO invoice_items (
			id, freelancer_id, invoice_id, service_id, description, quantity, unit_price, total_price,
			service_period_start, service_period_end, is_recurring, notes, sort_order,
			status, created_at, updated_at
		) VALUES (
			:id, :freelancer_id, :invoice_id, :service_id, :description, :quantity, :unit_price, :total_price,
			:service_period_start, :service_period_end, :is_recurring, :notes, :sort_order,
			:status, :created_at, :updated_at
		)`

	r.logger.Debugw("creating invoice items",
		"invoice_id", items[0].InvoiceID,
		"count", len(items),
	)

	// sqlx expands a slice argument into a single multi-row insert
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, items); err != nil {
		return postgres.WrapError(err, "failed to create invoice items")
	}
	return nil
}

func (r *invoiceItemRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*invoice.InvoiceItem, error) {
	query := `
		SELECT id, freelancer_id, invoice_id, service_id, description, quantity, unit_price, total_price,
			service_period_start, service_period_end, is_recurring, notes, sort_order,
			status, created_at, updated_at
		FROM invoice_items
		WHERE invoice_id = $1 AND freelancer_id = $2 AND status = $3
		ORDER BY sort_order ASC`

	var items []*invoice.InvoiceItem
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query, invoiceID, types.GetFreelancerID(ctx), types.StatusPublished)
	if err != nil {
		return nil, postgres.WrapError(err, "failed to list invoice items")
	}
	return items, nil
}

func (r *invoiceItemRepository) DeleteByInvoiceID(ctx context.Context, invoiceID string) error {
	query := `DELETE FROM invoice_items WHERE invoice_id = $1 AND freelancer_id = $2`

	r.logger.Debugw("deleting invoice items", "invoice_id", invoiceID)

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, invoiceID, types.GetFreelancerID(ctx)); err != nil {
		return postgres.WrapError(err, "failed to delete invoice items")
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

const invoiceColumns = `id, freelancer_id, invoice_number, client_id, project_id, invoice_date, due_date,
	currency, exchange_rate, tax_rate, subtotal, tax_amount, total_amount, total_amount_base_currency,
	invoice_status, notes, sent_at, paid_at, status, created_at, updated_at`

var invoiceSortColumns = []string{"created_at", "updated_at", "invoice_date", "due_date", "invoice_number", "total_amount"}

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, freelancer_id, invoice_number, client_id, project_id, invoice_date, due_date,
			currency, exchange_rate, tax_rate, subtotal, tax_amount, total_amount, total_amount_base_currency,
			invoice_status, notes, sent_at, paid_at, status, created_at, updated_at
		) VALUES (
			:id, :freelancer_id, :invoice_number, :client_id, :project_id, :invoice_date, :due_date,
			:currency, :exchange_rate, :tax_rate, :subtotal, :tax_amount, :total_amount, :total_amount_base_currency,
			:invoice_status, :notes, :sent_at, :paid_at, :status, :created_at, :updated_at
		)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"freelancer_id", inv.FreelancerID,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv); err != nil {
		return postgres.WrapError(err, "failed to create invoice")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, false)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if _, ok := postgres.GetTx(ctx); !ok {
		return nil, ierr.NewError("row lock requested outside a transaction").
			WithHint("Invoice lock requires a transaction").
			Mark(ierr.ErrInvalidOperation)
	}
	return r.get(ctx, id, true)
}

func (r *invoiceRepository) get(ctx context.Context, id string, forUpdate bool) (*invoice.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE id = $1 AND freelancer_id = $2 AND status = $3"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var inv invoice.Invoice
	err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, id, types.GetFreelancerID(ctx), types.StatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierr.WithError(err).
			WithHintf("Invoice %s not found", id).
			WithReportableDetails(map[string]any{
				"invoice_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, postgres.WrapError(err, "failed to get invoice")
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			client_id = :client_id,
			project_id = :project_id,
			invoice_date = :invoice_date,
			due_date = :due_date,
			currency = :currency,
			exchange_rate = :exchange_rate,
			tax_rate = :tax_rate,
			subtotal = :subtotal,
			tax_amount = :tax_amount,
			total_amount = :total_amount,
			total_amount_base_currency = :total_amount_base_currency,
			invoice_status = :invoice_status,
			notes = :notes,
			sent_at = :sent_at,
			paid_at = :paid_at,
			updated_at = :updated_at
		WHERE id = :id AND freelancer_id = :freelancer_id AND status = 'published'`

	r.logger.Debugw("updating invoice",
		"invoice_id", inv.ID,
		"invoice_status", inv.InvoiceStatus,
	)

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return postgres.WrapError(err, "failed to update invoice")
	}
	return expectAffected(result, "invoice", inv.ID)
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE invoices SET status = $1, updated_at = $2 WHERE id = $3 AND freelancer_id = $4 AND status = $5`

	r.logger.Debugw("archiving invoice", "invoice_id", id)

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusArchived, time.Now().UTC(), id, types.GetFreelancerID(ctx), types.StatusPublished)
	if err != nil {
		return postgres.WrapError(err, "failed to delete invoice")
	}
	return expectAffected(result, "invoice", id)
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	where := r.where(ctx, filter)
	query, args, err := where.build("SELECT "+invoiceColumns+" FROM invoices", orderAndPage(filter.QueryFilter, invoiceSortColumns, "id"))
	if err != nil {
		return nil, err
	}

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, postgres.WrapError(err, "failed to list invoices")
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	where := r.where(ctx, filter)
	query, args, err := where.build("SELECT COUNT(*) FROM invoices", "")
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, postgres.WrapError(err, "failed to count invoices")
	}
	return count, nil
}

func (r *invoiceRepository) where(ctx context.Context, filter *types.InvoiceFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("freelancer_id = ?", types.GetFreelancerID(ctx))
	w.add("status = ?", types.StatusPublished)

	if len(filter.InvoiceIDs) > 0 {
		w.add("id IN (?)", filter.InvoiceIDs)
	}
	if filter.ClientID != "" {
		w.add("client_id = ?", filter.ClientID)
	}
	if filter.ProjectID != "" {
		w.add("project_id = ?", filter.ProjectID)
	}
	if len(filter.InvoiceStatus) > 0 {
		statuses := make([]string, 0, len(filter.InvoiceStatus))
		for _, s := range filter.InvoiceStatus {
			statuses = append(statuses, string(s))
		}
		w.add("invoice_status IN (?)", statuses)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			w.add("invoice_date >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			w.add("invoice_date <= ?", *filter.EndTime)
		}
	}
	if filter.DueBefore != nil {
		w.add("due_date < ?", *filter.DueBefore)
	}
	return w
}

func expectAffected(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return postgres.WrapError(err, "failed to read affected rows")
	}
	if n == 0 {
		return ierr.NewErrorf("%s %s not found", entity, id).
			WithHintf("%s %s not found", entity, id).
			WithReportableDetails(map[string]any{
				entity + "_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

package service

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/retry"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	MarkInvoiceSent(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	MarkInvoicePaid(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	MarkInvoiceOverdue(ctx context.Context, id string, asOf time.Time) (*dto.InvoiceResponse, error)
	CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	IsOverdue(ctx context.Context, id string, asOf time.Time) (bool, error)
}

type invoiceService struct {
	ServiceParams
	sequencer InvoiceSequencer
}

func NewInvoiceService(params ServiceParams, sequencer InvoiceSequencer) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		sequencer:     sequencer,
	}
}

// CreateInvoice mints the invoice number and writes the invoice with its items in one
// transaction. A lock timeout on the freelancer's settings row is retried with backoff.
func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := retry.Do(ctx, s.retryConfig(), s.Logger, "create_invoice", func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(txCtx context.Context) error {
			created, err := s.createInvoice(txCtx, req)
			if err != nil {
				return err
			}
			inv = created
			return nil
		})
	})
	if err != nil {
		s.Logger.Errorw("failed to create invoice",
			"freelancer_id", types.GetFreelancerID(ctx),
			"client_id", req.ClientID,
			"error", err,
		)
		return nil, err
	}

	// the sequencer advanced the counter, so any cached settings are stale
	if s.Cache != nil {
		s.Cache.Delete(ctx, settingsCacheKey(ctx))
	}

	s.Logger.Infow("created invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"total_amount", inv.TotalAmount.String(),
	)
	s.publishEvent(ctx, types.EventInvoiceCreated, inv.ID, invoiceEventPayload(inv))

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) createInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*invoice.Invoice, error) {
	inv := req.ToInvoice(ctx)

	items, err := invoice.BuildItems(ctx, inv.ID, req.ItemInputs())
	if err != nil {
		return nil, err
	}

	alloc, err := s.sequencer.Allocate(ctx, inv.FreelancerID)
	if err != nil {
		return nil, err
	}
	s.applyDefaults(inv, req, alloc.Settings)

	inv.InvoiceNumber = alloc.InvoiceNumber
	inv.Items = items
	inv.Recalculate()

	if err := inv.Validate(); err != nil {
		return nil, err
	}

	if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.InvoiceItemRepo.CreateMany(ctx, inv.Items); err != nil {
		return nil, err
	}
	return inv, nil
}

// applyDefaults fills the fields the request left empty from the freelancer's settings
func (s *invoiceService) applyDefaults(inv *invoice.Invoice, req dto.CreateInvoiceRequest, setting *settings.FreelancerSetting) {
	if req.InvoiceDate == nil {
		inv.InvoiceDate = startOfDay(s.now())
	}
	if inv.DueDate == nil {
		due := inv.InvoiceDate.AddDate(0, 0, setting.InvoiceDueDays)
		inv.DueDate = &due
	}
	if inv.Currency == "" {
		inv.Currency = setting.BaseCurrency
	}
	if req.ExchangeRate == nil {
		inv.ExchangeRate = decimal.NewFromInt(1)
	}
	if req.TaxRate == nil {
		inv.TaxRate = setting.DefaultTaxRate
	}
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Items, err = s.InvoiceItemRepo.ListByInvoiceID(ctx, id); err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Items, err = s.InvoiceItemRepo.ListByInvoiceID(ctx, inv.ID); err != nil {
			return nil, err
		}
		items = append(items, dto.NewInvoiceResponse(inv))
	}

	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

// UpdateInvoice applies the scalar changes and, when items are supplied, replaces the whole
// item set and recomputes all derived money fields together. Without items the stored
// totals are left as they are.
func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		inv           *invoice.Invoice
		statusChanged bool
	)
	err := retry.Do(ctx, s.retryConfig(), s.Logger, "update_invoice", func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(txCtx context.Context) error {
			current, err := s.InvoiceRepo.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}

			req.ApplyTo(current)

			statusChanged = false
			if req.InvoiceStatus != nil && *req.InvoiceStatus != current.InvoiceStatus {
				if err := s.transition(current, *req.InvoiceStatus); err != nil {
					return err
				}
				statusChanged = true
			}

			inputs := req.ItemInputs()
			replaceItems := inputs != nil
			if replaceItems {
				items, err := invoice.BuildItems(txCtx, current.ID, inputs)
				if err != nil {
					return err
				}
				current.Items = items
				current.Recalculate()
			}

			if err := current.Validate(); err != nil {
				return err
			}
			current.UpdatedAt = s.now()

			if err := s.InvoiceRepo.Update(txCtx, current); err != nil {
				return err
			}

			if replaceItems {
				if err := s.InvoiceItemRepo.DeleteByInvoiceID(txCtx, current.ID); err != nil {
					return err
				}
				if err := s.InvoiceItemRepo.CreateMany(txCtx, current.Items); err != nil {
					return err
				}
			} else if current.Items, err = s.InvoiceItemRepo.ListByInvoiceID(txCtx, current.ID); err != nil {
				return err
			}

			inv = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, types.EventInvoiceUpdated, inv.ID, invoiceEventPayload(inv))
	if statusChanged {
		s.publishStatusEvent(ctx, inv)
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return err
	}

	if err := s.InvoiceRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.Logger.Infow("deleted invoice", "invoice_id", id)
	return nil
}

// MarkInvoiceSent sets the invoice to sent and stamps sentAt. It is refused for paid and
// cancelled invoices; re-sending a sent or overdue invoice refreshes sentAt.
func (s *invoiceService) MarkInvoiceSent(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	return s.changeStatus(ctx, id, "mark_invoice_sent", func(inv *invoice.Invoice) error {
		if err := inv.CanMarkSent(); err != nil {
			return err
		}
		now := s.now()
		inv.InvoiceStatus = types.InvoiceStatusSent
		inv.SentAt = &now
		return nil
	})
}

func (s *invoiceService) MarkInvoicePaid(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	return s.changeStatus(ctx, id, "mark_invoice_paid", func(inv *invoice.Invoice) error {
		return s.transition(inv, types.InvoiceStatusPaid)
	})
}

// MarkInvoiceOverdue moves a sent invoice to overdue once its due date has passed as of asOf
func (s *invoiceService) MarkInvoiceOverdue(ctx context.Context, id string, asOf time.Time) (*dto.InvoiceResponse, error) {
	return s.changeStatus(ctx, id, "mark_invoice_overdue", func(inv *invoice.Invoice) error {
		if err := inv.InvoiceStatus.ValidateTransition(types.InvoiceStatusOverdue); err != nil {
			return err
		}
		if !inv.IsOverdue(asOf) {
			return ierr.NewError("invoice is not past due").
				WithHint("Only invoices past their due date can be marked overdue").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"due_date":   inv.DueDate,
					"as_of":      asOf,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		return s.transition(inv, types.InvoiceStatusOverdue)
	})
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	return s.changeStatus(ctx, id, "cancel_invoice", func(inv *invoice.Invoice) error {
		return s.transition(inv, types.InvoiceStatusCancelled)
	})
}

func (s *invoiceService) IsOverdue(ctx context.Context, id string, asOf time.Time) (bool, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return false, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return inv.IsOverdue(asOf), nil
}

// changeStatus locks the invoice, lets apply move it to its new status and persists it.
// A rejected transition leaves the stored invoice untouched.
func (s *invoiceService) changeStatus(ctx context.Context, id, op string, apply func(inv *invoice.Invoice) error) (*dto.InvoiceResponse, error) {
	if err := types.ValidateFreelancerContext(ctx); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := retry.Do(ctx, s.retryConfig(), s.Logger, op, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(txCtx context.Context) error {
			current, err := s.InvoiceRepo.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}

			if err := apply(current); err != nil {
				return err
			}
			current.UpdatedAt = s.now()

			if err := s.InvoiceRepo.Update(txCtx, current); err != nil {
				return err
			}
			if current.Items, err = s.InvoiceItemRepo.ListByInvoiceID(txCtx, current.ID); err != nil {
				return err
			}
			inv = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice status changed",
		"invoice_id", inv.ID,
		"invoice_status", inv.InvoiceStatus,
	)
	s.publishStatusEvent(ctx, inv)
	return dto.NewInvoiceResponse(inv), nil
}

// transition applies one edge of the invoice state machine and stamps its timestamp
func (s *invoiceService) transition(inv *invoice.Invoice, next types.InvoiceStatus) error {
	if err := inv.InvoiceStatus.ValidateTransition(next); err != nil {
		return ierr.WithError(err).
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrInvalidStateTransition)
	}

	now := s.now()
	switch next {
	case types.InvoiceStatusSent:
		inv.SentAt = &now
	case types.InvoiceStatusPaid:
		inv.PaidAt = &now
	}
	inv.InvoiceStatus = next
	return nil
}

func (s *invoiceService) publishStatusEvent(ctx context.Context, inv *invoice.Invoice) {
	names := map[types.InvoiceStatus]types.BillingEventName{
		types.InvoiceStatusSent:      types.EventInvoiceSent,
		types.InvoiceStatusPaid:      types.EventInvoicePaid,
		types.InvoiceStatusOverdue:   types.EventInvoiceOverdue,
		types.InvoiceStatusCancelled: types.EventInvoiceCancelled,
	}
	if name, ok := names[inv.InvoiceStatus]; ok {
		s.publishEvent(ctx, name, inv.ID, invoiceEventPayload(inv))
	}
}

func invoiceEventPayload(inv *invoice.Invoice) map[string]interface{} {
	return map[string]interface{}{
		"invoice_number": inv.InvoiceNumber,
		"client_id":      inv.ClientID,
		"invoice_status": inv.InvoiceStatus,
		"currency":       inv.Currency,
		"total_amount":   inv.TotalAmount,
		"item_count":     len(inv.Items),
		"service_ids": lo.FilterMap(inv.Items, func(item *invoice.InvoiceItem, _ int) (string, bool) {
			return lo.FromPtr(item.ServiceID), item.ServiceID != nil
		}),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

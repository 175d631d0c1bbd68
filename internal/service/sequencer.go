package service

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

// Allocation is an invoice number together with the locked settings it was minted from
type Allocation struct {
	InvoiceNumber string
	Settings      *settings.FreelancerSetting
}

// InvoiceSequencer mints year scoped invoice numbers per freelancer
type InvoiceSequencer interface {
	// NextInvoiceNumber returns the next number for the freelancer and advances the counter.
	// When ctx carries a transaction the mint joins it and is undone if that transaction rolls back.
	NextInvoiceNumber(ctx context.Context, freelancerID string) (string, error)

	// Allocate is NextInvoiceNumber that also returns the settings row as read under the lock
	Allocate(ctx context.Context, freelancerID string) (*Allocation, error)
}

type invoiceSequencer struct {
	ServiceParams
}

func NewInvoiceSequencer(params ServiceParams) InvoiceSequencer {
	return &invoiceSequencer{ServiceParams: params}
}

func (s *invoiceSequencer) NextInvoiceNumber(ctx context.Context, freelancerID string) (string, error) {
	alloc, err := s.Allocate(ctx, freelancerID)
	if err != nil {
		return "", err
	}
	return alloc.InvoiceNumber, nil
}

func (s *invoiceSequencer) Allocate(ctx context.Context, freelancerID string) (*Allocation, error) {
	if freelancerID == "" {
		return nil, ierr.NewError("freelancer_id is required").
			WithHint("Invoice numbers are allocated per freelancer").
			Mark(ierr.ErrValidation)
	}
	ctx = types.SetFreelancerID(ctx, freelancerID)

	var alloc *Allocation
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		setting, err := s.lockSettings(txCtx)
		if err != nil {
			return err
		}

		now := s.now()
		if setting.RollYear(now.Year()) {
			s.Logger.Infow("invoice sequence reset for new year",
				"freelancer_id", freelancerID,
				"invoice_year", setting.InvoiceYear,
			)
		}

		number := setting.FormatInvoiceNumber()
		setting.NextInvoiceNumber++
		setting.UpdatedAt = now

		if err := s.SettingsRepo.UpdateSequence(txCtx, setting); err != nil {
			return err
		}

		alloc = &Allocation{InvoiceNumber: number, Settings: setting}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Debugw("allocated invoice number",
		"freelancer_id", freelancerID,
		"invoice_number", alloc.InvoiceNumber,
	)
	return alloc, nil
}

// lockSettings takes the freelancer's settings row lock, creating the row on first use
func (s *invoiceSequencer) lockSettings(ctx context.Context) (*settings.FreelancerSetting, error) {
	setting, err := s.SettingsRepo.GetForUpdate(ctx)
	if err == nil {
		return setting, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	if err := createDefaultSettings(ctx, s.ServiceParams); err != nil {
		return nil, err
	}
	return s.SettingsRepo.GetForUpdate(ctx)
}

const maxDefaultPrefixAttempts = 5

// createDefaultSettings inserts the default settings row for the freelancer in ctx.
// A row created concurrently by another request is not an error. The insert runs in its
// own savepoint so a unique violation does not abort an enclosing transaction.
// The default prefix is derived from the freelancer ID; when another freelancer already
// holds it, the next salted derivation is tried.
func createDefaultSettings(ctx context.Context, p ServiceParams) error {
	cfg := p.Config.Billing
	freelancerID := types.GetFreelancerID(ctx)

	for attempt := 0; attempt < maxDefaultPrefixAttempts; attempt++ {
		prefix := settings.DefaultInvoicePrefixFor(cfg.DefaultInvoicePrefix, freelancerID, attempt)
		setting := settings.NewDefaultSetting(ctx, prefix, cfg.DefaultCurrency, cfg.DefaultDueDays, p.now())

		err := p.DB.WithTx(ctx, func(txCtx context.Context) error {
			return p.SettingsRepo.Create(txCtx, setting)
		})
		if err == nil || !ierr.IsAlreadyExists(err) {
			return err
		}

		if _, getErr := p.SettingsRepo.Get(ctx); getErr == nil {
			return nil
		}
		p.Logger.Warnw("default invoice prefix already taken",
			"freelancer_id", freelancerID,
			"invoice_prefix", prefix,
			"attempt", attempt,
		)
	}

	return ierr.NewError("no default invoice prefix available").
		WithHint("Could not assign a default invoice prefix, please retry").
		WithReportableDetails(map[string]any{
			"freelancer_id": freelancerID,
		}).
		Mark(ierr.ErrAlreadyExists)
}

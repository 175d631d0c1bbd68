package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/sentry"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

const defaultRunnerConcurrency = 4

// BillingRunner invoices every service that is due and advances its billing cycle
type BillingRunner interface {
	// RunOnce bills the services eligible as of asOf. Freelancers are processed in parallel,
	// the services of one freelancer one after another in due order. A failing service is
	// counted and logged without stopping the run. When ctx carries a freelancer only that
	// freelancer's services are billed.
	RunOnce(ctx context.Context, asOf time.Time) (*dto.BillingRunResponse, error)
}

type billingRunner struct {
	ServiceParams
	invoiceService   InvoiceService
	recurringService RecurringService
	sentry           *sentry.Service
	limiter          *rate.Limiter
	concurrency      int
}

func NewBillingRunner(
	params ServiceParams,
	invoiceService InvoiceService,
	recurringService RecurringService,
	sentrySvc *sentry.Service,
) BillingRunner {
	cfg := params.Config.Billing

	limit := rate.Inf
	if cfg.RunnerRateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RunnerRateLimitPerSec)
	}
	burst := cfg.RunnerBurst
	if burst < 1 {
		burst = 1
	}
	concurrency := cfg.RunnerConcurrency
	if concurrency < 1 {
		concurrency = defaultRunnerConcurrency
	}

	return &billingRunner{
		ServiceParams:    params,
		invoiceService:   invoiceService,
		recurringService: recurringService,
		sentry:           sentrySvc,
		limiter:          rate.NewLimiter(limit, burst),
		concurrency:      concurrency,
	}
}

type billingRunResult struct {
	mu         sync.Mutex
	processed  int
	billed     int
	failed     int
	invoiceIDs []string
}

func (r *billingRunResult) record(invoiceID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processed++
	if err != nil {
		r.failed++
		return
	}
	r.billed++
	r.invoiceIDs = append(r.invoiceIDs, invoiceID)
}

func (r *billingRunner) RunOnce(ctx context.Context, asOf time.Time) (*dto.BillingRunResponse, error) {
	asOf = asOf.UTC()

	if r.sentry != nil {
		span, spanCtx := r.sentry.StartBillingRunSpan(ctx, asOf)
		if span != nil {
			defer span.Finish()
		}
		ctx = spanCtx
	}

	eligible, err := r.recurringService.SelectEligibleServices(ctx, asOf)
	if err != nil {
		return nil, err
	}

	freelancerIDs := lo.Uniq(lo.Map(eligible, func(svc *billable.Service, _ int) string {
		return svc.FreelancerID
	}))
	byFreelancer := lo.GroupBy(eligible, func(svc *billable.Service) string {
		return svc.FreelancerID
	})

	r.Logger.Infow("starting recurring billing run",
		"as_of", asOf,
		"services", len(eligible),
		"freelancers", len(freelancerIDs),
	)

	result := &billingRunResult{}
	p := pool.New().WithMaxGoroutines(r.concurrency)
	for _, freelancerID := range freelancerIDs {
		services := byFreelancer[freelancerID]
		fctx := types.SetFreelancerID(ctx, freelancerID)

		p.Go(func() {
			for _, svc := range services {
				invoiceID, err := r.billService(fctx, svc, asOf)
				if err != nil {
					r.Logger.Errorw("failed to bill service",
						"freelancer_id", svc.FreelancerID,
						"service_id", svc.ID,
						"error", err,
					)
					if r.sentry != nil {
						r.sentry.CaptureException(err)
					}
				}
				result.record(invoiceID, err)
			}
		})
	}
	p.Wait()

	r.Logger.Infow("finished recurring billing run",
		"as_of", asOf,
		"processed", result.processed,
		"billed", result.billed,
		"failed", result.failed,
	)

	return &dto.BillingRunResponse{
		AsOf:       asOf,
		Processed:  result.processed,
		Billed:     result.billed,
		Failed:     result.failed,
		InvoiceIDs: lo.Ternary(result.invoiceIDs == nil, []string{}, result.invoiceIDs),
	}, nil
}

// billService invoices one cycle of svc and then advances it. The cycle is advanced only
// once the invoice exists.
func (r *billingRunner) billService(ctx context.Context, svc *billable.Service, asOf time.Time) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", ierr.WithError(err).
			WithHint("Billing run was cancelled").
			Mark(ierr.ErrSystem)
	}

	req, err := invoiceRequestForService(svc, asOf)
	if err != nil {
		return "", err
	}

	inv, err := r.invoiceService.CreateInvoice(ctx, *req)
	if err != nil {
		return "", err
	}

	if _, err := r.recurringService.AdvanceBillingCycle(ctx, svc.ID, r.now()); err != nil {
		r.Logger.Errorw("invoice created but billing cycle not advanced",
			"service_id", svc.ID,
			"invoice_id", inv.ID,
			"error", err,
		)
		return "", err
	}

	r.publishEvent(ctx, types.EventServiceBilled, svc.ID, map[string]interface{}{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"billing_date":   svc.NextBillingDate,
	})
	return inv.ID, nil
}

// invoiceRequestForService builds the single item invoice for the service's current cycle.
// The item is priced at the pre-tax amount and the invoice carries the service's tax rate,
// so the invoice total equals the service total.
func invoiceRequestForService(svc *billable.Service, asOf time.Time) (*dto.CreateInvoiceRequest, error) {
	base, err := svc.BaseAmount()
	if err != nil {
		return nil, err
	}

	taxRate := decimal.Zero
	if svc.HasTax {
		taxRate = svc.TaxRate
	}

	description := svc.Name
	if svc.Description != nil && strings.TrimSpace(*svc.Description) != "" {
		description = strings.TrimSpace(*svc.Description)
	}

	item := dto.InvoiceItemRequest{
		ServiceID:   lo.ToPtr(svc.ID),
		Description: description,
		Quantity:    1,
		UnitPrice:   base,
		IsRecurring: true,
	}
	if svc.NextBillingDate != nil {
		start := *svc.NextBillingDate
		item.ServicePeriodStart = &start
		if next, err := types.NextBillingDate(start, svc.Frequency); err == nil {
			end := next.AddDate(0, 0, -1)
			if end.Before(start) {
				end = start
			}
			item.ServicePeriodEnd = &end
		}
	}

	invoiceDate := startOfDay(asOf)
	return &dto.CreateInvoiceRequest{
		ClientID:    svc.ClientID,
		ProjectID:   svc.ProjectID,
		InvoiceDate: &invoiceDate,
		Currency:    svc.Currency,
		TaxRate:     &taxRate,
		Items:       []dto.InvoiceItemRequest{item},
	}, nil
}

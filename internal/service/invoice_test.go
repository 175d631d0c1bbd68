package service

import (
	"context"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/testutil"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.SetNow(time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC))
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewInvoiceService(params, NewInvoiceSequencer(params))
}

func (s *InvoiceServiceSuite) createRequest(items ...dto.InvoiceItemRequest) dto.CreateInvoiceRequest {
	if len(items) == 0 {
		items = []dto.InvoiceItemRequest{{Description: "Design work", Quantity: 1, UnitPrice: dec("1000.00")}}
	}
	return dto.CreateInvoiceRequest{
		ClientID:     "client_1",
		ExchangeRate: lo.ToPtr(decimal.NewFromInt(1)),
		TaxRate:      lo.ToPtr(decimal.NewFromInt(10)),
		Items:        items,
	}
}

func (s *InvoiceServiceSuite) mustCreate(req dto.CreateInvoiceRequest) *dto.InvoiceResponse {
	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *InvoiceServiceSuite) storedCounter() int {
	setting, err := s.GetStores().SettingsRepo.Get(s.GetContext())
	s.Require().NoError(err)
	return setting.NextInvoiceNumber
}

func (s *InvoiceServiceSuite) TestCreateInvoice() {
	resp := s.mustCreate(s.createRequest())

	s.Equal(defaultNumber(testutil.DefaultFreelancerID, 2025, 1), resp.InvoiceNumber)
	s.Equal(types.InvoiceStatusDraft, resp.InvoiceStatus)
	s.Equal(testutil.DefaultFreelancerID, resp.FreelancerID)
	s.True(dec("1000.00").Equal(resp.Subtotal))
	s.True(dec("100.00").Equal(resp.TaxAmount))
	s.True(dec("1100.00").Equal(resp.TotalAmount))
	s.True(dec("1100.00").Equal(resp.TotalAmountBaseCurrency))
	s.Equal("USD", resp.Currency)
	s.Equal(date(2025, time.March, 14), resp.InvoiceDate)
	s.Require().NotNil(resp.DueDate)
	s.Equal(date(2025, time.April, 13), *resp.DueDate)

	s.Require().Len(resp.Items, 1)
	s.Equal(1, resp.Items[0].SortOrder)
	s.True(dec("1000.00").Equal(resp.Items[0].TotalPrice))

	stored, err := s.service.GetInvoice(s.GetContext(), resp.ID)
	s.Require().NoError(err)
	s.Equal(resp.InvoiceNumber, stored.InvoiceNumber)
	s.Len(stored.Items, 1)

	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceCreated), 1)
}

func (s *InvoiceServiceSuite) TestCreateInvoiceNumbersAreSequential() {
	first := s.mustCreate(s.createRequest())
	second := s.mustCreate(s.createRequest())

	s.Equal(defaultNumber(testutil.DefaultFreelancerID, 2025, 1), first.InvoiceNumber)
	s.Equal(defaultNumber(testutil.DefaultFreelancerID, 2025, 2), second.InvoiceNumber)
	s.Equal(3, s.storedCounter())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceMultiCurrency() {
	req := s.createRequest(
		dto.InvoiceItemRequest{Description: "Hosting", Quantity: 2, UnitPrice: dec("19.99")},
		dto.InvoiceItemRequest{Description: "Support", Quantity: 3, UnitPrice: dec("10.50")},
	)
	req.Currency = "eur"
	req.TaxRate = lo.ToPtr(dec("18"))
	req.ExchangeRate = lo.ToPtr(dec("0.92"))

	resp := s.mustCreate(req)

	s.Equal("EUR", resp.Currency)
	s.True(dec("71.48").Equal(resp.Subtotal), resp.Subtotal.String())
	s.True(dec("12.87").Equal(resp.TaxAmount), resp.TaxAmount.String())
	s.True(dec("84.35").Equal(resp.TotalAmount), resp.TotalAmount.String())
	s.True(dec("77.60").Equal(resp.TotalAmountBaseCurrency), resp.TotalAmountBaseCurrency.String())

	s.Require().Len(resp.Items, 2)
	s.Equal("Hosting", resp.Items[0].Description)
	s.Equal(1, resp.Items[0].SortOrder)
	s.Equal(2, resp.Items[1].SortOrder)
}

func (s *InvoiceServiceSuite) TestCreateInvoiceAppliesSettingsDefaults() {
	setting := testSetting(testutil.DefaultFreelancerID, "ACME", 12, 2025)
	setting.DefaultTaxRate = dec("5")
	setting.InvoiceDueDays = 14
	setting.BaseCurrency = "EUR"
	s.GetStores().SettingsRepo.Put(setting)

	req := s.createRequest()
	req.TaxRate = nil
	req.ExchangeRate = nil
	req.InvoiceDate = lo.ToPtr(date(2025, time.March, 1))

	resp := s.mustCreate(req)

	s.Equal("ACME-2025-012", resp.InvoiceNumber)
	s.Equal("EUR", resp.Currency)
	s.True(dec("5").Equal(resp.TaxRate))
	s.True(decimal.NewFromInt(1).Equal(resp.ExchangeRate))
	s.Require().NotNil(resp.DueDate)
	s.Equal(date(2025, time.March, 15), *resp.DueDate)
	s.True(dec("1050.00").Equal(resp.TotalAmount))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceKeepsExplicitZeroTax() {
	setting := testSetting(testutil.DefaultFreelancerID, "INV", 1, 2025)
	setting.DefaultTaxRate = dec("20")
	s.GetStores().SettingsRepo.Put(setting)

	req := s.createRequest()
	req.TaxRate = lo.ToPtr(decimal.Zero)

	resp := s.mustCreate(req)
	s.True(resp.TaxAmount.IsZero())
	s.True(dec("1000.00").Equal(resp.TotalAmount))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceValidation() {
	tests := []struct {
		name   string
		mutate func(req *dto.CreateInvoiceRequest)
	}{
		{
			name:   "no items",
			mutate: func(req *dto.CreateInvoiceRequest) { req.Items = nil },
		},
		{
			name:   "zero quantity",
			mutate: func(req *dto.CreateInvoiceRequest) { req.Items[0].Quantity = 0 },
		},
		{
			name:   "negative unit price",
			mutate: func(req *dto.CreateInvoiceRequest) { req.Items[0].UnitPrice = dec("-1") },
		},
		{
			name:   "tax rate above 100",
			mutate: func(req *dto.CreateInvoiceRequest) { req.TaxRate = lo.ToPtr(dec("100.01")) },
		},
		{
			name:   "tax rate with three decimals",
			mutate: func(req *dto.CreateInvoiceRequest) { req.TaxRate = lo.ToPtr(dec("18.125")) },
		},
		{
			name:   "unit price with three decimals",
			mutate: func(req *dto.CreateInvoiceRequest) { req.Items[0].UnitPrice = dec("10.005") },
		},
		{
			name:   "exchange rate with seven decimals",
			mutate: func(req *dto.CreateInvoiceRequest) { req.ExchangeRate = lo.ToPtr(dec("0.9200001")) },
		},
		{
			name:   "zero exchange rate",
			mutate: func(req *dto.CreateInvoiceRequest) { req.ExchangeRate = lo.ToPtr(decimal.Zero) },
		},
		{
			name: "due date before invoice date",
			mutate: func(req *dto.CreateInvoiceRequest) {
				req.InvoiceDate = lo.ToPtr(date(2025, time.March, 10))
				req.DueDate = lo.ToPtr(date(2025, time.March, 9))
			},
		},
		{
			name:   "missing client",
			mutate: func(req *dto.CreateInvoiceRequest) { req.ClientID = "" },
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.createRequest()
			tt.mutate(&req)

			_, err := s.service.CreateInvoice(s.GetContext(), req)
			s.Require().Error(err)
			s.True(ierr.IsValidation(err), err.Error())
		})
	}

	_, err := s.GetStores().SettingsRepo.Get(s.GetContext())
	s.True(ierr.IsNotFound(err), "rejected requests must not touch the sequence")
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRequiresFreelancer() {
	_, err := s.service.CreateInvoice(context.Background(), s.createRequest())
	s.Require().Error(err)
	s.True(ierr.Is(err, ierr.ErrPermissionDenied))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRollsBackNumberWhenItemsFail() {
	s.GetStores().SettingsRepo.Put(testSetting(testutil.DefaultFreelancerID, "INV", 1, 2025))
	items := s.GetStores().InvoiceItemRepo
	items.FailCreateMany = ierr.NewError("insert failed").Mark(ierr.ErrDatabase)

	_, err := s.service.CreateInvoice(s.GetContext(), s.createRequest())
	s.Require().Error(err)

	s.Equal(1, s.storedCounter())
	list, err := s.service.ListInvoices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Empty(list.Items)
	s.Empty(s.GetPublisher().Events())

	items.FailCreateMany = nil
	resp := s.mustCreate(s.createRequest())
	s.Equal("INV-2025-001", resp.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestDefaultSettingsGiveEachFreelancerDistinctNumbers() {
	other := "fl_test_00000002"

	theirs, err := s.service.CreateInvoice(testutil.SetupContextFor(other), s.createRequest())
	s.Require().NoError(err)
	mine := s.mustCreate(s.createRequest())

	s.NotEqual(theirs.InvoiceNumber, mine.InvoiceNumber)
	s.Equal(defaultNumber(other, 2025, 1), theirs.InvoiceNumber)
	s.Equal(defaultNumber(testutil.DefaultFreelancerID, 2025, 1), mine.InvoiceNumber)
	s.Equal(2, s.storedCounter())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRejectsNumberTakenByAnotherFreelancer() {
	other := testutil.SetupContextFor("fl_test_00000002")
	s.GetStores().SettingsRepo.Put(testSetting("fl_test_00000002", "INV", 1, 2025))
	s.GetStores().SettingsRepo.Put(testSetting(testutil.DefaultFreelancerID, "INV", 1, 2025))

	_, err := s.service.CreateInvoice(other, s.createRequest())
	s.Require().NoError(err)

	_, err = s.service.CreateInvoice(s.GetContext(), s.createRequest())
	s.Require().Error(err)
	s.True(ierr.IsAlreadyExists(err))
	s.Equal(1, s.storedCounter())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRetriesLockConflicts() {
	store := s.GetStores().SettingsRepo
	store.Put(testSetting(testutil.DefaultFreelancerID, "INV", 1, 2025))
	store.FailNextLocks(2)

	resp, err := s.service.CreateInvoice(s.GetContext(), s.createRequest())
	s.Require().NoError(err)
	s.Equal("INV-2025-001", resp.InvoiceNumber)
	s.Equal(2, s.storedCounter())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceGivesUpAfterThreeConflicts() {
	store := s.GetStores().SettingsRepo
	store.Put(testSetting(testutil.DefaultFreelancerID, "INV", 1, 2025))
	store.FailNextLocks(3)

	_, err := s.service.CreateInvoice(s.GetContext(), s.createRequest())
	s.Require().Error(err)
	s.True(ierr.IsConcurrencyConflict(err))
	s.Equal(1, s.storedCounter())
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceReplacesItems() {
	created := s.mustCreate(s.createRequest(
		dto.InvoiceItemRequest{Description: "A", Quantity: 1, UnitPrice: dec("100")},
		dto.InvoiceItemRequest{Description: "B", Quantity: 2, UnitPrice: dec("50")},
	))
	s.True(dec("220.00").Equal(created.TotalAmount))

	updated, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		TaxRate: lo.ToPtr(dec("20")),
		Items: []dto.InvoiceItemRequest{
			{Description: "C", Quantity: 4, UnitPrice: dec("25.13")},
		},
	})
	s.Require().NoError(err)

	s.Require().Len(updated.Items, 1)
	s.Equal("C", updated.Items[0].Description)
	s.Equal(1, updated.Items[0].SortOrder)
	s.True(dec("100.52").Equal(updated.Subtotal), updated.Subtotal.String())
	s.True(dec("20.10").Equal(updated.TaxAmount), updated.TaxAmount.String())
	s.True(dec("120.62").Equal(updated.TotalAmount), updated.TotalAmount.String())
	s.Equal(created.InvoiceNumber, updated.InvoiceNumber)

	stored, err := s.GetStores().InvoiceItemRepo.ListByInvoiceID(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Len(stored, 1)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceUpdated), 1)
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceWithoutItemsKeepsTotals() {
	created := s.mustCreate(s.createRequest())

	updated, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		TaxRate: lo.ToPtr(dec("20")),
		Notes:   lo.ToPtr("net 30"),
	})
	s.Require().NoError(err)

	s.True(dec("20").Equal(updated.TaxRate))
	s.True(created.TotalAmount.Equal(updated.TotalAmount))
	s.True(created.TaxAmount.Equal(updated.TaxAmount))
	s.Len(updated.Items, 1)
	s.Equal("net 30", lo.FromPtr(updated.Notes))
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceRollsBackWhenItemsFail() {
	created := s.mustCreate(s.createRequest())
	s.GetStores().InvoiceItemRepo.FailCreateMany = ierr.NewError("insert failed").Mark(ierr.ErrDatabase)

	_, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		Items: []dto.InvoiceItemRequest{{Description: "New", Quantity: 9, UnitPrice: dec("9")}},
	})
	s.Require().Error(err)

	s.GetStores().InvoiceItemRepo.FailCreateMany = nil
	stored, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 1)
	s.Equal("Design work", stored.Items[0].Description)
	s.True(created.TotalAmount.Equal(stored.TotalAmount))
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceStatusFollowsStateMachine() {
	created := s.mustCreate(s.createRequest())

	_, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		InvoiceStatus: lo.ToPtr(types.InvoiceStatusPaid),
	})
	s.Require().Error(err)
	s.True(ierr.IsInvalidStateTransition(err))

	updated, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		InvoiceStatus: lo.ToPtr(types.InvoiceStatusSent),
	})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusSent, updated.InvoiceStatus)
	s.NotNil(updated.SentAt)
	s.Len(s.GetPublisher().EventsNamed(types.EventInvoiceSent), 1)
}

func (s *InvoiceServiceSuite) TestMarkInvoiceSent() {
	created := s.mustCreate(s.createRequest())

	sent, err := s.service.MarkInvoiceSent(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusSent, sent.InvoiceStatus)
	s.Require().NotNil(sent.SentAt)
	s.Equal(s.GetNow(), *sent.SentAt)

	s.SetNow(s.GetNow().Add(24 * time.Hour))
	resent, err := s.service.MarkInvoiceSent(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(s.GetNow(), *resent.SentAt)
}

func (s *InvoiceServiceSuite) TestMarkInvoiceSentRefusedWhenTerminal() {
	created := s.mustCreate(s.createRequest())
	_, err := s.service.MarkInvoiceSent(s.GetContext(), created.ID)
	s.Require().NoError(err)
	_, err = s.service.MarkInvoicePaid(s.GetContext(), created.ID)
	s.Require().NoError(err)

	_, err = s.service.MarkInvoiceSent(s.GetContext(), created.ID)
	s.Require().Error(err)
	s.True(ierr.IsInvalidStateTransition(err))

	stored, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.NotNil(stored.PaidAt)

	cancelled := s.mustCreate(s.createRequest())
	_, err = s.service.CancelInvoice(s.GetContext(), cancelled.ID)
	s.Require().NoError(err)
	_, err = s.service.MarkInvoiceSent(s.GetContext(), cancelled.ID)
	s.True(ierr.IsInvalidStateTransition(err))
}

func (s *InvoiceServiceSuite) TestStatusTransitions() {
	tests := []struct {
		name    string
		prepare []func(ctx context.Context, id string) error
		apply   func(ctx context.Context, id string) error
		wantErr bool
	}{
		{
			name:    "draft cannot be paid",
			apply:   s.markPaid,
			wantErr: true,
		},
		{
			name:    "sent can be paid",
			prepare: []func(ctx context.Context, id string) error{s.markSent},
			apply:   s.markPaid,
		},
		{
			name:  "draft can be cancelled",
			apply: s.cancel,
		},
		{
			name:    "sent can be cancelled",
			prepare: []func(ctx context.Context, id string) error{s.markSent},
			apply:   s.cancel,
		},
		{
			name:    "paid cannot be cancelled",
			prepare: []func(ctx context.Context, id string) error{s.markSent, s.markPaid},
			apply:   s.cancel,
			wantErr: true,
		},
		{
			name:    "cancelled cannot be paid",
			prepare: []func(ctx context.Context, id string) error{s.cancel},
			apply:   s.markPaid,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			created := s.mustCreate(s.createRequest())
			for _, step := range tt.prepare {
				s.Require().NoError(step(s.GetContext(), created.ID))
			}

			err := tt.apply(s.GetContext(), created.ID)
			if tt.wantErr {
				s.Require().Error(err)
				s.True(ierr.IsInvalidStateTransition(err), err.Error())
				return
			}
			s.NoError(err)
		})
	}
}

func (s *InvoiceServiceSuite) markSent(ctx context.Context, id string) error {
	_, err := s.service.MarkInvoiceSent(ctx, id)
	return err
}

func (s *InvoiceServiceSuite) markPaid(ctx context.Context, id string) error {
	_, err := s.service.MarkInvoicePaid(ctx, id)
	return err
}

func (s *InvoiceServiceSuite) cancel(ctx context.Context, id string) error {
	_, err := s.service.CancelInvoice(ctx, id)
	return err
}

func (s *InvoiceServiceSuite) TestOverdue() {
	req := s.createRequest()
	req.InvoiceDate = lo.ToPtr(date(2025, time.March, 1))
	req.DueDate = lo.ToPtr(date(2025, time.March, 31))
	created := s.mustCreate(req)

	overdue, err := s.service.IsOverdue(s.GetContext(), created.ID, date(2025, time.April, 5))
	s.Require().NoError(err)
	s.False(overdue, "drafts are never overdue")

	_, err = s.service.MarkInvoiceSent(s.GetContext(), created.ID)
	s.Require().NoError(err)

	overdue, err = s.service.IsOverdue(s.GetContext(), created.ID, time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.False(overdue, "an invoice is not overdue on its due date")

	_, err = s.service.MarkInvoiceOverdue(s.GetContext(), created.ID, date(2025, time.March, 31))
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	overdue, err = s.service.IsOverdue(s.GetContext(), created.ID, date(2025, time.April, 1))
	s.Require().NoError(err)
	s.True(overdue)

	marked, err := s.service.MarkInvoiceOverdue(s.GetContext(), created.ID, date(2025, time.April, 1))
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, marked.InvoiceStatus)

	paid, err := s.service.MarkInvoicePaid(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, paid.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestDeleteInvoice() {
	created := s.mustCreate(s.createRequest())

	s.Require().NoError(s.service.DeleteInvoice(s.GetContext(), created.ID))

	_, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.True(ierr.IsNotFound(err))

	err = s.service.DeleteInvoice(s.GetContext(), created.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestInvoicesAreScopedToFreelancer() {
	created := s.mustCreate(s.createRequest())

	other := testutil.SetupContextFor("fl_test_00000002")
	_, err := s.service.GetInvoice(other, created.ID)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.MarkInvoiceSent(other, created.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestListInvoices() {
	first := s.mustCreate(s.createRequest())
	second := s.mustCreate(s.createRequest())
	_, err := s.service.MarkInvoiceSent(s.GetContext(), second.ID)
	s.Require().NoError(err)

	all, err := s.service.ListInvoices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(2, all.Pagination.Total)
	s.Len(all.Items, 2)

	filter := types.NewInvoiceFilter()
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusDraft}
	drafts, err := s.service.ListInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(drafts.Items, 1)
	s.Equal(first.ID, drafts.Items[0].ID)
	s.Len(drafts.Items[0].Items, 1)

	filter = types.NewInvoiceFilter()
	filter.Limit = lo.ToPtr(1)
	page, err := s.service.ListInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(page.Items, 1)
	s.Equal(2, page.Pagination.Total)
}

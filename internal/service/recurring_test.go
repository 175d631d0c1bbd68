package service

import (
	"context"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/testutil"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type RecurringServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RecurringService
}

func TestRecurringService(t *testing.T) {
	suite.Run(t, new(RecurringServiceSuite))
}

func (s *RecurringServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRecurringService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *RecurringServiceSuite) monthly(name string, start time.Time) dto.CreateServiceRequest {
	return dto.CreateServiceRequest{
		ClientID:  "client_1",
		Name:      name,
		Amount:    dec("500.00"),
		Frequency: types.BillingFrequencyMonthly,
		StartDate: start,
	}
}

func (s *RecurringServiceSuite) mustCreate(req dto.CreateServiceRequest) *dto.ServiceResponse {
	resp, err := s.service.CreateService(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *RecurringServiceSuite) TestCreateServiceDefaults() {
	resp := s.mustCreate(s.monthly("Retainer", date(2025, time.January, 15)))

	s.Equal(types.ServiceStatusActive, resp.ServiceStatus)
	s.True(resp.IsActive)
	s.Equal("USD", resp.Currency)
	s.Equal(types.TaxTypeExclusive, resp.TaxType)
	s.Require().NotNil(resp.NextBillingDate)
	s.Equal(date(2025, time.January, 15), *resp.NextBillingDate)
	s.Equal(0, resp.BillingCount)
}

func (s *RecurringServiceSuite) TestOneTimeServiceHasNoNextBillingDate() {
	req := s.monthly("Logo", date(2025, time.January, 15))
	req.Frequency = types.BillingFrequencyOneTime
	req.NextBillingDate = lo.ToPtr(date(2025, time.February, 1))

	resp := s.mustCreate(req)
	s.Nil(resp.NextBillingDate)
}

func (s *RecurringServiceSuite) TestCreateServiceValidation() {
	tests := []struct {
		name   string
		mutate func(req *dto.CreateServiceRequest)
		check  func(err error) bool
	}{
		{
			name:   "end before start",
			mutate: func(req *dto.CreateServiceRequest) { req.EndDate = lo.ToPtr(date(2025, time.January, 1)) },
			check:  ierr.IsValidation,
		},
		{
			name: "tax rate above 999.99",
			mutate: func(req *dto.CreateServiceRequest) {
				req.HasTax = true
				req.TaxRate = dec("1000")
			},
			check: ierr.IsValidation,
		},
		{
			name: "tax rate with three decimals",
			mutate: func(req *dto.CreateServiceRequest) {
				req.HasTax = true
				req.TaxRate = dec("18.125")
			},
			check: ierr.IsValidation,
		},
		{
			name:   "amount with three decimals",
			mutate: func(req *dto.CreateServiceRequest) { req.Amount = dec("100.005") },
			check:  ierr.IsValidation,
		},
		{
			name:   "unknown frequency",
			mutate: func(req *dto.CreateServiceRequest) { req.Frequency = "fortnightly" },
			check:  ierr.IsValidation,
		},
		{
			name:   "negative amount",
			mutate: func(req *dto.CreateServiceRequest) { req.Amount = dec("-5") },
			check:  ierr.IsValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.monthly("Retainer", date(2025, time.January, 15))
			tt.mutate(&req)

			_, err := s.service.CreateService(s.GetContext(), req)
			s.Require().Error(err)
			s.True(tt.check(err), err.Error())
		})
	}
}

func (s *RecurringServiceSuite) TestServiceAmounts() {
	tests := []struct {
		name    string
		amount  string
		taxRate string
		taxType types.TaxType
		base    string
		tax     string
		total   string
	}{
		{name: "exclusive", amount: "50000", taxRate: "18", taxType: types.TaxTypeExclusive, base: "50000.00", tax: "9000.00", total: "59000.00"},
		{name: "inclusive", amount: "59000", taxRate: "18", taxType: types.TaxTypeInclusive, base: "50000.00", tax: "9000.00", total: "59000.00"},
		{name: "zero rate", amount: "120", taxRate: "0", taxType: types.TaxTypeExclusive, base: "120.00", tax: "0.00", total: "120.00"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.monthly("Retainer", date(2025, time.January, 15))
			req.Amount = dec(tt.amount)
			req.HasTax = true
			req.TaxRate = dec(tt.taxRate)
			req.TaxType = tt.taxType
			created := s.mustCreate(req)

			amounts, err := s.service.GetServiceAmounts(s.GetContext(), created.ID)
			s.Require().NoError(err)
			s.True(dec(tt.base).Equal(amounts.BaseAmount), amounts.BaseAmount.String())
			s.True(dec(tt.tax).Equal(amounts.TaxAmount), amounts.TaxAmount.String())
			s.True(dec(tt.total).Equal(amounts.TotalAmount), amounts.TotalAmount.String())

			s.True(dec(tt.total).Equal(created.TotalAmount))
		})
	}
}

func (s *RecurringServiceSuite) TestUpdateServiceToOneTimeClearsNextBillingDate() {
	created := s.mustCreate(s.monthly("Retainer", date(2025, time.January, 15)))

	updated, err := s.service.UpdateService(s.GetContext(), created.ID, dto.UpdateServiceRequest{
		Frequency: lo.ToPtr(types.BillingFrequencyOneTime),
	})
	s.Require().NoError(err)
	s.Nil(updated.NextBillingDate)

	_, err = s.service.UpdateService(s.GetContext(), "svc_missing", dto.UpdateServiceRequest{Name: lo.ToPtr("x")})
	s.True(ierr.IsNotFound(err))
}

func (s *RecurringServiceSuite) TestSelectEligibleServices() {
	asOf := date(2025, time.March, 1)

	late := s.mustCreate(s.monthly("late", date(2025, time.February, 20)))
	early := s.mustCreate(s.monthly("early", date(2025, time.January, 10)))
	onTheDay := s.mustCreate(s.monthly("on the day", asOf))
	s.mustCreate(s.monthly("future", date(2025, time.March, 2)))

	paused := s.monthly("paused", date(2025, time.January, 1))
	paused.ServiceStatus = lo.ToPtr(types.ServiceStatusPaused)
	s.mustCreate(paused)

	inactive := s.monthly("inactive", date(2025, time.January, 1))
	inactive.IsActive = lo.ToPtr(false)
	s.mustCreate(inactive)

	oneTime := s.monthly("one-time", date(2025, time.January, 1))
	oneTime.Frequency = types.BillingFrequencyOneTime
	s.mustCreate(oneTime)

	other := testutil.SetupContextFor("fl_test_00000002")
	theirs, err := s.service.CreateService(other, s.monthly("theirs", date(2025, time.February, 1)))
	s.Require().NoError(err)

	eligible, err := s.service.SelectEligibleServices(s.GetContext(), asOf)
	s.Require().NoError(err)
	s.Equal([]string{early.ID, late.ID, onTheDay.ID}, lo.Map(eligible, func(svc *billable.Service, _ int) string {
		return svc.ID
	}))

	all, err := s.service.SelectEligibleServices(context.Background(), asOf)
	s.Require().NoError(err)
	s.Len(all, 4)
	s.Equal(early.ID, all[0].ID)
	s.Equal(theirs.ID, all[1].ID)
}

func (s *RecurringServiceSuite) TestListRecurringServices() {
	s.mustCreate(s.monthly("retainer", date(2025, time.January, 1)))
	oneTime := s.monthly("logo", date(2025, time.January, 1))
	oneTime.Frequency = types.BillingFrequencyOneTime
	s.mustCreate(oneTime)
	inactive := s.monthly("inactive", date(2025, time.January, 1))
	inactive.IsActive = lo.ToPtr(false)
	s.mustCreate(inactive)

	resp, err := s.service.ListRecurringServices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("retainer", resp.Items[0].Name)
	s.Equal(1, resp.Pagination.Total)
}

func (s *RecurringServiceSuite) TestAdvanceBillingCycle() {
	created := s.mustCreate(s.monthly("Retainer", date(2025, time.January, 31)))
	billedAt := time.Date(2025, time.January, 31, 6, 0, 0, 0, time.UTC)

	advanced, err := s.service.AdvanceBillingCycle(s.GetContext(), created.ID, billedAt)
	s.Require().NoError(err)
	s.Equal(1, advanced.BillingCount)
	s.Require().NotNil(advanced.LastBilledAt)
	s.Equal(billedAt, *advanced.LastBilledAt)
	s.Require().NotNil(advanced.NextBillingDate)
	s.Equal(date(2025, time.February, 28), *advanced.NextBillingDate)
}

func (s *RecurringServiceSuite) TestAdvanceBillingCycleCompletesAtEndDate() {
	req := s.monthly("Retainer", date(2025, time.January, 15))
	req.EndDate = lo.ToPtr(date(2025, time.February, 20))
	created := s.mustCreate(req)

	first, err := s.service.AdvanceBillingCycle(s.GetContext(), created.ID, s.GetNow())
	s.Require().NoError(err)
	s.Equal(date(2025, time.February, 15), *first.NextBillingDate)

	second, err := s.service.AdvanceBillingCycle(s.GetContext(), created.ID, s.GetNow())
	s.Require().NoError(err)
	s.Nil(second.NextBillingDate)
	s.Equal(types.ServiceStatusCompleted, second.ServiceStatus)
	s.Equal(2, second.BillingCount)

	_, err = s.service.AdvanceBillingCycle(s.GetContext(), created.ID, s.GetNow())
	s.True(ierr.IsInvalidOperation(err))
}

func (s *RecurringServiceSuite) TestAdvanceBillingCycleByFrequency() {
	start := date(2025, time.August, 31)
	tests := []struct {
		frequency types.BillingFrequency
		want      time.Time
	}{
		{types.BillingFrequencyWeekly, date(2025, time.September, 7)},
		{types.BillingFrequencyMonthly, date(2025, time.September, 30)},
		{types.BillingFrequencyQuarterly, date(2025, time.November, 30)},
		{types.BillingFrequencyHalfYearly, date(2026, time.February, 28)},
		{types.BillingFrequencyYearly, date(2026, time.August, 31)},
	}

	for _, tt := range tests {
		s.Run(string(tt.frequency), func() {
			req := s.monthly("svc", start)
			req.Frequency = tt.frequency
			created := s.mustCreate(req)

			advanced, err := s.service.AdvanceBillingCycle(s.GetContext(), created.ID, s.GetNow())
			s.Require().NoError(err)
			s.Equal(tt.want, *advanced.NextBillingDate)
		})
	}
}

package service

import (
	"fmt"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	"github.com/freelanceflow/freelanceflow/internal/testutil"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/shopspring/decimal"
)

// newTestServiceParams wires the suite's in-memory stores. The clock follows the suite's
// pinned time, so SetNow takes effect on services that were already built.
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		DB:              s.GetDB(),
		Cache:           s.GetCache(),
		Clock:           s.GetNow,
		SettingsRepo:    stores.SettingsRepo,
		InvoiceRepo:     stores.InvoiceRepo,
		InvoiceItemRepo: stores.InvoiceItemRepo,
		ServiceRepo:     stores.ServiceRepo,
		EventPublisher:  s.GetPublisher(),
	}
}

func testSetting(freelancerID, prefix string, next, year int) *settings.FreelancerSetting {
	now := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &settings.FreelancerSetting{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FREELANCER_SETTING),
		InvoicePrefix:     prefix,
		NextInvoiceNumber: next,
		InvoiceYear:       year,
		InvoiceDueDays:    30,
		BaseCurrency:      "USD",
		DefaultTaxRate:    decimal.Zero,
		BaseModel: types.BaseModel{
			FreelancerID: freelancerID,
			Status:       types.StatusPublished,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

// defaultPrefix is the prefix given to a freelancer whose settings are created lazily
func defaultPrefix(freelancerID string) string {
	return settings.DefaultInvoicePrefixFor("INV", freelancerID, 0)
}

func defaultNumber(freelancerID string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", defaultPrefix(freelancerID), year, seq)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

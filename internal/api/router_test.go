package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api/cron"
	v1 "github.com/freelanceflow/freelanceflow/internal/api/v1"
	"github.com/freelanceflow/freelanceflow/internal/auth"
	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	"github.com/freelanceflow/freelanceflow/internal/service"
	"github.com/freelanceflow/freelanceflow/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
	token  string
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	gin.SetMode(gin.TestMode)

	cfg := s.GetConfig()
	cfg.Auth.Secret = "router-test-secret"

	stores := s.GetStores()
	params := service.ServiceParams{
		Logger:          s.GetLogger(),
		Config:          cfg,
		DB:              s.GetDB(),
		Cache:           s.GetCache(),
		Clock:           s.GetNow,
		SettingsRepo:    stores.SettingsRepo,
		InvoiceRepo:     stores.InvoiceRepo,
		InvoiceItemRepo: stores.InvoiceItemRepo,
		ServiceRepo:     stores.ServiceRepo,
		EventPublisher:  s.GetPublisher(),
	}

	invoiceService := service.NewInvoiceService(params, service.NewInvoiceSequencer(params))
	recurringService := service.NewRecurringService(params)
	runner := service.NewBillingRunner(params, invoiceService, recurringService, nil)

	s.router = NewRouter(Handlers{
		Health:      v1.NewHealthHandler(s.GetLogger()),
		Invoice:     v1.NewInvoiceHandler(invoiceService, s.GetLogger()),
		Settings:    v1.NewSettingsHandler(service.NewSettingsService(params), s.GetLogger()),
		Service:     v1.NewServiceHandler(recurringService, s.GetLogger()),
		CronBilling: cron.NewBillingHandler(runner, s.GetLogger()),
	}, cfg, s.GetLogger())

	s.token = s.tokenFor(testutil.DefaultFreelancerID)
}

func (s *RouterSuite) tokenFor(freelancerID string) string {
	token, err := auth.NewProvider(s.GetConfig()).GenerateToken(freelancerID, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *RouterSuite) assertMoney(expected string, actual any) {
	str, ok := actual.(string)
	s.Require().True(ok, "money is serialized as a decimal string, got %T", actual)
	s.True(decimal.RequireFromString(expected).Equal(decimal.RequireFromString(str)), "expected %s, got %s", expected, str)
}

func errorCode(body map[string]any) string {
	detail, _ := body["error"].(map[string]any)
	code, _ := detail["code"].(string)
	return code
}

func invoiceBody() map[string]any {
	return map[string]any{
		"client_id": "client_1",
		"currency":  "EUR",
		"tax_rate":  "18",
		"items": []map[string]any{
			{"description": "Design work", "quantity": 2, "unit_price": "50.00"},
			{"description": "Hosting", "quantity": 1, "unit_price": "10.00"},
		},
	}
}

func (s *RouterSuite) TestHealthNeedsNoToken() {
	rec, body := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", body["status"])
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestRejectsMissingOrInvalidToken() {
	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec, body := s.do(http.MethodGet, "/v1/settings", tt.token, nil)
			s.Equal(http.StatusUnauthorized, rec.Code)
			s.Equal("unauthenticated", errorCode(body))
		})
	}
}

func (s *RouterSuite) TestInvoiceLifecycle() {
	rec, created := s.do(http.MethodPost, "/v1/invoices", s.token, invoiceBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal(settings.DefaultInvoicePrefixFor("INV", testutil.DefaultFreelancerID, 0)+"-2025-001", created["invoice_number"])
	s.Equal("draft", created["invoice_status"])
	s.assertMoney("110", created["subtotal"])
	s.assertMoney("19.8", created["tax_amount"])
	s.assertMoney("129.8", created["total_amount"])

	id := created["id"].(string)

	rec, fetched := s.do(http.MethodGet, "/v1/invoices/"+id, s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(fetched["items"], 2)

	rec, sent := s.do(http.MethodPatch, "/v1/invoices/"+id+"/mark-as-sent", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("sent", sent["invoice_status"])

	rec, cancelled := s.do(http.MethodPatch, "/v1/invoices/"+id+"/cancel", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("cancelled", cancelled["invoice_status"])

	rec, refused := s.do(http.MethodPatch, "/v1/invoices/"+id+"/mark-as-paid", s.token, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("invalid_state_transition", errorCode(refused))

	rec, list := s.do(http.MethodGet, "/v1/invoices?limit=10", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(list["items"], 1)
}

func (s *RouterSuite) TestInvoiceValidation() {
	tests := []struct {
		name   string
		mutate func(body map[string]any)
	}{
		{name: "no items", mutate: func(body map[string]any) {
			body["items"] = []map[string]any{}
		}},
		{name: "tax rate with three decimals", mutate: func(body map[string]any) {
			body["tax_rate"] = "18.125"
		}},
		{name: "unit price with three decimals", mutate: func(body map[string]any) {
			body["items"] = []map[string]any{{"description": "Design work", "quantity": 1, "unit_price": "10.005"}}
		}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			body := invoiceBody()
			tt.mutate(body)

			rec, resp := s.do(http.MethodPost, "/v1/invoices", s.token, body)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal("validation_error", errorCode(resp))
			count, err := s.GetStores().InvoiceRepo.Count(s.GetContext(), nil)
			s.NoError(err)
			s.Zero(count)
		})
	}
}

func (s *RouterSuite) TestInvoicesAreScopedToTokenFreelancer() {
	rec, created := s.do(http.MethodPost, "/v1/invoices", s.token, invoiceBody())
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec, _ = s.do(http.MethodGet, "/v1/invoices/"+created["id"].(string), s.tokenFor("fl_someone_else"), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestSettingsRoundTrip() {
	rec, got := s.do(http.MethodGet, "/v1/settings", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(settings.DefaultInvoicePrefixFor("INV", testutil.DefaultFreelancerID, 0), got["invoice_prefix"])

	rec, updated := s.do(http.MethodPut, "/v1/settings", s.token, map[string]any{"invoice_prefix": "ACME"})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ACME", updated["invoice_prefix"])

	rec, created := s.do(http.MethodPost, "/v1/invoices", s.token, invoiceBody())
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal("ACME-2025-001", created["invoice_number"])
}

func (s *RouterSuite) TestRecurringServiceBilling() {
	rec, svc := s.do(http.MethodPost, "/v1/services", s.token, map[string]any{
		"client_id":  "client_1",
		"name":       "Retainer",
		"amount":     "500.00",
		"currency":   "USD",
		"has_tax":    true,
		"tax_rate":   "10",
		"frequency":  "monthly",
		"start_date": "2025-03-01T00:00:00Z",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	id := svc["id"].(string)

	rec, amounts := s.do(http.MethodGet, "/v1/services/"+id+"/amounts", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.assertMoney("550", amounts["total_amount"])

	rec, ready := s.do(http.MethodGet, "/v1/services/ready-for-billing?as_of=2025-03-14", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(ready["items"], 1)

	rec, run := s.do(http.MethodPost, "/v1/cron/services/bill", s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.EqualValues(1, run["billed"])
	s.EqualValues(0, run["failed"])

	rec, ready = s.do(http.MethodGet, "/v1/services/ready-for-billing?as_of=2025-03-14", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Empty(ready["items"])

	rec, _ = s.do(http.MethodGet, "/v1/services/ready-for-billing?as_of=yesterday", s.token, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

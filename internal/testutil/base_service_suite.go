package testutil

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/cache"
	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/freelanceflow/freelanceflow/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the in-memory repositories for testing
type Stores struct {
	SettingsRepo    *InMemorySettingsStore
	InvoiceRepo     *InMemoryInvoiceStore
	InvoiceItemRepo *InMemoryInvoiceItemStore
	ServiceRepo     *InMemoryServiceStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryEventPublisher
	db        *MockPostgresClient
	cache     cache.Cache
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Billing.RetryInitialInterval = time.Millisecond
	cfg.Billing.RunnerRateLimitPerSec = 0
	s.config = cfg
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SettingsRepo:    NewInMemorySettingsStore(),
		InvoiceRepo:     NewInMemoryInvoiceStore(),
		InvoiceItemRepo: NewInMemoryInvoiceItemStore(),
		ServiceRepo:     NewInMemoryServiceStore(),
	}
	s.db = NewMockPostgresClient(s.logger)
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
	s.publisher = NewInMemoryEventPublisher()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SettingsRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.InvoiceItemRepo.Clear()
	s.stores.ServiceRepo.Clear()
	s.cache.Flush(context.Background())
	s.publisher.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the recording event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the pinned test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// SetNow moves the pinned test time
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

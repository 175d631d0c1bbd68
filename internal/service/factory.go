package service

import (
	"time"

	"github.com/freelanceflow/freelanceflow/internal/cache"
	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/publisher"
	"github.com/freelanceflow/freelanceflow/internal/retry"
)

// Clock returns the current time. Services read time through it so tests can pin the year.
type Clock func() time.Time

// SystemClock returns the current UTC time
func SystemClock() time.Time {
	return time.Now().UTC()
}

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache
	Clock  Clock

	// Repositories
	SettingsRepo    settings.Repository
	InvoiceRepo     invoice.Repository
	InvoiceItemRepo invoice.ItemRepository
	ServiceRepo     billable.Repository

	// Publishers
	EventPublisher publisher.EventPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	settingsRepo settings.Repository,
	invoiceRepo invoice.Repository,
	invoiceItemRepo invoice.ItemRepository,
	serviceRepo billable.Repository,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:          logger,
		Config:          config,
		DB:              db,
		Cache:           cache,
		Clock:           SystemClock,
		SettingsRepo:    settingsRepo,
		InvoiceRepo:     invoiceRepo,
		InvoiceItemRepo: invoiceItemRepo,
		ServiceRepo:     serviceRepo,
		EventPublisher:  eventPublisher,
	}
}

func (p ServiceParams) now() time.Time {
	if p.Clock == nil {
		return SystemClock()
	}
	return p.Clock().UTC()
}

// retryConfig is the bounded backoff applied to writes that can hit a lock timeout
func (p ServiceParams) retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	if p.Config == nil {
		return cfg
	}
	if p.Config.Billing.RetryMaxAttempts > 0 {
		cfg.MaxAttempts = p.Config.Billing.RetryMaxAttempts
	}
	if p.Config.Billing.RetryInitialInterval > 0 {
		cfg.InitialInterval = p.Config.Billing.RetryInitialInterval
	}
	return cfg
}

package repository

import (
	"github.com/freelanceflow/freelanceflow/internal/domain/billable"
	"github.com/freelanceflow/freelanceflow/internal/domain/invoice"
	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	postgresRepo "github.com/freelanceflow/freelanceflow/internal/repository/postgres"
)

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewInvoiceItemRepository(db *postgres.DB, logger *logger.Logger) invoice.ItemRepository {
	return postgresRepo.NewInvoiceItemRepository(db, logger)
}

func NewSettingsRepository(db *postgres.DB, logger *logger.Logger) settings.Repository {
	return postgresRepo.NewSettingsRepository(db, logger)
}

func NewServiceRepository(db *postgres.DB, logger *logger.Logger) billable.Repository {
	return postgresRepo.NewServiceRepository(db, logger)
}

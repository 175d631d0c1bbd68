package api

import (
	"github.com/freelanceflow/freelanceflow/internal/api/cron"
	v1 "github.com/freelanceflow/freelanceflow/internal/api/v1"
	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/rest/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handlers struct {
	Health   *v1.HealthHandler
	Invoice  *v1.InvoiceHandler
	Settings *v1.SettingsHandler
	Service  *v1.ServiceHandler

	CronBilling *cron.BillingHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.LoggingMiddleware(logger),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.AuthenticateMiddleware(cfg, logger))
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id", handlers.Invoice.UpdateInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteInvoice)
		invoices.PATCH("/:id/mark-as-sent", handlers.Invoice.MarkAsSent)
		invoices.PATCH("/:id/mark-as-paid", handlers.Invoice.MarkAsPaid)
		invoices.PATCH("/:id/mark-as-overdue", handlers.Invoice.MarkAsOverdue)
		invoices.PATCH("/:id/cancel", handlers.Invoice.CancelInvoice)
	}

	settings := router.Group("/settings")
	{
		settings.GET("", handlers.Settings.GetSettings)
		settings.PUT("", handlers.Settings.UpdateSettings)
	}

	services := router.Group("/services")
	{
		services.POST("", handlers.Service.CreateService)
		services.GET("", handlers.Service.ListServices)
		services.GET("/ready-for-billing", handlers.Service.ListReadyForBilling)
		services.GET("/recurring", handlers.Service.ListRecurringServices)
		services.GET("/:id", handlers.Service.GetService)
		services.PUT("/:id", handlers.Service.UpdateService)
		services.GET("/:id/amounts", handlers.Service.GetServiceAmounts)
	}

	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/services/bill", handlers.CronBilling.BillServices)
	}
}

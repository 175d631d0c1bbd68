package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/api"
	"github.com/freelanceflow/freelanceflow/internal/api/cron"
	v1 "github.com/freelanceflow/freelanceflow/internal/api/v1"
	"github.com/freelanceflow/freelanceflow/internal/cache"
	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/internal/publisher"
	"github.com/freelanceflow/freelanceflow/internal/pubsub"
	"github.com/freelanceflow/freelanceflow/internal/pubsub/kafka"
	"github.com/freelanceflow/freelanceflow/internal/pubsub/memory"
	"github.com/freelanceflow/freelanceflow/internal/repository"
	"github.com/freelanceflow/freelanceflow/internal/sentry"
	"github.com/freelanceflow/freelanceflow/internal/service"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/freelanceflow/freelanceflow/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// @title FreelanceFlow API
// @version 1.0
// @description Invoicing and recurring billing for freelancers
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the token in the format *Bearer &lt;token&gt;*

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// PubSub and event publisher
			providePubSub,
			publisher.NewEventPublisher,

			// Repositories
			repository.NewSettingsRepository,
			repository.NewInvoiceRepository,
			repository.NewInvoiceItemRepository,
			repository.NewServiceRepository,
		),
		sentry.Module(),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewInvoiceSequencer,
			service.NewSettingsService,
			service.NewInvoiceService,
			service.NewRecurringService,
			service.NewBillingRunner,
			service.NewBillingWorker,
		),
	)

	// API and workers
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			start,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePubSub(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)

	switch cfg.Event.PubSub {
	case types.KafkaPubSub:
		ps, err = kafka.NewPubSub(cfg, log)
		if err != nil {
			return nil, err
		}
	default:
		ps = memory.NewPubSub(log)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}

func provideHandlers(
	logger *logger.Logger,
	invoiceService service.InvoiceService,
	settingsService service.SettingsService,
	recurringService service.RecurringService,
	billingRunner service.BillingRunner,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(logger),
		Invoice:     v1.NewInvoiceHandler(invoiceService, logger),
		Settings:    v1.NewSettingsHandler(settingsService, logger),
		Service:     v1.NewServiceHandler(recurringService, logger),
		CronBilling: cron.NewBillingHandler(billingRunner, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(handlers, cfg, logger)
}

func start(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	worker *service.BillingWorker,
	ps pubsub.PubSub,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		worker.RegisterWithLifecycle(lc)
		startEventLogger(lc, ps, cfg, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeBillingWorker:
		worker.RegisterWithLifecycle(lc)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

// startEventLogger drains the billing topic in local mode so published events show up in the logs
func startEventLogger(
	lc fx.Lifecycle,
	ps pubsub.PubSub,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			messages, err := ps.Subscribe(ctx, cfg.Event.Topic)
			if err != nil {
				return err
			}
			go func() {
				for msg := range messages {
					log.Debugw("billing event",
						"event_id", msg.UUID,
						"freelancer_id", msg.Metadata.Get("freelancer_id"),
						"payload", string(msg.Payload),
					)
					msg.Ack()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

package postgres

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/sentry"
	"go.uber.org/fx"
)

// IClient is the unit of work the service layer runs its writes in
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

var _ IClient = (*DB)(nil)

// Module provides the sqlx database and a monitored IClient on top of it
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient returns the database as an IClient instrumented with sentry spans
func NewClient(db *DB, sentrySvc *sentry.Service, logger *logger.Logger) IClient {
	return NewSentryClient(db, sentrySvc, logger)
}

func registerHooks(lc fx.Lifecycle, db *DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
}

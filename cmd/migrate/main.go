package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/config"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/postgres"
	"github.com/freelanceflow/freelanceflow/migrations"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	pending, err := postgres.LoadMigrations(migrations.Postgres, "postgres")
	if err != nil {
		logger.Fatalw("Failed to load migrations", "error", err)
	}

	if *dryRun {
		logger.Info("Dry run mode - printing migration SQL without executing")
		for _, m := range pending {
			fmt.Printf("-- %s\n%s\n", m.Version, m.SQL)
		}
		return
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	applied, err := db.Migrate(ctx, pending, logger)
	if err != nil {
		logger.Fatalw("Failed to apply migrations", "applied", applied, "error", err)
	}

	logger.Infow("Migration completed successfully", "applied", len(applied), "total", len(pending))
}

package postgres

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`

// Migration is one SQL file of the schema
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrations reads every *.up.sql file under dir, ordered by file name
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read migrations").
			Mark(ierr.ErrSystem)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Failed to read migration %s", name).
				Mark(ierr.ErrSystem)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(name, ".up.sql"),
			SQL:     string(body),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies the migrations not yet recorded in schema_migrations, each in its own
// transaction, and returns the versions it applied
func (db *DB) Migrate(ctx context.Context, migrations []Migration, log *logger.Logger) ([]string, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, WrapError(err, "failed to create schema_migrations")
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations"); err != nil {
		return nil, WrapError(err, "failed to read schema_migrations")
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	var versions []string
	for _, m := range migrations {
		if done[m.Version] {
			log.Debugw("migration already applied", "version", m.Version)
			continue
		}

		err := db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, m.SQL); err != nil {
				return WrapError(err, "failed to apply migration "+m.Version)
			}
			if _, err := q.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
				return WrapError(err, "failed to record migration "+m.Version)
			}
			return nil
		})
		if err != nil {
			return versions, err
		}

		log.Infow("applied migration", "version", m.Version)
		versions = append(versions, m.Version)
	}
	return versions, nil
}

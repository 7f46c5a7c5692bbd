package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// migrationLockID serialises concurrent migrators across replicas.
const migrationLockID = 7_301_994

// RunMigrations applies every *.up.sql file at the root of fsys in lexical
// order. Applied versions are tracked in schema_migrations; each file runs in
// its own transaction together with its version record. Connection errors
// are retried, SQL errors are returned immediately.
func RunMigrations(ctx context.Context, db DBTX, fsys fs.FS, logger *slog.Logger) error {
	return retryStartup(ctx, "run migrations", logger, isConnectionError, func() error {
		return runMigrationsOnce(ctx, db, fsys, logger)
	})
}

func runMigrationsOnce(ctx context.Context, db DBTX, fsys fs.FS, logger *slog.Logger) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		applied := false
		err = WithTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return fmt.Errorf("lock migrations: %w", err)
			}

			var exists bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check migration %s: %w", name, err)
			}
			if exists {
				return nil
			}

			if _, err := tx.Exec(ctx, strings.TrimSpace(string(content))); err != nil {
				return fmt.Errorf("execute migration %s: %w", name, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
				return fmt.Errorf("record migration %s: %w", name, err)
			}
			applied = true
			return nil
		})
		if err != nil {
			return err
		}

		if applied {
			logger.Info("migration applied", slog.String("version", name))
		} else {
			logger.Debug("migration already applied", slog.String("version", name))
		}
	}

	return nil
}

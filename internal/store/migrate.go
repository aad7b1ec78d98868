package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// RunMigrations applies pending SQL migrations in filename order and returns
// how many were applied. Each migration runs in its own transaction together
// with its schema_migrations record. There are no down migrations; fix
// forward only.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	versions, err := migrationVersions()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, version := range versions {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("checking migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sql, err := migrationsFS.ReadFile("migrations/" + version)
		if err != nil {
			return applied, fmt.Errorf("reading migration %s: %w", version, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version) VALUES ($1)",
				version,
			)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("applying migration %s: %w", version, err)
		}
		applied++
	}

	return applied, nil
}

// migrationVersions lists the embedded migration files in apply order.
func migrationVersions() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		versions = append(versions, entry.Name())
	}
	slices.Sort(versions)
	return versions, nil
}

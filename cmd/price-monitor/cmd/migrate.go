package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/price-monitor/internal/config"
	"github.com/donaldgifford/price-monitor/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate requires database.driver %q (got %q)", config.DriverPostgres, cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	log.Info("running migrations", "host", cfg.Database.Host, "name", cfg.Database.Name)

	applied, err := store.RunMigrations(ctx, pool)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	log.Info("migrations complete", "applied", applied)
	return nil
}

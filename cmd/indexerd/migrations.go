package main

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/freshgrlc/freshgrlc-indexer/config"
)

// runSchemaMigrations applies pending golang-migrate schema migrations
// (model/migrations) before the scheduler touches the database. This is
// the DDL layer (component I's layer 1); the data-backfill runner
// (engine.MigrateOldData) is a separate, restart-safe pass that runs
// continuously once the scheduler is live.
func runSchemaMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, "mysql://"+cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

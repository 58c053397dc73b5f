package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

// RunMigrations executes all pending goose migrations for the pool's driver.
func RunMigrations(pool *sqlx.DB) error {
	dir, err := migrationDir(pool.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(EmbedMigrations)

	if err := goose.SetDialect(pool.DriverName()); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(pool.DB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func migrationDir(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "migrations/sqlite", nil
	case DriverPostgres:
		return "migrations/postgres", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

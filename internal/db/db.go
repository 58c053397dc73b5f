// Package db provides database connectivity helpers and migration support.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// Open opens a *sqlx.DB pool for the given driver and DSN.
//
// For sqlite3 the DSN is a file path; the pool is limited to a single
// connection so every statement serializes on the one writer. For
// postgres the DSN is a lib/pq connection string and maxOpen controls
// the pool size (0 defaults to 8).
func Open(driver, dsn string, maxOpen int) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn, maxOpen)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a hardened single-connection pool for the given
// SQLite file path: WAL journal, busy_timeout=5000ms, synchronous=NORMAL,
// foreign_keys=on, and immediate transaction locking.
func OpenSQLite(path string) (*sqlx.DB, error) {
	pool, err := sqlx.Open(DriverSQLite, buildSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)
	pool.SetConnMaxLifetime(time.Hour)

	if err := ping(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return pool, nil
}

// OpenPostgres opens a pool for the given lib/pq DSN.
func OpenPostgres(dsn string, maxOpen int) (*sqlx.DB, error) {
	pool, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen <= 0 {
		maxOpen = 8
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(maxOpen)
	pool.SetConnMaxLifetime(time.Hour)

	if err := ping(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func ping(pool *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return pool.PingContext(ctx)
}

// buildSQLiteDSN constructs a SQLite DSN with hardened parameters.
func buildSQLiteDSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

package db

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// OpenTestDB opens a hardened SQLite pool in t.TempDir(), runs all
// pending migrations, and registers cleanup.
func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")

	pool, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := RunMigrations(pool); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return pool
}

// Package repository implements domain repository interfaces over a
// relational backend through sqlx. Queries are written with ? bindvars
// and rebound per driver, so the same code serves SQLite and Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"iamcore/internal/domain"
)

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return &domain.ConflictError{Message: "resource already exists"}
		case "23503": // foreign_key_violation
			return &domain.NotFoundError{Message: "referenced resource not found"}
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return &domain.NotFoundError{Message: "referenced resource not found"}
	}
	return err
}

// inTx runs fn inside a transaction, committing on nil and rolling back
// otherwise. Errors pass through mapDBError.
func inTx(ctx context.Context, pool *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := pool.BeginTxx(ctx, nil)
	if err != nil {
		return domain.ErrStorage(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapDBError(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ErrStorage(err, "commit transaction")
	}
	return nil
}

// getOne fetches a single row, mapping sql.ErrNoRows onto NotFoundError
// with the given resource description.
func getOne(ctx context.Context, q sqlx.ExtContext, dest any, what, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("%s not found", what)
	}
	return err
}

// mustAffect verifies a mutation touched at least one row.
func mustAffect(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("%s not found", what)
	}
	return nil
}

func countRows(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

// likePrefix builds a LIKE pattern matching values that start with prefix.
func likePrefix(prefix string) string {
	return prefix + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// archiveRows copies matching rows from a live table into its history
// twin, stamping deleted_at, then removes them from the live table.
// cols names the live columns in twin order (deleted_at is appended).
func archiveRows(ctx context.Context, tx *sqlx.Tx, table string, cols []string, where string, deletedAt time.Time, whereArgs ...any) error {
	colList := strings.Join(cols, ", ")
	insert := fmt.Sprintf(
		"INSERT INTO deleted_%s (%s, deleted_at) SELECT %s, ? FROM %s WHERE %s",
		table, colList, colList, table, where,
	)
	args := append([]any{deletedAt}, whereArgs...)
	if _, err := tx.ExecContext(ctx, tx.Rebind(insert), args...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE "+where), whereArgs...); err != nil {
		return err
	}
	return nil
}

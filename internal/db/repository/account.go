package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

type AccountRepo struct {
	db    *sqlx.DB
	alloc *ids.Allocator
}

func NewAccountRepo(db *sqlx.DB, alloc *ids.Allocator) *AccountRepo {
	return &AccountRepo{db: db, alloc: alloc}
}

type accountRow struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	Active    bool           `db:"active"`
	Alias     sql.NullString `db:"alias"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:        row.ID,
		Email:     row.Email,
		Active:    row.Active,
		Alias:     fromNullString(row.Alias),
		CreatedAt: row.CreatedAt,
	}
}

const accountSelect = `
	SELECT a.id, a.email, a.active, a.created_at, al.alias
	FROM account a
	LEFT JOIN account_alias al ON al.account_id = a.id`

// Create inserts a new account, allocating its 12-digit id. When a.ID is
// already set (the seed account) it is used verbatim.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	id := a.ID
	if id == "" {
		var err error
		id, err = r.alloc.AllocateAccountID(ctx, r.exists)
		if err != nil {
			return nil, err
		}
	}

	created := &domain.Account{
		ID:        id,
		Email:     a.Email,
		Active:    true,
		Alias:     a.Alias,
		CreatedAt: time.Now().UTC(),
	}
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO account (id, email, active, created_at) VALUES (?, ?, ?, ?)`),
			created.ID, created.Email, created.Active, created.CreatedAt)
		if err != nil {
			return err
		}
		if created.Alias != "" {
			_, err = tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO account_alias (account_id, alias) VALUES (?, ?)`),
				created.ID, created.Alias)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *AccountRepo) exists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM account WHERE id = ?`, id)
	return n > 0, err
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var row accountRow
	if err := getOne(ctx, r.db, &row, "account "+id, accountSelect+` WHERE a.id = ?`, id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *AccountRepo) GetByAlias(ctx context.Context, alias string) (*domain.Account, error) {
	var row accountRow
	if err := getOne(ctx, r.db, &row, "account alias "+alias, accountSelect+` WHERE al.alias = ?`, alias); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *AccountRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Account, int64, error) {
	total, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM account`)
	if err != nil {
		return nil, 0, err
	}

	var rows []accountRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(
		accountSelect+` ORDER BY a.id LIMIT ? OFFSET ?`),
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

// SetAlias creates or replaces the account's alias.
func (r *AccountRepo) SetAlias(ctx context.Context, id, alias string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM account_alias WHERE account_id = ?`), id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO account_alias (account_id, alias) VALUES (?, ?)`), id, alias)
		return err
	})
}

func (r *AccountRepo) DeleteAlias(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM account_alias WHERE account_id = ?`), id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "account alias")
}

package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

type UserRepo struct {
	db    *sqlx.DB
	alloc *ids.Allocator
}

func NewUserRepo(db *sqlx.DB, alloc *ids.Allocator) *UserRepo {
	return &UserRepo{db: db, alloc: alloc}
}

type userRow struct {
	ID                  string         `db:"id"`
	AccountID           string         `db:"account_id"`
	NameCased           string         `db:"name_cased"`
	Path                string         `db:"path"`
	PermissionsBoundary sql.NullString `db:"permissions_boundary"`
	CreatedAt           time.Time      `db:"created_at"`
}

func (row userRow) toDomain() *domain.User {
	return &domain.User{
		ID:                  row.ID,
		AccountID:           row.AccountID,
		Name:                row.NameCased,
		Path:                row.Path,
		PermissionsBoundary: fromNullString(row.PermissionsBoundary),
		CreatedAt:           row.CreatedAt,
	}
}

const userSelect = `
	SELECT id, account_id, name_cased, path, permissions_boundary, created_at
	FROM iam_user`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindUser, r.exists)
	if err != nil {
		return nil, err
	}

	created := &domain.User{
		ID:        id,
		AccountID: u.AccountID,
		Name:      u.Name,
		Path:      u.Path,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_user (id, account_id, name_lower, name_cased, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		created.ID, created.AccountID, strings.ToLower(created.Name), created.Name,
		created.Path, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

func (r *UserRepo) exists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_user WHERE id = ?`, id)
	return n > 0, err
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	if err := getOne(ctx, r.db, &row, "user "+id, userSelect+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *UserRepo) GetByName(ctx context.Context, accountID, name string) (*domain.User, error) {
	var row userRow
	err := getOne(ctx, r.db, &row, "user "+name,
		userSelect+` WHERE account_id = ? AND name_lower = ?`,
		accountID, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *UserRepo) List(ctx context.Context, accountID, pathPrefix string, page domain.PageRequest) ([]domain.User, int64, error) {
	where := ` WHERE account_id = ?`
	args := []any{accountID}
	if pathPrefix != "" {
		where += ` AND path LIKE ?`
		args = append(args, likePrefix(pathPrefix))
	}

	total, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_user`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	var rows []userRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(
		userSelect+where+` ORDER BY name_lower LIMIT ? OFFSET ?`),
		append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *UserRepo) Update(ctx context.Context, id, newName, newPath string) (*domain.User, error) {
	sets := []string{}
	args := []any{}
	if newName != "" {
		sets = append(sets, "name_lower = ?", "name_cased = ?")
		args = append(args, strings.ToLower(newName), newName)
	}
	if newPath != "" {
		sets = append(sets, "path = ?")
		args = append(args, newPath)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_user SET `+strings.Join(sets, ", ")+` WHERE id = ?`),
		append(args, id)...)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := mustAffect(res, "user "+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetPermissionsBoundary sets the boundary policy id; empty clears it.
func (r *UserRepo) SetPermissionsBoundary(ctx context.Context, id, policyID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_user SET permissions_boundary = ? WHERE id = ?`),
		nullString(policyID), id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "user "+id)
}

// Delete archives the user and everything hanging off it: access keys,
// login profile, service credentials, SSH keys, memberships, attachments,
// and inline policies, all in one transaction.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := archiveRows(ctx, tx, "iam_user_credential",
			[]string{"access_key_id", "user_id", "secret", "active", "created_at"},
			"user_id = ?", now, id)
		if err != nil {
			return err
		}
		err = archiveRows(ctx, tx, "iam_user_login_profile",
			[]string{"user_id", "password_algorithm", "password_hash", "reset_required", "password_changed_at", "created_at", "last_used_at"},
			"user_id = ?", now, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM iam_user_password_history WHERE user_id = ?`), id)
		if err != nil {
			return err
		}
		err = archiveRows(ctx, tx, "iam_service_credential",
			[]string{"id", "user_id", "service_name", "password", "active", "created_at"},
			"user_id = ?", now, id)
		if err != nil {
			return err
		}
		err = archiveRows(ctx, tx, "iam_ssh_public_key",
			[]string{"id", "user_id", "fingerprint", "body", "active", "created_at"},
			"user_id = ?", now, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM iam_group_member WHERE user_id = ?`), id)
		if err != nil {
			return err
		}
		if err := archivePrincipalPolicies(ctx, tx, id, now); err != nil {
			return err
		}
		return archiveRows(ctx, tx, "iam_user",
			[]string{"id", "account_id", "name_lower", "name_cased", "path", "permissions_boundary", "created_at"},
			"id = ?", now, id)
	})
}

func (r *UserRepo) AttachPolicy(ctx context.Context, userID, policyID string) error {
	if _, err := r.GetByID(ctx, userID); err != nil {
		return err
	}
	return attachPolicy(ctx, r.db, userID, policyID)
}

func (r *UserRepo) DetachPolicy(ctx context.Context, userID, policyID string) error {
	return detachPolicy(ctx, r.db, userID, policyID)
}

func (r *UserRepo) ListAttachedPolicies(ctx context.Context, userID string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	return listAttachedPolicies(ctx, r.db, userID, page)
}

func (r *UserRepo) ListAttachedPolicyDocuments(ctx context.Context, userID string) ([]string, error) {
	return listAttachedPolicyDocuments(ctx, r.db, userID)
}

func (r *UserRepo) PutInlinePolicy(ctx context.Context, userID string, p *domain.InlinePolicy) error {
	if _, err := r.GetByID(ctx, userID); err != nil {
		return err
	}
	return putInlinePolicy(ctx, r.db, userID, p)
}

func (r *UserRepo) GetInlinePolicy(ctx context.Context, userID, name string) (*domain.InlinePolicy, error) {
	return getInlinePolicy(ctx, r.db, userID, name)
}

func (r *UserRepo) DeleteInlinePolicy(ctx context.Context, userID, name string) error {
	return deleteInlinePolicy(ctx, r.db, userID, name)
}

func (r *UserRepo) ListInlinePolicies(ctx context.Context, userID string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	return listInlinePolicies(ctx, r.db, userID, page)
}

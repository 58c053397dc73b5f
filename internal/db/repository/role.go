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

type RoleRepo struct {
	db    *sqlx.DB
	alloc *ids.Allocator
}

func NewRoleRepo(db *sqlx.DB, alloc *ids.Allocator) *RoleRepo {
	return &RoleRepo{db: db, alloc: alloc}
}

type roleRow struct {
	ID                  string         `db:"id"`
	AccountID           string         `db:"account_id"`
	NameCased           string         `db:"name_cased"`
	Path                string         `db:"path"`
	Description         string         `db:"description"`
	AssumeRolePolicy    string         `db:"assume_role_policy"`
	MaxSessionDuration  int            `db:"max_session_duration"`
	PermissionsBoundary sql.NullString `db:"permissions_boundary"`
	CreatedAt           time.Time      `db:"created_at"`
}

func (row roleRow) toDomain() *domain.Role {
	return &domain.Role{
		ID:                  row.ID,
		AccountID:           row.AccountID,
		Name:                row.NameCased,
		Path:                row.Path,
		Description:         row.Description,
		AssumeRolePolicy:    row.AssumeRolePolicy,
		MaxSessionDuration:  row.MaxSessionDuration,
		PermissionsBoundary: fromNullString(row.PermissionsBoundary),
		CreatedAt:           row.CreatedAt,
	}
}

const roleSelect = `
	SELECT id, account_id, name_cased, path, description, assume_role_policy,
	       max_session_duration, permissions_boundary, created_at
	FROM iam_role`

func (r *RoleRepo) Create(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindRole, r.exists)
	if err != nil {
		return nil, err
	}

	created := &domain.Role{
		ID:                 id,
		AccountID:          role.AccountID,
		Name:               role.Name,
		Path:               role.Path,
		Description:        role.Description,
		AssumeRolePolicy:   role.AssumeRolePolicy,
		MaxSessionDuration: role.MaxSessionDuration,
		CreatedAt:          time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_role (id, account_id, name_lower, name_cased, path, description,
		                      assume_role_policy, max_session_duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		created.ID, created.AccountID, strings.ToLower(created.Name), created.Name,
		created.Path, created.Description, created.AssumeRolePolicy,
		created.MaxSessionDuration, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

func (r *RoleRepo) exists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_role WHERE id = ?`, id)
	return n > 0, err
}

func (r *RoleRepo) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	var row roleRow
	if err := getOne(ctx, r.db, &row, "role "+id, roleSelect+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *RoleRepo) GetByName(ctx context.Context, accountID, name string) (*domain.Role, error) {
	var row roleRow
	err := getOne(ctx, r.db, &row, "role "+name,
		roleSelect+` WHERE account_id = ? AND name_lower = ?`,
		accountID, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *RoleRepo) List(ctx context.Context, accountID, pathPrefix string, page domain.PageRequest) ([]domain.Role, int64, error) {
	where := ` WHERE account_id = ?`
	args := []any{accountID}
	if pathPrefix != "" {
		where += ` AND path LIKE ?`
		args = append(args, likePrefix(pathPrefix))
	}

	total, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_role`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	var rows []roleRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(
		roleSelect+where+` ORDER BY name_lower LIMIT ? OFFSET ?`),
		append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.Role, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *RoleRepo) Update(ctx context.Context, id string, description *string, maxSessionDuration *int) (*domain.Role, error) {
	sets := []string{}
	args := []any{}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *description)
	}
	if maxSessionDuration != nil {
		sets = append(sets, "max_session_duration = ?")
		args = append(args, *maxSessionDuration)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_role SET `+strings.Join(sets, ", ")+` WHERE id = ?`),
		append(args, id)...)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := mustAffect(res, "role "+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *RoleRepo) SetAssumeRolePolicy(ctx context.Context, id, document string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_role SET assume_role_policy = ? WHERE id = ?`), document, id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "role "+id)
}

// SetPermissionsBoundary sets the boundary policy id; empty clears it.
func (r *RoleRepo) SetPermissionsBoundary(ctx context.Context, id, policyID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_role SET permissions_boundary = ? WHERE id = ?`),
		nullString(policyID), id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "role "+id)
}

// Delete archives the role along with its token keys, attachments, and
// inline policies. Sessions minted under the archived keys stop
// validating once the role is gone.
func (r *RoleRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := archiveRows(ctx, tx, "iam_role_token_key",
			[]string{"access_key_id", "role_id", "algorithm", "key_material", "valid_at", "expires_at"},
			"role_id = ?", now, id)
		if err != nil {
			return err
		}
		if err := archivePrincipalPolicies(ctx, tx, id, now); err != nil {
			return err
		}
		return archiveRows(ctx, tx, "iam_role",
			[]string{"id", "account_id", "name_lower", "name_cased", "path", "description", "assume_role_policy", "max_session_duration", "permissions_boundary", "created_at"},
			"id = ?", now, id)
	})
}

func (r *RoleRepo) AttachPolicy(ctx context.Context, roleID, policyID string) error {
	if _, err := r.GetByID(ctx, roleID); err != nil {
		return err
	}
	return attachPolicy(ctx, r.db, roleID, policyID)
}

func (r *RoleRepo) DetachPolicy(ctx context.Context, roleID, policyID string) error {
	return detachPolicy(ctx, r.db, roleID, policyID)
}

func (r *RoleRepo) ListAttachedPolicies(ctx context.Context, roleID string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	return listAttachedPolicies(ctx, r.db, roleID, page)
}

func (r *RoleRepo) ListAttachedPolicyDocuments(ctx context.Context, roleID string) ([]string, error) {
	return listAttachedPolicyDocuments(ctx, r.db, roleID)
}

func (r *RoleRepo) PutInlinePolicy(ctx context.Context, roleID string, p *domain.InlinePolicy) error {
	if _, err := r.GetByID(ctx, roleID); err != nil {
		return err
	}
	return putInlinePolicy(ctx, r.db, roleID, p)
}

func (r *RoleRepo) GetInlinePolicy(ctx context.Context, roleID, name string) (*domain.InlinePolicy, error) {
	return getInlinePolicy(ctx, r.db, roleID, name)
}

func (r *RoleRepo) DeleteInlinePolicy(ctx context.Context, roleID, name string) error {
	return deleteInlinePolicy(ctx, r.db, roleID, name)
}

func (r *RoleRepo) ListInlinePolicies(ctx context.Context, roleID string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	return listInlinePolicies(ctx, r.db, roleID, page)
}

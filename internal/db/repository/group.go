package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

type GroupRepo struct {
	db    *sqlx.DB
	alloc *ids.Allocator
}

func NewGroupRepo(db *sqlx.DB, alloc *ids.Allocator) *GroupRepo {
	return &GroupRepo{db: db, alloc: alloc}
}

type groupRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	NameCased string    `db:"name_cased"`
	Path      string    `db:"path"`
	CreatedAt time.Time `db:"created_at"`
}

func (row groupRow) toDomain() *domain.Group {
	return &domain.Group{
		ID:        row.ID,
		AccountID: row.AccountID,
		Name:      row.NameCased,
		Path:      row.Path,
		CreatedAt: row.CreatedAt,
	}
}

const groupSelect = `
	SELECT id, account_id, name_cased, path, created_at
	FROM iam_group`

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) (*domain.Group, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindGroup, r.exists)
	if err != nil {
		return nil, err
	}

	created := &domain.Group{
		ID:        id,
		AccountID: g.AccountID,
		Name:      g.Name,
		Path:      g.Path,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_group (id, account_id, name_lower, name_cased, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		created.ID, created.AccountID, strings.ToLower(created.Name), created.Name,
		created.Path, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

func (r *GroupRepo) exists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_group WHERE id = ?`, id)
	return n > 0, err
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	var row groupRow
	if err := getOne(ctx, r.db, &row, "group "+id, groupSelect+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *GroupRepo) GetByName(ctx context.Context, accountID, name string) (*domain.Group, error) {
	var row groupRow
	err := getOne(ctx, r.db, &row, "group "+name,
		groupSelect+` WHERE account_id = ? AND name_lower = ?`,
		accountID, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *GroupRepo) List(ctx context.Context, accountID, pathPrefix string, page domain.PageRequest) ([]domain.Group, int64, error) {
	where := ` WHERE account_id = ?`
	args := []any{accountID}
	if pathPrefix != "" {
		where += ` AND path LIKE ?`
		args = append(args, likePrefix(pathPrefix))
	}

	total, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_group`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	var rows []groupRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(
		groupSelect+where+` ORDER BY name_lower LIMIT ? OFFSET ?`),
		append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.Group, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *GroupRepo) Update(ctx context.Context, id, newName, newPath string) (*domain.Group, error) {
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
		`UPDATE iam_group SET `+strings.Join(sets, ", ")+` WHERE id = ?`),
		append(args, id)...)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := mustAffect(res, "group "+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete archives the group with its memberships dropped and its
// attachments and inline policies moved to history.
func (r *GroupRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM iam_group_member WHERE group_id = ?`), id)
		if err != nil {
			return err
		}
		if err := archivePrincipalPolicies(ctx, tx, id, now); err != nil {
			return err
		}
		return archiveRows(ctx, tx, "iam_group",
			[]string{"id", "account_id", "name_lower", "name_cased", "path", "created_at"},
			"id = ?", now, id)
	})
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO iam_group_member (group_id, user_id) VALUES (?, ?)`),
		groupID, userID)
	return mapDBError(err)
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM iam_group_member WHERE group_id = ? AND user_id = ?`),
		groupID, userID)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "group membership")
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID string, page domain.PageRequest) ([]domain.User, int64, error) {
	total, err := countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_group_member WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, 0, err
	}

	var rows []userRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT u.id, u.account_id, u.name_cased, u.path, u.permissions_boundary, u.created_at
		FROM iam_group_member m
		JOIN iam_user u ON u.id = m.user_id
		WHERE m.group_id = ?
		ORDER BY u.name_lower
		LIMIT ? OFFSET ?`),
		groupID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	var rows []groupRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT g.id, g.account_id, g.name_cased, g.path, g.created_at
		FROM iam_group_member m
		JOIN iam_group g ON g.id = m.group_id
		WHERE m.user_id = ?
		ORDER BY g.name_lower`),
		userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Group, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, nil
}

func (r *GroupRepo) AttachPolicy(ctx context.Context, groupID, policyID string) error {
	if _, err := r.GetByID(ctx, groupID); err != nil {
		return err
	}
	return attachPolicy(ctx, r.db, groupID, policyID)
}

func (r *GroupRepo) DetachPolicy(ctx context.Context, groupID, policyID string) error {
	return detachPolicy(ctx, r.db, groupID, policyID)
}

func (r *GroupRepo) ListAttachedPolicies(ctx context.Context, groupID string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	return listAttachedPolicies(ctx, r.db, groupID, page)
}

func (r *GroupRepo) ListAttachedPolicyDocuments(ctx context.Context, groupID string) ([]string, error) {
	return listAttachedPolicyDocuments(ctx, r.db, groupID)
}

func (r *GroupRepo) PutInlinePolicy(ctx context.Context, groupID string, p *domain.InlinePolicy) error {
	if _, err := r.GetByID(ctx, groupID); err != nil {
		return err
	}
	return putInlinePolicy(ctx, r.db, groupID, p)
}

func (r *GroupRepo) GetInlinePolicy(ctx context.Context, groupID, name string) (*domain.InlinePolicy, error) {
	return getInlinePolicy(ctx, r.db, groupID, name)
}

func (r *GroupRepo) DeleteInlinePolicy(ctx context.Context, groupID, name string) error {
	return deleteInlinePolicy(ctx, r.db, groupID, name)
}

func (r *GroupRepo) ListInlinePolicies(ctx context.Context, groupID string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	return listInlinePolicies(ctx, r.db, groupID, page)
}

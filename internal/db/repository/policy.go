package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

type PolicyRepo struct {
	db    *sqlx.DB
	alloc *ids.Allocator
}

func NewPolicyRepo(db *sqlx.DB, alloc *ids.Allocator) *PolicyRepo {
	return &PolicyRepo{db: db, alloc: alloc}
}

type policyRow struct {
	ID             string    `db:"id"`
	AccountID      string    `db:"account_id"`
	NameCased      string    `db:"name_cased"`
	Path           string    `db:"path"`
	Deprecated     bool      `db:"deprecated"`
	PolicyType     string    `db:"policy_type"`
	DefaultVersion int       `db:"default_version"`
	LastVersion    int       `db:"last_version"`
	CreatedAt      time.Time `db:"created_at"`
}

func (row policyRow) toDomain() *domain.ManagedPolicy {
	return &domain.ManagedPolicy{
		ID:             row.ID,
		AccountID:      row.AccountID,
		Name:           row.NameCased,
		Path:           row.Path,
		Deprecated:     row.Deprecated,
		PolicyType:     row.PolicyType,
		DefaultVersion: row.DefaultVersion,
		LastVersion:    row.LastVersion,
		CreatedAt:      row.CreatedAt,
	}
}

type policyVersionRow struct {
	PolicyID  string    `db:"policy_id"`
	Version   int       `db:"version"`
	Document  string    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
}

func (row policyVersionRow) toDomain() *domain.ManagedPolicyVersion {
	return &domain.ManagedPolicyVersion{
		PolicyID:  row.PolicyID,
		Version:   row.Version,
		Document:  row.Document,
		CreatedAt: row.CreatedAt,
	}
}

const policySelect = `
	SELECT id, account_id, name_cased, path, deprecated, policy_type,
	       default_version, last_version, created_at
	FROM iam_policy`

// Create inserts the policy together with its first version, which
// becomes the default.
func (r *PolicyRepo) Create(ctx context.Context, p *domain.ManagedPolicy, document string) (*domain.ManagedPolicy, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindPolicy, r.exists)
	if err != nil {
		return nil, err
	}

	created := &domain.ManagedPolicy{
		ID:             id,
		AccountID:      p.AccountID,
		Name:           p.Name,
		Path:           p.Path,
		PolicyType:     p.PolicyType,
		DefaultVersion: 1,
		LastVersion:    1,
		CreatedAt:      time.Now().UTC(),
	}
	err = inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO iam_policy (id, account_id, name_lower, name_cased, path,
			                        deprecated, policy_type, default_version, last_version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			created.ID, created.AccountID, strings.ToLower(created.Name), created.Name,
			created.Path, false, created.PolicyType, 1, 1, created.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO iam_policy_version (policy_id, version, document, created_at)
			VALUES (?, ?, ?, ?)`),
			created.ID, 1, document, created.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PolicyRepo) exists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_policy WHERE id = ?`, id)
	return n > 0, err
}

func (r *PolicyRepo) GetByID(ctx context.Context, id string) (*domain.ManagedPolicy, error) {
	var row policyRow
	if err := getOne(ctx, r.db, &row, "policy "+id, policySelect+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *PolicyRepo) GetByName(ctx context.Context, accountID, name string) (*domain.ManagedPolicy, error) {
	var row policyRow
	err := getOne(ctx, r.db, &row, "policy "+name,
		policySelect+` WHERE account_id = ? AND name_lower = ?`,
		accountID, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *PolicyRepo) List(ctx context.Context, accountID, pathPrefix string, includeDeprecated bool, page domain.PageRequest) ([]domain.ManagedPolicy, int64, error) {
	where := ` WHERE account_id = ?`
	args := []any{accountID}
	if pathPrefix != "" {
		where += ` AND path LIKE ?`
		args = append(args, likePrefix(pathPrefix))
	}
	if !includeDeprecated {
		where += ` AND deprecated = ?`
		args = append(args, false)
	}

	total, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_policy`+where, args...)
	if err != nil {
		return nil, 0, err
	}

	var rows []policyRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(
		policySelect+where+` ORDER BY name_lower LIMIT ? OFFSET ?`),
		append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.ManagedPolicy, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *PolicyRepo) SetDeprecated(ctx context.Context, id string, deprecated bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_policy SET deprecated = ? WHERE id = ?`), deprecated, id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "policy "+id)
}

// Delete archives the policy and all its versions. Policies still
// attached to a principal cannot be deleted.
func (r *PolicyRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var attached int64
		err := sqlx.GetContext(ctx, tx, &attached, tx.Rebind(
			`SELECT COUNT(*) FROM iam_policy_attachment WHERE policy_id = ?`), id)
		if err != nil {
			return err
		}
		if attached > 0 {
			return domain.ErrDeleteConflict("policy %s is attached to %d principals", id, attached)
		}
		err = archiveRows(ctx, tx, "iam_policy_version",
			[]string{"policy_id", "version", "document", "created_at"},
			"policy_id = ?", now, id)
		if err != nil {
			return err
		}
		return archiveRows(ctx, tx, "iam_policy",
			[]string{"id", "account_id", "name_lower", "name_cased", "path", "deprecated", "policy_type", "default_version", "last_version", "created_at"},
			"id = ?", now, id)
	})
}

// CreateVersion appends a new version, allocating the next number from
// the policy's monotonic counter. Version numbers are never reused, so
// a deleted v2 leaves v1, v3... behind and the next create yields v4.
// The transaction enforces the hard version ceiling; callers apply any
// lower per-account limit before calling.
func (r *PolicyRepo) CreateVersion(ctx context.Context, policyID, document string, setDefault bool) (*domain.ManagedPolicyVersion, error) {
	created := &domain.ManagedPolicyVersion{
		PolicyID:  policyID,
		Document:  document,
		CreatedAt: time.Now().UTC(),
	}
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE iam_policy SET last_version = last_version + 1 WHERE id = ?`), policyID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, "policy "+policyID); err != nil {
			return err
		}

		var live int64
		err = sqlx.GetContext(ctx, tx, &live, tx.Rebind(
			`SELECT COUNT(*) FROM iam_policy_version WHERE policy_id = ?`), policyID)
		if err != nil {
			return err
		}
		if live >= domain.MaxManagedPolicyVersions {
			return domain.ErrConflict("policy %s already has %d versions (limit %d)",
				policyID, live, domain.MaxManagedPolicyVersions)
		}

		var next int
		err = sqlx.GetContext(ctx, tx, &next, tx.Rebind(
			`SELECT last_version FROM iam_policy WHERE id = ?`), policyID)
		if err != nil {
			return err
		}
		created.Version = next

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO iam_policy_version (policy_id, version, document, created_at)
			VALUES (?, ?, ?, ?)`),
			policyID, next, document, created.CreatedAt)
		if err != nil {
			return err
		}
		if setDefault {
			_, err = tx.ExecContext(ctx, tx.Rebind(
				`UPDATE iam_policy SET default_version = ? WHERE id = ?`), next, policyID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PolicyRepo) GetVersion(ctx context.Context, policyID string, version int) (*domain.ManagedPolicyVersion, error) {
	var row policyVersionRow
	err := getOne(ctx, r.db, &row, "policy version "+domain.VersionID(version), `
		SELECT policy_id, version, document, created_at FROM iam_policy_version
		WHERE policy_id = ? AND version = ?`,
		policyID, version)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *PolicyRepo) GetDefaultDocument(ctx context.Context, policyID string) (string, error) {
	var document string
	err := getOne(ctx, r.db, &document, "policy "+policyID, `
		SELECT v.document
		FROM iam_policy p
		JOIN iam_policy_version v ON v.policy_id = p.id AND v.version = p.default_version
		WHERE p.id = ?`,
		policyID)
	if err != nil {
		return "", err
	}
	return document, nil
}

func (r *PolicyRepo) ListVersions(ctx context.Context, policyID string, page domain.PageRequest) ([]domain.ManagedPolicyVersion, int64, error) {
	total, err := countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_policy_version WHERE policy_id = ?`, policyID)
	if err != nil {
		return nil, 0, err
	}

	var rows []policyVersionRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT policy_id, version, document, created_at FROM iam_policy_version
		WHERE policy_id = ?
		ORDER BY version DESC
		LIMIT ? OFFSET ?`),
		policyID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.ManagedPolicyVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *PolicyRepo) SetDefaultVersion(ctx context.Context, policyID string, version int) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int64
		err := sqlx.GetContext(ctx, tx, &n, tx.Rebind(
			`SELECT COUNT(*) FROM iam_policy_version WHERE policy_id = ? AND version = ?`),
			policyID, version)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound("policy version %s not found", domain.VersionID(version))
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`UPDATE iam_policy SET default_version = ? WHERE id = ?`), version, policyID)
		return err
	})
}

// DeleteVersion archives one non-default version. The default version
// can only be removed by promoting another version first or deleting
// the whole policy.
func (r *PolicyRepo) DeleteVersion(ctx context.Context, policyID string, version int) error {
	now := time.Now().UTC()
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var defaultVersion int
		err := sqlx.GetContext(ctx, tx, &defaultVersion, tx.Rebind(
			`SELECT default_version FROM iam_policy WHERE id = ?`), policyID)
		if err != nil {
			return err
		}
		if version == defaultVersion {
			return domain.ErrDeleteConflict("cannot delete the default version %s", domain.VersionID(version))
		}

		var n int64
		err = sqlx.GetContext(ctx, tx, &n, tx.Rebind(
			`SELECT COUNT(*) FROM iam_policy_version WHERE policy_id = ? AND version = ?`),
			policyID, version)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound("policy version %s not found", domain.VersionID(version))
		}
		return archiveRows(ctx, tx, "iam_policy_version",
			[]string{"policy_id", "version", "document", "created_at"},
			"policy_id = ? AND version = ?", now, policyID, version)
	})
}

func (r *PolicyRepo) AttachmentCount(ctx context.Context, policyID string) (int64, error) {
	return countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_policy_attachment WHERE policy_id = ?`, policyID)
}

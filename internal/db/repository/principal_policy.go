package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
)

// Attachments and inline policies live in shared tables keyed by the
// principal's id; the typed id prefix keeps users, groups, and roles
// apart without per-type tables.

type attachedPolicyRow struct {
	PolicyID       string    `db:"id"`
	AccountID      string    `db:"account_id"`
	NameCased      string    `db:"name_cased"`
	Path           string    `db:"path"`
	Deprecated     bool      `db:"deprecated"`
	DefaultVersion int       `db:"default_version"`
	AttachedAt     time.Time `db:"attached_at"`
}

func (row attachedPolicyRow) toDomain() domain.AttachedPolicy {
	p := domain.ManagedPolicy{
		ID:        row.PolicyID,
		AccountID: row.AccountID,
		Name:      row.NameCased,
		Path:      row.Path,
	}
	return domain.AttachedPolicy{
		PolicyID:   row.PolicyID,
		Name:       row.NameCased,
		Path:       row.Path,
		ARN:        p.ARN(),
		Default:    row.DefaultVersion,
		Attached:   row.AttachedAt,
		Deprecated: row.Deprecated,
	}
}

func attachPolicy(ctx context.Context, q sqlx.ExtContext, principalID, policyID string) error {
	_, err := q.ExecContext(ctx, q.Rebind(
		`INSERT INTO iam_policy_attachment (policy_id, principal_id, created_at) VALUES (?, ?, ?)`),
		policyID, principalID, time.Now().UTC())
	return mapDBError(err)
}

func detachPolicy(ctx context.Context, pool *sqlx.DB, principalID, policyID string) error {
	return inTx(ctx, pool, func(tx *sqlx.Tx) error {
		return detachPolicyTx(ctx, tx, principalID, policyID)
	})
}

func detachPolicyTx(ctx context.Context, tx *sqlx.Tx, principalID, policyID string) error {
	var n int64
	err := sqlx.GetContext(ctx, tx, &n, tx.Rebind(
		`SELECT COUNT(*) FROM iam_policy_attachment WHERE policy_id = ? AND principal_id = ?`),
		policyID, principalID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("policy %s is not attached", policyID)
	}
	return archiveRows(ctx, tx, "iam_policy_attachment",
		[]string{"policy_id", "principal_id", "created_at"},
		"policy_id = ? AND principal_id = ?", time.Now().UTC(), policyID, principalID)
}

func listAttachedPolicies(ctx context.Context, q sqlx.ExtContext, principalID string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	total, err := countRows(ctx, q,
		`SELECT COUNT(*) FROM iam_policy_attachment WHERE principal_id = ?`, principalID)
	if err != nil {
		return nil, 0, err
	}

	var rows []attachedPolicyRow
	err = sqlx.SelectContext(ctx, q, &rows, q.Rebind(`
		SELECT p.id, p.account_id, p.name_cased, p.path, p.deprecated, p.default_version,
		       a.created_at AS attached_at
		FROM iam_policy_attachment a
		JOIN iam_policy p ON p.id = a.policy_id
		WHERE a.principal_id = ?
		ORDER BY p.name_lower
		LIMIT ? OFFSET ?`),
		principalID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.AttachedPolicy, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

func listAttachedPolicyDocuments(ctx context.Context, q sqlx.ExtContext, principalID string) ([]string, error) {
	var docs []string
	err := sqlx.SelectContext(ctx, q, &docs, q.Rebind(`
		SELECT v.document
		FROM iam_policy_attachment a
		JOIN iam_policy p ON p.id = a.policy_id
		JOIN iam_policy_version v ON v.policy_id = p.id AND v.version = p.default_version
		WHERE a.principal_id = ?
		ORDER BY p.name_lower`),
		principalID)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

type inlinePolicyRow struct {
	PrincipalID string `db:"principal_id"`
	NameCased   string `db:"name_cased"`
	Document    string `db:"document"`
}

func (row inlinePolicyRow) toDomain() domain.InlinePolicy {
	return domain.InlinePolicy{
		PrincipalID: row.PrincipalID,
		Name:        row.NameCased,
		Document:    row.Document,
	}
}

// putInlinePolicy inserts or replaces the named inline policy. A replaced
// document moves into history like any other delete.
func putInlinePolicy(ctx context.Context, pool *sqlx.DB, principalID string, p *domain.InlinePolicy) error {
	return inTx(ctx, pool, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		nameLower := strings.ToLower(p.Name)
		err := archiveRows(ctx, tx, "iam_inline_policy",
			[]string{"principal_id", "name_lower", "name_cased", "document", "created_at"},
			"principal_id = ? AND name_lower = ?", now, principalID, nameLower)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO iam_inline_policy (principal_id, name_lower, name_cased, document, created_at)
			 VALUES (?, ?, ?, ?, ?)`),
			principalID, nameLower, p.Name, p.Document, now)
		return err
	})
}

func getInlinePolicy(ctx context.Context, q sqlx.ExtContext, principalID, name string) (*domain.InlinePolicy, error) {
	var row inlinePolicyRow
	err := getOne(ctx, q, &row, "inline policy "+name, `
		SELECT principal_id, name_cased, document FROM iam_inline_policy
		WHERE principal_id = ? AND name_lower = ?`,
		principalID, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	p := row.toDomain()
	return &p, nil
}

func deleteInlinePolicy(ctx context.Context, pool *sqlx.DB, principalID, name string) error {
	return inTx(ctx, pool, func(tx *sqlx.Tx) error {
		nameLower := strings.ToLower(name)
		var n int64
		err := sqlx.GetContext(ctx, tx, &n, tx.Rebind(
			`SELECT COUNT(*) FROM iam_inline_policy WHERE principal_id = ? AND name_lower = ?`),
			principalID, nameLower)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound("inline policy %s not found", name)
		}
		return archiveRows(ctx, tx, "iam_inline_policy",
			[]string{"principal_id", "name_lower", "name_cased", "document", "created_at"},
			"principal_id = ? AND name_lower = ?", time.Now().UTC(), principalID, nameLower)
	})
}

func listInlinePolicies(ctx context.Context, q sqlx.ExtContext, principalID string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	total, err := countRows(ctx, q,
		`SELECT COUNT(*) FROM iam_inline_policy WHERE principal_id = ?`, principalID)
	if err != nil {
		return nil, 0, err
	}

	var rows []inlinePolicyRow
	err = sqlx.SelectContext(ctx, q, &rows, q.Rebind(`
		SELECT principal_id, name_cased, document FROM iam_inline_policy
		WHERE principal_id = ?
		ORDER BY name_lower
		LIMIT ? OFFSET ?`),
		principalID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.InlinePolicy, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

// archivePrincipalPolicies moves a deleted principal's attachments and
// inline policies into history as part of the delete transaction.
func archivePrincipalPolicies(ctx context.Context, tx *sqlx.Tx, principalID string, deletedAt time.Time) error {
	err := archiveRows(ctx, tx, "iam_policy_attachment",
		[]string{"policy_id", "principal_id", "created_at"},
		"principal_id = ?", deletedAt, principalID)
	if err != nil {
		return err
	}
	return archiveRows(ctx, tx, "iam_inline_policy",
		[]string{"principal_id", "name_lower", "name_cased", "document", "created_at"},
		"principal_id = ?", deletedAt, principalID)
}

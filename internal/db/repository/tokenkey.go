package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
)

type TokenKeyRepo struct {
	db *sqlx.DB
}

func NewTokenKeyRepo(db *sqlx.DB) *TokenKeyRepo {
	return &TokenKeyRepo{db: db}
}

type tokenKeyRow struct {
	AccessKeyID string    `db:"access_key_id"`
	RoleID      string    `db:"role_id"`
	Algorithm   string    `db:"algorithm"`
	KeyMaterial []byte    `db:"key_material"`
	ValidAt     time.Time `db:"valid_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (row tokenKeyRow) toDomain() *domain.RoleTokenKey {
	return &domain.RoleTokenKey{
		AccessKeyID: row.AccessKeyID,
		RoleID:      row.RoleID,
		Algorithm:   row.Algorithm,
		Key:         row.KeyMaterial,
		ValidAt:     row.ValidAt,
		ExpiresAt:   row.ExpiresAt,
	}
}

const tokenKeySelect = `
	SELECT access_key_id, role_id, algorithm, key_material, valid_at, expires_at
	FROM iam_role_token_key`

func (r *TokenKeyRepo) Create(ctx context.Context, k *domain.RoleTokenKey) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_role_token_key (access_key_id, role_id, algorithm, key_material, valid_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		k.AccessKeyID, k.RoleID, k.Algorithm, k.Key, k.ValidAt.UTC(), k.ExpiresAt.UTC())
	return mapDBError(err)
}

// GetByAccessKeyID returns the key even when its validity window has
// passed. Tokens sealed under an expired key stay decryptable until the
// sweep removes the key.
func (r *TokenKeyRepo) GetByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.RoleTokenKey, error) {
	var row tokenKeyRow
	err := getOne(ctx, r.db, &row, "token key "+accessKeyID,
		tokenKeySelect+` WHERE access_key_id = ?`, accessKeyID)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// GetCurrentForRole returns the valid key with the latest valid_at.
func (r *TokenKeyRepo) GetCurrentForRole(ctx context.Context, roleID string, now time.Time) (*domain.RoleTokenKey, error) {
	var row tokenKeyRow
	err := getOne(ctx, r.db, &row, "current token key for role "+roleID,
		tokenKeySelect+` WHERE role_id = ? AND valid_at <= ? AND expires_at > ?
		ORDER BY valid_at DESC LIMIT 1`,
		roleID, now.UTC(), now.UTC())
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListExpiring returns the newest key of every role whose newest key
// expires before the threshold. Each listed role needs a fresh key.
func (r *TokenKeyRepo) ListExpiring(ctx context.Context, threshold time.Time) ([]domain.RoleTokenKey, error) {
	var rows []tokenKeyRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT k.access_key_id, k.role_id, k.algorithm, k.key_material, k.valid_at, k.expires_at
		FROM iam_role_token_key k
		WHERE k.expires_at = (
			SELECT MAX(n.expires_at) FROM iam_role_token_key n WHERE n.role_id = k.role_id
		)
		AND k.expires_at < ?`),
		threshold.UTC())
	if err != nil {
		return nil, err
	}

	out := make([]domain.RoleTokenKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, nil
}

// SweepExpired archives keys whose expires_at predates the cutoff and
// reports how many moved. The cutoff must trail the maximum session
// duration so no live token loses its key.
func (r *TokenKeyRepo) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var moved int64
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO deleted_iam_role_token_key
				(access_key_id, role_id, algorithm, key_material, valid_at, expires_at, deleted_at)
			SELECT access_key_id, role_id, algorithm, key_material, valid_at, expires_at, ?
			FROM iam_role_token_key WHERE expires_at < ?`),
			time.Now().UTC(), cutoff.UTC())
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM iam_role_token_key WHERE expires_at < ?`), cutoff.UTC())
		if err != nil {
			return err
		}
		moved, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

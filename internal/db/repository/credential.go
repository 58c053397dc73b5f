package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

type CredentialRepo struct {
	db    *sqlx.DB
	alloc *ids.Allocator
}

func NewCredentialRepo(db *sqlx.DB, alloc *ids.Allocator) *CredentialRepo {
	return &CredentialRepo{db: db, alloc: alloc}
}

type accessKeyRow struct {
	AccessKeyID string    `db:"access_key_id"`
	UserID      string    `db:"user_id"`
	Secret      string    `db:"secret"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row accessKeyRow) toDomain() *domain.AccessKey {
	return &domain.AccessKey{
		UserID:    row.UserID,
		ID:        row.AccessKeyID,
		Secret:    row.Secret,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}
}

func (r *CredentialRepo) CreateAccessKey(ctx context.Context, k *domain.AccessKey) (*domain.AccessKey, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindAccessKey, r.accessKeyExists)
	if err != nil {
		return nil, err
	}

	created := &domain.AccessKey{
		UserID:    k.UserID,
		ID:        id,
		Secret:    k.Secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_user_credential (access_key_id, user_id, secret, active, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		created.ID, created.UserID, created.Secret, created.Active, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

func (r *CredentialRepo) accessKeyExists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_user_credential WHERE access_key_id = ?`, id)
	return n > 0, err
}

func (r *CredentialRepo) GetAccessKey(ctx context.Context, accessKeyID string) (*domain.AccessKey, error) {
	var row accessKeyRow
	err := getOne(ctx, r.db, &row, "access key "+accessKeyID, `
		SELECT access_key_id, user_id, secret, active, created_at
		FROM iam_user_credential WHERE access_key_id = ?`,
		accessKeyID)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ResolveAccessKey joins the key to its owning user for authentication.
func (r *CredentialRepo) ResolveAccessKey(ctx context.Context, accessKeyID string) (*domain.AccessKey, *domain.User, error) {
	type joined struct {
		accessKeyRow
		OwnerID        string         `db:"owner_id"`
		OwnerAccountID string         `db:"owner_account_id"`
		OwnerName      string         `db:"owner_name"`
		OwnerPath      string         `db:"owner_path"`
		OwnerBoundary  sql.NullString `db:"owner_boundary"`
		OwnerCreatedAt time.Time      `db:"owner_created_at"`
	}
	var row joined
	err := getOne(ctx, r.db, &row, "access key "+accessKeyID, `
		SELECT c.access_key_id, c.user_id, c.secret, c.active, c.created_at,
		       u.id AS owner_id, u.account_id AS owner_account_id,
		       u.name_cased AS owner_name, u.path AS owner_path,
		       u.permissions_boundary AS owner_boundary, u.created_at AS owner_created_at
		FROM iam_user_credential c
		JOIN iam_user u ON u.id = c.user_id
		WHERE c.access_key_id = ?`,
		accessKeyID)
	if err != nil {
		return nil, nil, err
	}
	user := &domain.User{
		ID:                  row.OwnerID,
		AccountID:           row.OwnerAccountID,
		Name:                row.OwnerName,
		Path:                row.OwnerPath,
		PermissionsBoundary: fromNullString(row.OwnerBoundary),
		CreatedAt:           row.OwnerCreatedAt,
	}
	return row.accessKeyRow.toDomain(), user, nil
}

func (r *CredentialRepo) ListAccessKeys(ctx context.Context, userID string, page domain.PageRequest) ([]domain.AccessKey, int64, error) {
	total, err := countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_user_credential WHERE user_id = ?`, userID)
	if err != nil {
		return nil, 0, err
	}

	var rows []accessKeyRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT access_key_id, user_id, secret, active, created_at
		FROM iam_user_credential
		WHERE user_id = ?
		ORDER BY created_at, access_key_id
		LIMIT ? OFFSET ?`),
		userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.AccessKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *CredentialRepo) CountAccessKeys(ctx context.Context, userID string) (int64, error) {
	return countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_user_credential WHERE user_id = ?`, userID)
}

func (r *CredentialRepo) SetAccessKeyStatus(ctx context.Context, accessKeyID string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_user_credential SET active = ? WHERE access_key_id = ?`),
		active, accessKeyID)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "access key "+accessKeyID)
}

func (r *CredentialRepo) DeleteAccessKey(ctx context.Context, accessKeyID string) error {
	if _, err := r.GetAccessKey(ctx, accessKeyID); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return archiveRows(ctx, tx, "iam_user_credential",
			[]string{"access_key_id", "user_id", "secret", "active", "created_at"},
			"access_key_id = ?", time.Now().UTC(), accessKeyID)
	})
}

type loginProfileRow struct {
	UserID            string       `db:"user_id"`
	PasswordAlgorithm string       `db:"password_algorithm"`
	PasswordHash      string       `db:"password_hash"`
	ResetRequired     bool         `db:"reset_required"`
	PasswordChangedAt time.Time    `db:"password_changed_at"`
	CreatedAt         time.Time    `db:"created_at"`
	LastUsedAt        sql.NullTime `db:"last_used_at"`
}

func (row loginProfileRow) toDomain() *domain.LoginProfile {
	p := &domain.LoginProfile{
		UserID:            row.UserID,
		PasswordAlgorithm: row.PasswordAlgorithm,
		PasswordHash:      row.PasswordHash,
		ResetRequired:     row.ResetRequired,
		PasswordChangedAt: row.PasswordChangedAt,
		CreatedAt:         row.CreatedAt,
	}
	if row.LastUsedAt.Valid {
		t := row.LastUsedAt.Time
		p.LastUsedAt = &t
	}
	return p
}

func (r *CredentialRepo) CreateLoginProfile(ctx context.Context, p *domain.LoginProfile) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_user_login_profile
			(user_id, password_algorithm, password_hash, reset_required, password_changed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		p.UserID, p.PasswordAlgorithm, p.PasswordHash, p.ResetRequired, now, now)
	return mapDBError(err)
}

func (r *CredentialRepo) GetLoginProfile(ctx context.Context, userID string) (*domain.LoginProfile, error) {
	var row loginProfileRow
	err := getOne(ctx, r.db, &row, "login profile", `
		SELECT user_id, password_algorithm, password_hash, reset_required,
		       password_changed_at, created_at, last_used_at
		FROM iam_user_login_profile WHERE user_id = ?`,
		userID)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// UpdateLoginProfile rewrites the profile. When the hash changes, the
// replaced hash lands in the password history for reuse checks.
func (r *CredentialRepo) UpdateLoginProfile(ctx context.Context, p *domain.LoginProfile) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current loginProfileRow
		err := sqlx.GetContext(ctx, tx, &current, tx.Rebind(`
			SELECT user_id, password_algorithm, password_hash, reset_required,
			       password_changed_at, created_at, last_used_at
			FROM iam_user_login_profile WHERE user_id = ?`),
			p.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if p.PasswordHash != current.PasswordHash {
			_, err = tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO iam_user_password_history (user_id, password_algorithm, password_hash, changed_at)
				VALUES (?, ?, ?, ?)`),
				p.UserID, current.PasswordAlgorithm, current.PasswordHash, now)
			if err != nil {
				return err
			}
			p.PasswordChangedAt = now
		} else {
			p.PasswordChangedAt = current.PasswordChangedAt
		}

		var lastUsed sql.NullTime
		if p.LastUsedAt != nil {
			lastUsed = sql.NullTime{Time: *p.LastUsedAt, Valid: true}
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE iam_user_login_profile
			SET password_algorithm = ?, password_hash = ?, reset_required = ?,
			    password_changed_at = ?, last_used_at = ?
			WHERE user_id = ?`),
			p.PasswordAlgorithm, p.PasswordHash, p.ResetRequired,
			p.PasswordChangedAt, lastUsed, p.UserID)
		return err
	})
}

func (r *CredentialRepo) DeleteLoginProfile(ctx context.Context, userID string) error {
	if _, err := r.GetLoginProfile(ctx, userID); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return archiveRows(ctx, tx, "iam_user_login_profile",
			[]string{"user_id", "password_algorithm", "password_hash", "reset_required", "password_changed_at", "created_at", "last_used_at"},
			"user_id = ?", time.Now().UTC(), userID)
	})
}

func (r *CredentialRepo) ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	if limit <= 0 {
		limit = 24
	}
	type historyRow struct {
		UserID            string    `db:"user_id"`
		PasswordAlgorithm string    `db:"password_algorithm"`
		PasswordHash      string    `db:"password_hash"`
		ChangedAt         time.Time `db:"changed_at"`
	}
	var rows []historyRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT user_id, password_algorithm, password_hash, changed_at
		FROM iam_user_password_history
		WHERE user_id = ?
		ORDER BY changed_at DESC
		LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PasswordHistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PasswordHistoryEntry{
			UserID:            row.UserID,
			PasswordAlgorithm: row.PasswordAlgorithm,
			PasswordHash:      row.PasswordHash,
			ChangedAt:         row.ChangedAt,
		})
	}
	return out, nil
}

type serviceCredentialRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	ServiceName string    `db:"service_name"`
	Password    string    `db:"password"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row serviceCredentialRow) toDomain() *domain.ServiceSpecificCredential {
	return &domain.ServiceSpecificCredential{
		UserID:      row.UserID,
		ID:          row.ID,
		ServiceName: row.ServiceName,
		Password:    row.Password,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
	}
}

func (r *CredentialRepo) CreateServiceCredential(ctx context.Context, c *domain.ServiceSpecificCredential) (*domain.ServiceSpecificCredential, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindServiceCredential, r.serviceCredentialExists)
	if err != nil {
		return nil, err
	}

	created := &domain.ServiceSpecificCredential{
		UserID:      c.UserID,
		ID:          id,
		ServiceName: c.ServiceName,
		Password:    c.Password,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_service_credential (id, user_id, service_name, password, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		created.ID, created.UserID, created.ServiceName, created.Password,
		created.Active, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

func (r *CredentialRepo) serviceCredentialExists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_service_credential WHERE id = ?`, id)
	return n > 0, err
}

func (r *CredentialRepo) GetServiceCredential(ctx context.Context, id string) (*domain.ServiceSpecificCredential, error) {
	var row serviceCredentialRow
	err := getOne(ctx, r.db, &row, "service credential "+id, `
		SELECT id, user_id, service_name, password, active, created_at
		FROM iam_service_credential WHERE id = ?`,
		id)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *CredentialRepo) ListServiceCredentials(ctx context.Context, userID string, page domain.PageRequest) ([]domain.ServiceSpecificCredential, int64, error) {
	total, err := countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_service_credential WHERE user_id = ?`, userID)
	if err != nil {
		return nil, 0, err
	}

	var rows []serviceCredentialRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, user_id, service_name, password, active, created_at
		FROM iam_service_credential
		WHERE user_id = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`),
		userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.ServiceSpecificCredential, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *CredentialRepo) ResetServiceCredential(ctx context.Context, id, newPassword string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_service_credential SET password = ? WHERE id = ?`), newPassword, id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "service credential "+id)
}

func (r *CredentialRepo) SetServiceCredentialStatus(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_service_credential SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "service credential "+id)
}

func (r *CredentialRepo) DeleteServiceCredential(ctx context.Context, id string) error {
	if _, err := r.GetServiceCredential(ctx, id); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return archiveRows(ctx, tx, "iam_service_credential",
			[]string{"id", "user_id", "service_name", "password", "active", "created_at"},
			"id = ?", time.Now().UTC(), id)
	})
}

type sshKeyRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Fingerprint string    `db:"fingerprint"`
	Body        string    `db:"body"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row sshKeyRow) toDomain() *domain.SSHPublicKey {
	return &domain.SSHPublicKey{
		UserID:      row.UserID,
		ID:          row.ID,
		Fingerprint: row.Fingerprint,
		Body:        row.Body,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
	}
}

func (r *CredentialRepo) CreateSSHPublicKey(ctx context.Context, k *domain.SSHPublicKey) (*domain.SSHPublicKey, error) {
	id, err := r.alloc.Allocate(ctx, ids.KindSSHPublicKey, r.sshKeyExists)
	if err != nil {
		return nil, err
	}

	created := &domain.SSHPublicKey{
		UserID:      k.UserID,
		ID:          id,
		Fingerprint: k.Fingerprint,
		Body:        k.Body,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO iam_ssh_public_key (id, user_id, fingerprint, body, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		created.ID, created.UserID, created.Fingerprint, created.Body,
		created.Active, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return created, nil
}

func (r *CredentialRepo) sshKeyExists(ctx context.Context, id string) (bool, error) {
	n, err := countRows(ctx, r.db, `SELECT COUNT(*) FROM iam_ssh_public_key WHERE id = ?`, id)
	return n > 0, err
}

func (r *CredentialRepo) GetSSHPublicKey(ctx context.Context, id string) (*domain.SSHPublicKey, error) {
	var row sshKeyRow
	err := getOne(ctx, r.db, &row, "SSH public key "+id, `
		SELECT id, user_id, fingerprint, body, active, created_at
		FROM iam_ssh_public_key WHERE id = ?`,
		id)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *CredentialRepo) ListSSHPublicKeys(ctx context.Context, userID string, page domain.PageRequest) ([]domain.SSHPublicKey, int64, error) {
	total, err := countRows(ctx, r.db,
		`SELECT COUNT(*) FROM iam_ssh_public_key WHERE user_id = ?`, userID)
	if err != nil {
		return nil, 0, err
	}

	var rows []sshKeyRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, user_id, fingerprint, body, active, created_at
		FROM iam_ssh_public_key
		WHERE user_id = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`),
		userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.SSHPublicKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, total, nil
}

func (r *CredentialRepo) SetSSHPublicKeyStatus(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE iam_ssh_public_key SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return mapDBError(err)
	}
	return mustAffect(res, "SSH public key "+id)
}

func (r *CredentialRepo) DeleteSSHPublicKey(ctx context.Context, id string) error {
	if _, err := r.GetSSHPublicKey(ctx, id); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return archiveRows(ctx, tx, "iam_ssh_public_key",
			[]string{"id", "user_id", "fingerprint", "body", "active", "created_at"},
			"id = ?", time.Now().UTC(), id)
	})
}

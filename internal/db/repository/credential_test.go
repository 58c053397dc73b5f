package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamcore/internal/domain"
)

func TestCredentialRepo_AccessKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "keys@example.com")
	u := env.user(t, acct.ID, "alice")

	k, err := env.credentials.CreateAccessKey(ctx, &domain.AccessKey{UserID: u.ID, Secret: "wJalrXUtnFEMI"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k.ID, "AKIA"))
	assert.Len(t, k.ID, 20)
	assert.True(t, k.Active)

	found, err := env.credentials.GetAccessKey(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "wJalrXUtnFEMI", found.Secret)

	// ResolveAccessKey joins the owning user in one query
	key, owner, err := env.credentials.ResolveAccessKey(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, k.ID, key.ID)
	assert.Equal(t, u.ID, owner.ID)
	assert.Equal(t, "alice", owner.Name)
	assert.Equal(t, acct.ID, owner.AccountID)

	_, err = env.credentials.CreateAccessKey(ctx, &domain.AccessKey{UserID: u.ID, Secret: "second"})
	require.NoError(t, err)

	n, err := env.credentials.CountAccessKeys(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	keys, total, err := env.credentials.ListAccessKeys(ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, keys, 2)

	require.NoError(t, env.credentials.SetAccessKeyStatus(ctx, k.ID, false))
	found, err = env.credentials.GetAccessKey(ctx, k.ID)
	require.NoError(t, err)
	assert.False(t, found.Active)
	assert.Equal(t, "Inactive", found.Status())

	require.NoError(t, env.credentials.DeleteAccessKey(ctx, k.ID))
	var nf *domain.NotFoundError
	_, err = env.credentials.GetAccessKey(ctx, k.ID)
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, env.credentials.DeleteAccessKey(ctx, k.ID), &nf)
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_user_credential", "access_key_id = ?", k.ID))
}

func TestCredentialRepo_LoginProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "profiles@example.com")
	u := env.user(t, acct.ID, "alice")

	require.NoError(t, env.credentials.CreateLoginProfile(ctx, &domain.LoginProfile{
		UserID:            u.ID,
		PasswordAlgorithm: "bcrypt:10",
		PasswordHash:      "$2a$10$first",
		ResetRequired:     true,
	}))

	// One profile per user
	var conflict *domain.ConflictError
	err := env.credentials.CreateLoginProfile(ctx, &domain.LoginProfile{
		UserID:            u.ID,
		PasswordAlgorithm: "bcrypt:10",
		PasswordHash:      "$2a$10$other",
	})
	assert.ErrorAs(t, err, &conflict)

	p, err := env.credentials.GetLoginProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.ResetRequired)
	firstChange := p.PasswordChangedAt

	// Updating without touching the hash leaves history alone
	p.ResetRequired = false
	lastUsed := time.Now().UTC().Truncate(time.Second)
	p.LastUsedAt = &lastUsed
	require.NoError(t, env.credentials.UpdateLoginProfile(ctx, p))

	history, err := env.credentials.ListPasswordHistory(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	p, err = env.credentials.GetLoginProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, p.ResetRequired)
	require.NotNil(t, p.LastUsedAt)
	assert.True(t, p.PasswordChangedAt.Equal(firstChange))

	// Changing the hash pushes the old one into history
	p.PasswordHash = "$2a$10$second"
	require.NoError(t, env.credentials.UpdateLoginProfile(ctx, p))

	history, err = env.credentials.ListPasswordHistory(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "$2a$10$first", history[0].PasswordHash)
	assert.Equal(t, "bcrypt:10", history[0].PasswordAlgorithm)

	p, err = env.credentials.GetLoginProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$second", p.PasswordHash)
	assert.False(t, p.PasswordChangedAt.Before(firstChange))

	p.PasswordHash = "$2a$10$third"
	require.NoError(t, env.credentials.UpdateLoginProfile(ctx, p))
	history, err = env.credentials.ListPasswordHistory(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "$2a$10$second", history[0].PasswordHash)

	history, err = env.credentials.ListPasswordHistory(ctx, u.ID, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, env.credentials.DeleteLoginProfile(ctx, u.ID))
	var nf *domain.NotFoundError
	_, err = env.credentials.GetLoginProfile(ctx, u.ID)
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_user_login_profile", "user_id = ?", u.ID))
}

func TestCredentialRepo_ServiceCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "svccreds@example.com")
	u := env.user(t, acct.ID, "alice")

	c, err := env.credentials.CreateServiceCredential(ctx, &domain.ServiceSpecificCredential{
		UserID:      u.ID,
		ServiceName: "codecommit.amazonaws.com",
		Password:    "generated-secret",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "ACCA"))
	assert.True(t, c.Active)

	found, err := env.credentials.GetServiceCredential(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "codecommit.amazonaws.com", found.ServiceName)

	require.NoError(t, env.credentials.ResetServiceCredential(ctx, c.ID, "rotated-secret"))
	found, err = env.credentials.GetServiceCredential(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated-secret", found.Password)

	require.NoError(t, env.credentials.SetServiceCredentialStatus(ctx, c.ID, false))
	creds, total, err := env.credentials.ListServiceCredentials(ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, creds, 1)
	assert.False(t, creds[0].Active)

	require.NoError(t, env.credentials.DeleteServiceCredential(ctx, c.ID))
	var nf *domain.NotFoundError
	_, err = env.credentials.GetServiceCredential(ctx, c.ID)
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_service_credential", "id = ?", c.ID))
}

func TestCredentialRepo_SSHPublicKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "sshkeys@example.com")
	u := env.user(t, acct.ID, "alice")

	k, err := env.credentials.CreateSSHPublicKey(ctx, &domain.SSHPublicKey{
		UserID:      u.ID,
		Fingerprint: "SHA256:abcdef",
		Body:        "ssh-ed25519 AAAAC3Nza alice@workstation",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k.ID, "APKA"))
	assert.True(t, k.Active)

	found, err := env.credentials.GetSSHPublicKey(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "SHA256:abcdef", found.Fingerprint)

	require.NoError(t, env.credentials.SetSSHPublicKeyStatus(ctx, k.ID, false))
	keys, total, err := env.credentials.ListSSHPublicKeys(ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Active)

	require.NoError(t, env.credentials.DeleteSSHPublicKey(ctx, k.ID))
	var nf *domain.NotFoundError
	_, err = env.credentials.GetSSHPublicKey(ctx, k.ID)
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_ssh_public_key", "id = ?", k.ID))
}

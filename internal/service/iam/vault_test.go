package iam

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
	"iamcore/internal/sts"
)

func TestCredentialVault_LongTermKey(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "vault@example.com")
	u := env.user(t, acct.ID, "alice")
	k, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.NoError(t, err)

	secret, caller, err := env.vault.ResolveSecret(ctx, k.ID, "")
	require.NoError(t, err)
	assert.Equal(t, k.Secret, secret)
	assert.Equal(t, domain.CallerTypeUser, caller.Type)
	assert.Equal(t, u.ID, caller.UserID)
	assert.Equal(t, u.ARN(), caller.ARN)
	assert.Equal(t, acct.ID, caller.AccountID)
	assert.Equal(t, k.ID, caller.AccessKeyID)
}

func TestCredentialVault_InactiveKey(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "inactive@example.com")
	u := env.user(t, acct.ID, "bob")
	k, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	require.NoError(t, env.credentials.SetAccessKeyStatus(ctx, acct.ID, u.Name, k.ID, false))

	var ad *domain.AccessDeniedError
	_, _, err = env.vault.ResolveSecret(ctx, k.ID, "")
	require.ErrorAs(t, err, &ad)
	assert.Contains(t, ad.Error(), "inactive")
}

func TestCredentialVault_UnknownKey(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	var ad *domain.AccessDeniedError
	_, _, err := env.vault.ResolveSecret(ctx, "AKIA"+strings.Repeat("Q", 16), "")
	require.ErrorAs(t, err, &ad)
	assert.Contains(t, ad.Error(), "unknown")

	_, _, err = env.vault.ResolveSecret(ctx, "not-a-key-id", "")
	require.ErrorAs(t, err, &ad)
	assert.Contains(t, ad.Error(), "not recognized")
}

func TestCredentialVault_SessionCredentials(t *testing.T) {
	env := newServiceEnv(t)
	svc := env.stsService(t, nil)
	acct := env.account(t, "sessions@example.com")
	r := env.role(t, acct.ID, "worker", "")

	creds, err := svc.AssumeRole(rootCtx(acct.ID), domain.AssumeRoleRequest{
		AccountID:   acct.ID,
		RoleName:    r.Name,
		SessionName: "job-7",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(creds.AccessKeyID, "ASIA"))

	secret, caller, err := env.vault.ResolveSecret(context.Background(), creds.AccessKeyID, creds.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, creds.SecretAccessKey, secret)
	assert.Equal(t, domain.CallerTypeAssumedRole, caller.Type)
	assert.Equal(t, r.ID, caller.RoleID)
	assert.Equal(t, "job-7", caller.SessionName)
	assert.Equal(t, r.SessionARN("job-7"), caller.ARN)
	assert.Equal(t, acct.ID, caller.AccountID)

	// Temporary credentials are useless without their session token
	var te *domain.TokenError
	_, _, err = env.vault.ResolveSecret(context.Background(), creds.AccessKeyID, "")
	require.ErrorAs(t, err, &te)

	_, _, err = env.vault.ResolveSecret(context.Background(), creds.AccessKeyID, "v1.garbage.token")
	assert.Error(t, err)
}

func TestCredentialVault_SessionDiesWithRole(t *testing.T) {
	env := newServiceEnv(t)
	svc := env.stsService(t, nil)
	acct := env.account(t, "shortlived@example.com")
	r := env.role(t, acct.ID, "ephemeral", "")

	creds, err := svc.AssumeRole(rootCtx(acct.ID), domain.AssumeRoleRequest{
		AccountID:   acct.ID,
		RoleName:    r.Name,
		SessionName: "doomed",
	})
	require.NoError(t, err)

	require.NoError(t, env.roles.Delete(context.Background(), acct.ID, r.Name))

	// A fresh token service has no cached copy of the deleted key, so the
	// outstanding session cannot be decrypted anywhere else
	fresh := NewCredentialVault(env.credRepo,
		sts.NewTokenService(env.tokenKeyRepo, ids.NewAllocator(), slog.New(slog.NewTextHandler(io.Discard, nil)), 0))
	var te *domain.TokenError
	_, _, err = fresh.ResolveSecret(context.Background(), creds.AccessKeyID, creds.SessionToken)
	assert.ErrorAs(t, err, &te)
}

package iam

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"iamcore/internal/domain"
)

func TestCredentialService_AccessKeys(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "keys@example.com")
	u := env.user(t, acct.ID, "alice")

	k1, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k1.ID, "AKIA"))
	assert.Len(t, k1.ID, 20)
	assert.Len(t, k1.Secret, 40)
	assert.True(t, k1.Active)

	k2, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.NotEqual(t, k1.Secret, k2.Secret)

	// The default per-user limit is two
	var le *domain.LimitExceededError
	_, err = env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.ErrorAs(t, err, &le)

	keys, total, err := env.credentials.ListAccessKeys(ctx, acct.ID, u.Name, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, k := range keys {
		assert.Empty(t, k.Secret)
	}

	require.NoError(t, env.credentials.DeleteAccessKey(ctx, acct.ID, u.Name, k1.ID))
	k3, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.NotEqual(t, k1.ID, k3.ID)
}

func TestCredentialService_AccessKeyLimitOverride(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "morekeys@example.com")
	u := env.user(t, acct.ID, "bob")
	env.overrideLimit(t, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser, 3)

	for i := 0; i < 3; i++ {
		_, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
		require.NoError(t, err)
	}
	var le *domain.LimitExceededError
	_, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	assert.ErrorAs(t, err, &le)
}

func TestCredentialService_AccessKeyOwnership(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "ownership@example.com")
	owner := env.user(t, acct.ID, "carol")
	other := env.user(t, acct.ID, "dave")

	k, err := env.credentials.CreateAccessKey(ctx, acct.ID, owner.Name)
	require.NoError(t, err)

	var nf *domain.NotFoundError
	err = env.credentials.DeleteAccessKey(ctx, acct.ID, other.Name, k.ID)
	require.ErrorAs(t, err, &nf)
	err = env.credentials.SetAccessKeyStatus(ctx, acct.ID, other.Name, k.ID, false)
	require.ErrorAs(t, err, &nf)

	require.NoError(t, env.credentials.SetAccessKeyStatus(ctx, acct.ID, owner.Name, k.ID, false))
	keys, _, err := env.credentials.ListAccessKeys(ctx, acct.ID, owner.Name, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "Inactive", keys[0].Status())
}

func TestCredentialService_LoginProfile(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "console@example.com")
	u := env.user(t, acct.ID, "erin")

	var ve *domain.ValidationError
	_, err := env.credentials.CreateLoginProfile(ctx, acct.ID, u.Name, domain.CreateLoginProfileRequest{
		Password: "short",
	})
	require.ErrorAs(t, err, &ve)

	_, err = env.credentials.CreateLoginProfile(ctx, acct.ID, u.Name, domain.CreateLoginProfileRequest{
		Password:      "correct horse battery",
		ResetRequired: true,
	})
	require.NoError(t, err)

	got, err := env.credentials.GetLoginProfile(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.Empty(t, got.PasswordHash)
	assert.True(t, got.ResetRequired)
	assert.True(t, strings.HasPrefix(got.PasswordAlgorithm, "bcrypt:"))

	verified, err := env.credentials.VerifyPassword(ctx, acct.ID, u.Name, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, u.ID, verified.ID)

	var ad *domain.AccessDeniedError
	_, err = env.credentials.VerifyPassword(ctx, acct.ID, u.Name, "wrong")
	require.ErrorAs(t, err, &ad)
	_, err = env.credentials.VerifyPassword(ctx, acct.ID, "nobody", "wrong")
	require.ErrorAs(t, err, &ad)

	require.NoError(t, env.credentials.DeleteLoginProfile(ctx, acct.ID, u.Name))
	var nf *domain.NotFoundError
	_, err = env.credentials.GetLoginProfile(ctx, acct.ID, u.Name)
	assert.ErrorAs(t, err, &nf)
}

func TestCredentialService_PasswordReuse(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "reuse@example.com")
	u := env.user(t, acct.ID, "frank")

	_, err := env.credentials.CreateLoginProfile(ctx, acct.ID, u.Name, domain.CreateLoginProfileRequest{
		Password: "first password",
	})
	require.NoError(t, err)

	var ve *domain.ValidationError
	err = env.credentials.UpdateLoginProfile(ctx, acct.ID, u.Name, "first password", nil)
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "differ")

	require.NoError(t, env.credentials.UpdateLoginProfile(ctx, acct.ID, u.Name, "second password", nil))

	// The retired hash stays in history and blocks going back
	err = env.credentials.UpdateLoginProfile(ctx, acct.ID, u.Name, "first password", nil)
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "recently")

	verified, err := env.credentials.VerifyPassword(ctx, acct.ID, u.Name, "second password")
	require.NoError(t, err)
	assert.Equal(t, u.ID, verified.ID)

	// Flag-only updates leave the password alone
	reset := true
	require.NoError(t, env.credentials.UpdateLoginProfile(ctx, acct.ID, u.Name, "", &reset))
	got, err := env.credentials.GetLoginProfile(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.True(t, got.ResetRequired)
	_, err = env.credentials.VerifyPassword(ctx, acct.ID, u.Name, "second password")
	assert.NoError(t, err)
}

func TestCredentialService_ServiceCredentials(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "svccreds@example.com")
	u := env.user(t, acct.ID, "grace")

	c, err := env.credentials.CreateServiceCredential(ctx, acct.ID, u.Name, domain.CreateServiceCredentialRequest{
		ServiceName: "codecommit.amazonaws.com",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "ACCA"))
	assert.Len(t, c.Password, 40)
	assert.Equal(t, "grace-at-"+acct.ID, c.ServiceUserName)

	list, total, err := env.credentials.ListServiceCredentials(ctx, acct.ID, u.Name, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Password)
	assert.Equal(t, c.ServiceUserName, list[0].ServiceUserName)

	reset, err := env.credentials.ResetServiceCredential(ctx, acct.ID, u.Name, c.ID)
	require.NoError(t, err)
	assert.Len(t, reset.Password, 40)
	assert.NotEqual(t, c.Password, reset.Password)

	require.NoError(t, env.credentials.SetServiceCredentialStatus(ctx, acct.ID, u.Name, c.ID, false))
	require.NoError(t, env.credentials.DeleteServiceCredential(ctx, acct.ID, u.Name, c.ID))

	var nf *domain.NotFoundError
	_, err = env.credentials.ResetServiceCredential(ctx, acct.ID, u.Name, c.ID)
	assert.ErrorAs(t, err, &nf)
}

func testSSHKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return string(ssh.MarshalAuthorizedKey(sshPub))
}

func TestCredentialService_SSHPublicKeys(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "sshkeys@example.com")
	u := env.user(t, acct.ID, "heidi")

	var ve *domain.ValidationError
	_, err := env.credentials.UploadSSHPublicKey(ctx, acct.ID, u.Name, domain.UploadSSHPublicKeyRequest{
		Body: "not a key",
	})
	require.ErrorAs(t, err, &ve)

	body := testSSHKey(t)
	k, err := env.credentials.UploadSSHPublicKey(ctx, acct.ID, u.Name, domain.UploadSSHPublicKeyRequest{
		Body: body,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k.ID, "APKA"))
	assert.True(t, strings.HasPrefix(k.Fingerprint, "SHA256:"))
	assert.True(t, k.Active)

	got, err := env.credentials.GetSSHPublicKey(ctx, acct.ID, u.Name, k.ID)
	require.NoError(t, err)
	assert.Equal(t, body, got.Body)
	assert.Equal(t, k.Fingerprint, got.Fingerprint)

	require.NoError(t, env.credentials.SetSSHPublicKeyStatus(ctx, acct.ID, u.Name, k.ID, false))
	list, _, err := env.credentials.ListSSHPublicKeys(ctx, acct.ID, u.Name, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)

	require.NoError(t, env.credentials.DeleteSSHPublicKey(ctx, acct.ID, u.Name, k.ID))
	var nf *domain.NotFoundError
	_, err = env.credentials.GetSSHPublicKey(ctx, acct.ID, u.Name, k.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestCredentialService_UserDeleteCascades(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "cascade@example.com")
	u := env.user(t, acct.ID, "ivan")

	k, err := env.credentials.CreateAccessKey(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	_, err = env.credentials.CreateLoginProfile(ctx, acct.ID, u.Name, domain.CreateLoginProfileRequest{
		Password: "cascade test pw",
	})
	require.NoError(t, err)

	require.NoError(t, env.users.Delete(ctx, acct.ID, u.Name))

	var nf *domain.NotFoundError
	_, err = env.credRepo.GetAccessKey(ctx, k.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = env.credRepo.GetLoginProfile(ctx, u.ID)
	assert.ErrorAs(t, err, &nf)
}

package iam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamcore/internal/domain"
)

func TestPolicyService_Create(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "policies@example.com")

	p, err := env.policies.Create(ctx, domain.CreatePolicyRequest{
		AccountID: acct.ID,
		Name:      "S3Read",
		Document:  allowReadDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyTypeLocal, p.PolicyType)
	assert.Equal(t, 1, p.DefaultVersion)
	assert.Equal(t, 1, p.LastVersion)

	doc, err := env.policies.GetDefaultDocument(ctx, acct.ID, "S3Read")
	require.NoError(t, err)
	assert.Equal(t, allowReadDocument, doc)

	var ve *domain.ValidationError
	_, err = env.policies.Create(ctx, domain.CreatePolicyRequest{
		AccountID: acct.ID,
		Name:      "Broken",
		Document:  `{"Statement":[{"Effect":"Maybe"}]}`,
	})
	assert.ErrorAs(t, err, &ve)
}

func TestPolicyService_AWSManagedOwnership(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	env.seedAccount(t)
	acct := env.account(t, "tenant@example.com")

	// AWS-managed policies live only in the seed account
	var ve *domain.ValidationError
	_, err := env.policies.Create(ctx, domain.CreatePolicyRequest{
		AccountID:  acct.ID,
		Name:       "ReadOnlyAccess",
		Document:   allowReadDocument,
		PolicyType: domain.PolicyTypeAWS,
	})
	require.ErrorAs(t, err, &ve)

	curated, err := env.policies.Create(ctx, domain.CreatePolicyRequest{
		AccountID:  domain.SeedAccountID,
		Name:       "ReadOnlyAccess",
		Document:   allowReadDocument,
		PolicyType: domain.PolicyTypeAWS,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyTypeAWS, curated.PolicyType)

	// Tenants resolve curated policies by bare name and by ARN
	u := env.user(t, acct.ID, "peggy")
	require.NoError(t, env.users.AttachPolicy(ctx, acct.ID, u.Name, "ReadOnlyAccess"))
	require.NoError(t, env.users.DetachPolicy(ctx, acct.ID, u.Name, curated.ARN()))

	// A local policy with the same name shadows the curated one
	local := env.managedPolicy(t, acct.ID, "ReadOnlyAccess", allowAllDocument)
	got, err := env.policies.Get(ctx, acct.ID, "ReadOnlyAccess")
	require.NoError(t, err)
	assert.Equal(t, local.ID, got.ID)
}

func TestPolicyService_Versions(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "versions@example.com")
	p := env.managedPolicy(t, acct.ID, "Evolving", allowReadDocument)

	v2, err := env.policies.CreateVersion(ctx, acct.ID, p.Name, domain.CreatePolicyVersionRequest{
		Document:   allowAllDocument,
		SetDefault: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "v2", v2.VersionID())

	doc, err := env.policies.GetDefaultDocument(ctx, acct.ID, p.Name)
	require.NoError(t, err)
	assert.Equal(t, allowAllDocument, doc)

	got, err := env.policies.GetVersion(ctx, acct.ID, p.Name, "v1")
	require.NoError(t, err)
	assert.Equal(t, allowReadDocument, got.Document)

	var ve *domain.ValidationError
	_, err = env.policies.GetVersion(ctx, acct.ID, p.Name, "version-1")
	assert.ErrorAs(t, err, &ve)

	require.NoError(t, env.policies.SetDefaultVersion(ctx, acct.ID, p.Name, "v1"))
	doc, err = env.policies.GetDefaultDocument(ctx, acct.ID, p.Name)
	require.NoError(t, err)
	assert.Equal(t, allowReadDocument, doc)
}

func TestPolicyService_VersionLimit(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "versionlimit@example.com")
	p := env.managedPolicy(t, acct.ID, "Crowded", allowReadDocument)

	for i := 0; i < domain.MaxManagedPolicyVersions-1; i++ {
		_, err := env.policies.CreateVersion(ctx, acct.ID, p.Name, domain.CreatePolicyVersionRequest{
			Document: allowReadDocument,
		})
		require.NoError(t, err)
	}

	var le *domain.LimitExceededError
	_, err := env.policies.CreateVersion(ctx, acct.ID, p.Name, domain.CreatePolicyVersionRequest{
		Document: allowReadDocument,
	})
	require.ErrorAs(t, err, &le)

	// Deleting a version frees a slot; version numbers keep growing
	require.NoError(t, env.policies.DeleteVersion(ctx, acct.ID, p.Name, "v2"))
	v, err := env.policies.CreateVersion(ctx, acct.ID, p.Name, domain.CreatePolicyVersionRequest{
		Document: allowAllDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, v.Version)
}

func TestPolicyService_VersionLimitOverride(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "lowered@example.com")
	env.overrideLimit(t, acct.ID, domain.LimitServiceIAM, domain.LimitPolicyVersions, 1)
	p := env.managedPolicy(t, acct.ID, "Pinned", allowReadDocument)

	var le *domain.LimitExceededError
	_, err := env.policies.CreateVersion(ctx, acct.ID, p.Name, domain.CreatePolicyVersionRequest{
		Document: allowAllDocument,
	})
	assert.ErrorAs(t, err, &le)
}

func TestPolicyService_Deprecation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "deprecation@example.com")
	env.managedPolicy(t, acct.ID, "Current", allowReadDocument)
	old := env.managedPolicy(t, acct.ID, "Legacy", allowReadDocument)

	require.NoError(t, env.policies.SetDeprecated(ctx, acct.ID, old.Name, true))

	live, total, err := env.policies.List(ctx, acct.ID, "", false, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, live, 1)
	assert.Equal(t, "Current", live[0].Name)

	all, total, err := env.policies.List(ctx, acct.ID, "", true, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	// Deprecation is reversible
	require.NoError(t, env.policies.SetDeprecated(ctx, acct.ID, old.Name, false))
	_, total, err = env.policies.List(ctx, acct.ID, "", false, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestPolicyService_Delete(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "policydelete@example.com")
	u := env.user(t, acct.ID, "quentin")
	p := env.managedPolicy(t, acct.ID, "Attached", allowReadDocument)

	require.NoError(t, env.users.AttachPolicy(ctx, acct.ID, u.Name, p.Name))
	var ce *domain.ConflictError
	err := env.policies.Delete(ctx, acct.ID, p.Name)
	require.ErrorAs(t, err, &ce)

	require.NoError(t, env.users.DetachPolicy(ctx, acct.ID, u.Name, p.Name))
	require.NoError(t, env.policies.Delete(ctx, acct.ID, p.Name))

	var nf *domain.NotFoundError
	_, err = env.policies.Get(ctx, acct.ID, p.Name)
	assert.ErrorAs(t, err, &nf)
}

package iam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamcore/internal/domain"
)

func TestUserService_Create(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "users@example.com")

	u, err := env.users.Create(ctx, domain.CreateUserRequest{
		AccountID: acct.ID,
		Name:      "alice",
		Path:      "/engineering/",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, "/engineering/", u.Path)
	assert.Equal(t, "arn:aws:iam::"+acct.ID+":user/engineering/alice", u.ARN())
	assert.Empty(t, u.PermissionsBoundary)

	var nf *domain.NotFoundError
	_, err = env.users.Create(ctx, domain.CreateUserRequest{AccountID: "999999999999", Name: "ghost"})
	assert.ErrorAs(t, err, &nf)

	var ve *domain.ValidationError
	_, err = env.users.Create(ctx, domain.CreateUserRequest{AccountID: acct.ID, Name: "bad name"})
	assert.ErrorAs(t, err, &ve)
}

func TestUserService_CreateWithBoundary(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "bounded@example.com")
	boundary := env.managedPolicy(t, acct.ID, "ReadBoundary", allowReadDocument)

	u, err := env.users.Create(ctx, domain.CreateUserRequest{
		AccountID:           acct.ID,
		Name:                "bob",
		PermissionsBoundary: boundary.Name,
	})
	require.NoError(t, err)
	assert.Equal(t, boundary.ID, u.PermissionsBoundary)

	stored, err := env.users.Get(ctx, acct.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, boundary.ID, stored.PermissionsBoundary)

	var nf *domain.NotFoundError
	_, err = env.users.Create(ctx, domain.CreateUserRequest{
		AccountID:           acct.ID,
		Name:                "carol",
		PermissionsBoundary: "NoSuchPolicy",
	})
	assert.ErrorAs(t, err, &nf)
}

func TestUserService_Boundary(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "boundary@example.com")
	u := env.user(t, acct.ID, "dave")
	boundary := env.managedPolicy(t, acct.ID, "Boundary", allowReadDocument)

	var nf *domain.NotFoundError
	err := env.users.DeletePermissionsBoundary(ctx, acct.ID, u.Name)
	require.ErrorAs(t, err, &nf)

	require.NoError(t, env.users.SetPermissionsBoundary(ctx, acct.ID, u.Name, boundary.ARN()))
	got, err := env.users.Get(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.Equal(t, boundary.ID, got.PermissionsBoundary)

	require.NoError(t, env.users.DeletePermissionsBoundary(ctx, acct.ID, u.Name))
	got, err = env.users.Get(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	assert.Empty(t, got.PermissionsBoundary)
}

func TestUserService_Update(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "rename@example.com")
	env.user(t, acct.ID, "erin")

	updated, err := env.users.Update(ctx, acct.ID, "erin", domain.UpdateUserRequest{NewName: "erin2"})
	require.NoError(t, err)
	assert.Equal(t, "erin2", updated.Name)

	var nf *domain.NotFoundError
	_, err = env.users.Get(ctx, acct.ID, "erin")
	assert.ErrorAs(t, err, &nf)

	var ve *domain.ValidationError
	_, err = env.users.Update(ctx, acct.ID, "erin2", domain.UpdateUserRequest{})
	assert.ErrorAs(t, err, &ve)
}

func TestUserService_Delete(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "delete@example.com")
	env.user(t, acct.ID, "frank")

	require.NoError(t, env.users.Delete(ctx, acct.ID, "frank"))
	var nf *domain.NotFoundError
	_, err := env.users.Get(ctx, acct.ID, "frank")
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, env.users.Delete(ctx, acct.ID, "frank"), &nf)
}

func TestUserService_AttachPolicy(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "attach@example.com")
	u := env.user(t, acct.ID, "grace")
	p := env.managedPolicy(t, acct.ID, "ReadOnly", allowReadDocument)

	require.NoError(t, env.users.AttachPolicy(ctx, acct.ID, u.Name, p.ARN()))
	attached, total, err := env.users.ListAttachedPolicies(ctx, acct.ID, u.Name, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, attached, 1)
	assert.Equal(t, p.ID, attached[0].PolicyID)
	assert.Equal(t, p.ARN(), attached[0].ARN)

	// Names and 21-character ids resolve the same policy
	require.NoError(t, env.users.DetachPolicy(ctx, acct.ID, u.Name, "ReadOnly"))
	require.NoError(t, env.users.AttachPolicy(ctx, acct.ID, u.Name, p.ID))
	require.NoError(t, env.users.DetachPolicy(ctx, acct.ID, u.Name, p.ID))

	_, total, err = env.users.ListAttachedPolicies(ctx, acct.ID, u.Name, domain.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUserService_AttachDeprecatedPolicy(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "deprecated@example.com")
	u := env.user(t, acct.ID, "heidi")
	p := env.managedPolicy(t, acct.ID, "OldPolicy", allowReadDocument)

	require.NoError(t, env.policies.SetDeprecated(ctx, acct.ID, p.Name, true))

	var ce *domain.ConflictError
	err := env.users.AttachPolicy(ctx, acct.ID, u.Name, p.Name)
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "deprecated")
}

func TestUserService_InlinePolicies(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "inline@example.com")
	u := env.user(t, acct.ID, "ivan")

	var ve *domain.ValidationError
	err := env.users.PutInlinePolicy(ctx, acct.ID, u.Name, domain.PutInlinePolicyRequest{
		Name:     "broken",
		Document: `{"Version":"2012-10-17"}`,
	})
	require.ErrorAs(t, err, &ve)

	err = env.users.PutInlinePolicy(ctx, acct.ID, u.Name, domain.PutInlinePolicyRequest{
		Name:     "read-things",
		Document: allowReadDocument,
	})
	require.NoError(t, err)

	got, err := env.users.GetInlinePolicy(ctx, acct.ID, u.Name, "read-things")
	require.NoError(t, err)
	assert.Equal(t, allowReadDocument, got.Document)

	list, total, err := env.users.ListInlinePolicies(ctx, acct.ID, u.Name, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	require.NoError(t, env.users.DeleteInlinePolicy(ctx, acct.ID, u.Name, "read-things"))
	var nf *domain.NotFoundError
	_, err = env.users.GetInlinePolicy(ctx, acct.ID, u.Name, "read-things")
	assert.ErrorAs(t, err, &nf)
}

func TestUserService_ListGroups(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "membership@example.com")
	u := env.user(t, acct.ID, "judy")
	g, err := env.groups.Create(ctx, domain.CreateGroupRequest{AccountID: acct.ID, Name: "admins"})
	require.NoError(t, err)

	require.NoError(t, env.groups.AddMember(ctx, acct.ID, g.Name, u.Name))

	groups, err := env.users.ListGroups(ctx, acct.ID, u.Name)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "admins", groups[0].Name)
}

package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamcore/internal/domain"
)

func TestUserRepo_CRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "users@example.com")

	// Create
	u, err := env.users.Create(ctx, &domain.User{
		AccountID: acct.ID,
		Name:      "Alice",
		Path:      "/engineering/",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.ID, "AIDA"))
	assert.Len(t, u.ID, 21)
	assert.Equal(t, "Alice", u.Name)

	// GetByID
	found, err := env.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Name)
	assert.Equal(t, "/engineering/", found.Path)

	// GetByName is case-insensitive but the stored casing survives
	found, err = env.users.GetByName(ctx, acct.ID, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.Equal(t, "Alice", found.Name)

	// Duplicate name differing only in case conflicts
	_, err = env.users.Create(ctx, &domain.User{AccountID: acct.ID, Name: "alice", Path: "/"})
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)

	// Same name in another account is fine
	other := env.account(t, "other@example.com")
	_, err = env.users.Create(ctx, &domain.User{AccountID: other.ID, Name: "alice", Path: "/"})
	require.NoError(t, err)

	// Update rename
	renamed, err := env.users.Update(ctx, u.ID, "Alicia", "")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", renamed.Name)
	assert.Equal(t, "/engineering/", renamed.Path)

	// Boundary set and clear
	boundary := env.policy(t, acct.ID, "boundary")
	require.NoError(t, env.users.SetPermissionsBoundary(ctx, u.ID, boundary.ID))
	found, err = env.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, boundary.ID, found.PermissionsBoundary)

	require.NoError(t, env.users.SetPermissionsBoundary(ctx, u.ID, ""))
	found, err = env.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, found.PermissionsBoundary)
}

func TestUserRepo_ListByPathPrefix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "list@example.com")

	for _, spec := range []struct{ name, path string }{
		{"alice", "/engineering/"},
		{"bob", "/engineering/backend/"},
		{"carol", "/finance/"},
	} {
		_, err := env.users.Create(ctx, &domain.User{AccountID: acct.ID, Name: spec.name, Path: spec.path})
		require.NoError(t, err)
	}

	users, total, err := env.users.List(ctx, acct.ID, "/engineering/", domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)

	users, total, err = env.users.List(ctx, acct.ID, "", domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// Pagination
	users, total, err = env.users.List(ctx, acct.ID, "", domain.PageRequest{MaxItems: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)
}

func TestUserRepo_DeleteArchivesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "del@example.com")
	u := env.user(t, acct.ID, "doomed")

	_, err := env.credentials.CreateAccessKey(ctx, &domain.AccessKey{UserID: u.ID, Secret: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, env.credentials.CreateLoginProfile(ctx, &domain.LoginProfile{
		UserID:            u.ID,
		PasswordAlgorithm: "bcrypt:10",
		PasswordHash:      "$2a$10$hash",
	}))

	p := env.policy(t, acct.ID, "attached")
	require.NoError(t, env.users.AttachPolicy(ctx, u.ID, p.ID))
	require.NoError(t, env.users.PutInlinePolicy(ctx, u.ID, &domain.InlinePolicy{
		Name:     "inline",
		Document: testPolicyDocument,
	}))

	require.NoError(t, env.users.Delete(ctx, u.ID))

	var nf *domain.NotFoundError
	_, err = env.users.GetByID(ctx, u.ID)
	assert.ErrorAs(t, err, &nf)

	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_user", "id = ?", u.ID))
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_user_credential", "user_id = ?", u.ID))
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_user_login_profile", "user_id = ?", u.ID))
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_policy_attachment", "principal_id = ?", u.ID))
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_inline_policy", "principal_id = ?", u.ID))

	// The managed policy itself survives its holder.
	_, err = env.policies.GetByID(ctx, p.ID)
	assert.NoError(t, err)
}

func TestUserRepo_AttachedAndInlinePolicies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.account(t, "pol@example.com")
	u := env.user(t, acct.ID, "alice")
	p := env.policy(t, acct.ID, "ReadOnly")

	require.NoError(t, env.users.AttachPolicy(ctx, u.ID, p.ID))

	// Re-attaching conflicts
	var conflict *domain.ConflictError
	assert.ErrorAs(t, env.users.AttachPolicy(ctx, u.ID, p.ID), &conflict)

	attached, total, err := env.users.ListAttachedPolicies(ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, attached, 1)
	assert.Equal(t, p.ID, attached[0].PolicyID)
	assert.Equal(t, "ReadOnly", attached[0].Name)
	assert.Contains(t, attached[0].ARN, ":policy/ReadOnly")

	docs, err := env.users.ListAttachedPolicyDocuments(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, testPolicyDocument, docs[0])

	// Inline policies replace on put
	require.NoError(t, env.users.PutInlinePolicy(ctx, u.ID, &domain.InlinePolicy{Name: "extra", Document: testPolicyDocument}))
	updated := `{"Version":"2012-10-17","Statement":[{"Effect":"Deny","Action":"*","Resource":"*"}]}`
	require.NoError(t, env.users.PutInlinePolicy(ctx, u.ID, &domain.InlinePolicy{Name: "Extra", Document: updated}))

	inline, err := env.users.GetInlinePolicy(ctx, u.ID, "extra")
	require.NoError(t, err)
	assert.Equal(t, "Extra", inline.Name)
	assert.JSONEq(t, updated, inline.Document)

	// The replaced document went to history.
	assert.Equal(t, int64(1), env.historyCount(t, "deleted_iam_inline_policy", "principal_id = ?", u.ID))

	policies, total, err := env.users.ListInlinePolicies(ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, policies, 1)

	// Detach and delete inline
	require.NoError(t, env.users.DetachPolicy(ctx, u.ID, p.ID))
	var nf *domain.NotFoundError
	assert.ErrorAs(t, env.users.DetachPolicy(ctx, u.ID, p.ID), &nf)

	require.NoError(t, env.users.DeleteInlinePolicy(ctx, u.ID, "extra"))
	_, err = env.users.GetInlinePolicy(ctx, u.ID, "extra")
	assert.ErrorAs(t, err, &nf)
}

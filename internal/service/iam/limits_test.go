package iam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamcore/internal/domain"
)

func TestLimitEnforcer_EffectiveInt(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "quota@example.com")

	v, err := env.enforcer.EffectiveInt(ctx, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxAccessKeysPerUser, v)

	env.overrideLimit(t, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser, 5)
	v, err = env.enforcer.EffectiveInt(ctx, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	// Other accounts keep the default
	other := env.account(t, "other@example.com")
	v, err = env.enforcer.EffectiveInt(ctx, other.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxAccessKeysPerUser, v)

	var nf *domain.NotFoundError
	_, err = env.enforcer.EffectiveInt(ctx, acct.ID, domain.LimitServiceIAM, "no_such_limit")
	assert.ErrorAs(t, err, &nf)
}

func TestLimitEnforcer_CheckEnabled(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "org@example.com")

	// create_account defaults to 0: disabled
	err := env.enforcer.CheckEnabled(ctx, acct.ID, domain.LimitServiceOrganizations, domain.LimitCreateAccount)
	var le *domain.LimitExceededError
	require.ErrorAs(t, err, &le)

	env.overrideLimit(t, acct.ID, domain.LimitServiceOrganizations, domain.LimitCreateAccount, 1)
	err = env.enforcer.CheckEnabled(ctx, acct.ID, domain.LimitServiceOrganizations, domain.LimitCreateAccount)
	assert.NoError(t, err)
}

func TestLimitEnforcer_CheckBelow(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "below@example.com")

	err := env.enforcer.CheckBelow(ctx, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser, 1)
	assert.NoError(t, err)

	err = env.enforcer.CheckBelow(ctx, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser, 2)
	var le *domain.LimitExceededError
	assert.ErrorAs(t, err, &le)
}

func TestLimitService_GetAccountLimit(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "limits@example.com")

	eff, err := env.limits.GetAccountLimit(ctx, acct.ID, "sts/max_session_duration_seconds", "")
	require.NoError(t, err)
	assert.Equal(t, 43200, eff.Value)
	assert.False(t, eff.Overridden)
	assert.Equal(t, domain.GlobalRegion, eff.Region)

	env.overrideLimit(t, acct.ID, domain.LimitServiceSTS, domain.LimitMaxSessionDuration, 7200)
	eff, err = env.limits.GetAccountLimit(ctx, acct.ID, "sts/max_session_duration_seconds", "")
	require.NoError(t, err)
	assert.Equal(t, 7200, eff.Value)
	assert.True(t, eff.Overridden)

	// Bare names resolve when unambiguous
	eff, err = env.limits.GetAccountLimit(ctx, acct.ID, "max_access_keys_per_user", "")
	require.NoError(t, err)
	assert.Equal(t, domain.LimitServiceIAM, eff.Definition.ServiceName)
}

func TestLimitService_AmbiguousName(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "ambig@example.com")

	// A second service defining the same bare name forces qualification
	d := 1800
	_, err := env.limitRepo.UpsertDefinition(ctx, &domain.LimitDefinition{
		ServiceName: "console",
		LimitName:   domain.LimitMaxSessionDuration,
		Description: "Console session length",
		ValueType:   domain.LimitValueInt,
		DefaultInt:  &d,
	})
	require.NoError(t, err)

	var ve *domain.ValidationError
	_, err = env.limits.GetAccountLimit(ctx, acct.ID, domain.LimitMaxSessionDuration, "")
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "ambiguous")

	eff, err := env.limits.GetAccountLimit(ctx, acct.ID, "console/max_session_duration_seconds", "")
	require.NoError(t, err)
	assert.Equal(t, 1800, eff.Value)
}

func TestLimitService_SetAccountLimit(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	acct := env.account(t, "override@example.com")

	eff, err := env.limits.SetAccountLimit(ctx, acct.ID, "iam/max_access_keys_per_user",
		domain.PutAccountLimitRequest{IntValue: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, eff.Value)
	assert.True(t, eff.Overridden)

	v, err := env.enforcer.EffectiveInt(ctx, acct.ID, domain.LimitServiceIAM, domain.LimitAccessKeysPerUser)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	var ve *domain.ValidationError
	_, err = env.limits.SetAccountLimit(ctx, acct.ID, "iam/max_access_keys_per_user",
		domain.PutAccountLimitRequest{IntValue: intPtr(11)})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "maximum")

	_, err = env.limits.SetAccountLimit(ctx, acct.ID, "iam/max_managed_policy_versions",
		domain.PutAccountLimitRequest{IntValue: intPtr(0)})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "minimum")

	_, err = env.limits.SetAccountLimit(ctx, acct.ID, "iam/max_access_keys_per_user",
		domain.PutAccountLimitRequest{})
	assert.ErrorAs(t, err, &ve)

	var nf *domain.NotFoundError
	_, err = env.limits.SetAccountLimit(ctx, "999999999999", "iam/max_access_keys_per_user",
		domain.PutAccountLimitRequest{IntValue: intPtr(3)})
	assert.ErrorAs(t, err, &nf)
}

func TestLimitService_ListDefinitions(t *testing.T) {
	env := newServiceEnv(t)

	defs, total, err := env.limits.ListDefinitions(context.Background(), domain.PageRequest{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(4))

	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.ServiceName+"/"+d.LimitName] = true
	}
	assert.True(t, names["iam/max_managed_policy_versions"])
	assert.True(t, names["organizations/create_account"])
}

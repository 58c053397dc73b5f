package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_PolicyVersionLifecycle(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "policies@corp.example")
	env.asRoot(acct.ID)
	base := "/accounts/" + acct.ID + "/policies"

	body := fmt.Sprintf(`{"policyName":"deploy","path":"/ci/","document":%q}`, docReadOnlyIAM)
	resp := env.do(t, http.MethodPost, base, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[policyJSON](t, resp)
	assert.Equal(t, "deploy", created.PolicyName)
	assert.Equal(t, "v1", created.DefaultVersionID)
	assert.False(t, created.Deprecated)
	assert.Equal(t, "arn:aws:iam::"+acct.ID+":policy/ci/deploy", created.ARN)

	body = fmt.Sprintf(`{"document":%q,"setAsDefault":true}`, docAllowEverything)
	resp = env.do(t, http.MethodPost, base+"/deploy/versions", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	v2 := decodeBody[policyVersionJSON](t, resp)
	assert.Equal(t, "v2", v2.VersionID)
	assert.True(t, v2.IsDefault)

	resp = env.do(t, http.MethodGet, base+"/deploy/versions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	versions := decodeBody[listResponse[policyVersionJSON]](t, resp)
	require.Equal(t, int64(2), versions.Total)
	defaults := map[string]bool{}
	for _, v := range versions.Items {
		defaults[v.VersionID] = v.IsDefault
	}
	assert.False(t, defaults["v1"])
	assert.True(t, defaults["v2"])

	resp = env.do(t, http.MethodGet, base+"/deploy/versions/v1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v1 := decodeBody[policyVersionJSON](t, resp)
	assert.JSONEq(t, docReadOnlyIAM, v1.Document)

	resp = env.do(t, http.MethodPost, base+"/deploy/versions/v1/set-default", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, base+"/deploy", "")
	got := decodeBody[policyJSON](t, resp)
	assert.Equal(t, "v1", got.DefaultVersionID)

	// Non-default versions can go, the default cannot.
	resp = env.do(t, http.MethodDelete, base+"/deploy/versions/v2", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodDelete, base+"/deploy/versions/v1", "")
	requireError(t, resp, http.StatusConflict, CodeDeleteConflict)
}

func TestAPI_PolicyVersionCeiling(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "versions@corp.example")
	env.managedPolicy(t, acct.ID, "crowded", docReadOnlyIAM)
	env.asRoot(acct.ID)
	base := "/accounts/" + acct.ID + "/policies/crowded/versions"

	// The default ceiling is five retained versions, v1 included.
	body := fmt.Sprintf(`{"document":%q}`, docAllowEverything)
	for i := 0; i < 4; i++ {
		resp := env.do(t, http.MethodPost, base, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close() //nolint:errcheck
	}
	resp := env.do(t, http.MethodPost, base, body)
	requireError(t, resp, http.StatusConflict, CodeLimitExceeded)
}

func TestAPI_AttachedPolicies(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "attach@corp.example")
	bob := env.user(t, acct.ID, "bob")
	env.role(t, acct.ID, "deployer", "")
	pol := env.managedPolicy(t, acct.ID, "shared-read", docReadOnlyIAM)
	env.asRoot(acct.ID)

	userBase := "/accounts/" + acct.ID + "/users/" + bob.Name
	resp := env.do(t, http.MethodPut, userBase+"/attached-policies/shared-read", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, userBase+"/attached-policies", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attached := decodeBody[listResponse[attachedPolicyJSON]](t, resp)
	require.Equal(t, int64(1), attached.Total)
	assert.Equal(t, "shared-read", attached.Items[0].PolicyName)
	assert.Equal(t, pol.ARN(), attached.Items[0].PolicyARN)

	// Roles share the same attachment surface.
	roleBase := "/accounts/" + acct.ID + "/roles/deployer"
	resp = env.do(t, http.MethodPut, roleBase+"/attached-policies/shared-read", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
	resp = env.do(t, http.MethodGet, roleBase+"/attached-policies", "")
	roleAttached := decodeBody[listResponse[attachedPolicyJSON]](t, resp)
	assert.Equal(t, int64(1), roleAttached.Total)

	// A policy with live attachments cannot be deleted.
	resp = env.do(t, http.MethodDelete, "/accounts/"+acct.ID+"/policies/shared-read", "")
	requireError(t, resp, http.StatusConflict, CodeDeleteConflict)

	resp = env.do(t, http.MethodDelete, userBase+"/attached-policies/shared-read", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
	resp = env.do(t, http.MethodDelete, roleBase+"/attached-policies/shared-read", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodDelete, "/accounts/"+acct.ID+"/policies/shared-read", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func TestAPI_InlinePolicies(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "inline@corp.example")
	env.asRoot(acct.ID)

	resp := env.do(t, http.MethodPost, "/accounts/"+acct.ID+"/groups", `{"groupName":"ops"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	base := "/accounts/" + acct.ID + "/groups/ops/policies"
	body := fmt.Sprintf(`{"document":%q}`, docReadOnlyIAM)
	resp = env.do(t, http.MethodPut, base+"/net-access", body)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, base+"/net-access", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inline := decodeBody[inlinePolicyJSON](t, resp)
	assert.Equal(t, "net-access", inline.PolicyName)
	assert.JSONEq(t, docReadOnlyIAM, inline.Document)

	resp = env.do(t, http.MethodGet, base, "")
	list := decodeBody[listResponse[inlinePolicyJSON]](t, resp)
	require.Equal(t, int64(1), list.Total)

	resp = env.do(t, http.MethodDelete, base+"/net-access", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, base+"/net-access", "")
	requireError(t, resp, http.StatusNotFound, CodeNoSuchEntity)
}

func TestAPI_PolicyDeprecation(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "deprecate@corp.example")
	env.managedPolicy(t, acct.ID, "legacy", docReadOnlyIAM)
	env.asRoot(acct.ID)
	base := "/accounts/" + acct.ID + "/policies"

	resp := env.do(t, http.MethodPatch, base+"/legacy", `{"deprecated":true}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// Deprecated policies drop out of the default listing.
	resp = env.do(t, http.MethodGet, base, "")
	list := decodeBody[listResponse[policyJSON]](t, resp)
	assert.Equal(t, int64(0), list.Total)

	resp = env.do(t, http.MethodGet, base+"?includeDeprecated=true", "")
	list = decodeBody[listResponse[policyJSON]](t, resp)
	require.Equal(t, int64(1), list.Total)
	assert.True(t, list.Items[0].Deprecated)

	resp = env.do(t, http.MethodPatch, base+"/legacy", `{}`)
	requireError(t, resp, http.StatusBadRequest, CodeValidationError)
}

func TestAPI_PermissionsBoundary(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "boundary@corp.example")
	bob := env.user(t, acct.ID, "bob")
	env.role(t, acct.ID, "worker", "")
	pol := env.managedPolicy(t, acct.ID, "guardrail", docReadOnlyIAM)
	env.asRoot(acct.ID)

	userBase := "/accounts/" + acct.ID + "/users/" + bob.Name
	resp := env.do(t, http.MethodPut, userBase+"/permissions-boundary", `{"permissionsBoundary":"guardrail"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, userBase, "")
	got := decodeBody[userJSON](t, resp)
	assert.Equal(t, pol.ID, got.PermissionsBoundary)

	resp = env.do(t, http.MethodDelete, userBase+"/permissions-boundary", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, userBase, "")
	got = decodeBody[userJSON](t, resp)
	assert.Empty(t, got.PermissionsBoundary)

	roleBase := "/accounts/" + acct.ID + "/roles/worker"
	resp = env.do(t, http.MethodPut, roleBase+"/permissions-boundary", `{"permissionsBoundary":"guardrail"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, roleBase, "")
	role := decodeBody[roleJSON](t, resp)
	assert.Equal(t, pol.ID, role.PermissionsBoundary)
}

func TestAPI_AssumeRolePolicyUpdate(t *testing.T) {
	env := setupAPIServer(t)
	acct := env.account(t, "trust@corp.example")
	env.role(t, acct.ID, "pipeline", "")
	env.asRoot(acct.ID)

	next := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":"arn:aws:iam::` +
		acct.ID + `:user/ci"},"Action":"sts:AssumeRole"}]}`
	resp := env.do(t, http.MethodPut, "/accounts/"+acct.ID+"/roles/pipeline/assume-role-policy",
		fmt.Sprintf(`{"policyDocument":%q}`, next))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = env.do(t, http.MethodGet, "/accounts/"+acct.ID+"/roles/pipeline", "")
	got := decodeBody[roleJSON](t, resp)
	assert.JSONEq(t, next, got.AssumeRolePolicy)
}

package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_PolicyCreate(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusCreated,
		`{"policyId":"ANPA1","policyName":"deploy","arn":"arn:aws:iam::123456789012:policy/deploy","defaultVersionId":"v1"}`))
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--account", "123456789012",
		"policy", "create", "deploy", `{"Statement":[]}`, "--path", "/ci/")
	require.NoError(t, root.Execute())

	req := rec.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/accounts/123456789012/policies", req.Path)
	assert.JSONEq(t, `{"policyName":"deploy","document":"{\"Statement\":[]}","path":"/ci/"}`, req.Body)
}

func TestCLI_PolicyListQuery(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK, `{"items":[],"total":0}`))
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--account", "123456789012",
		"policy", "list", "--path-prefix", "/ci/", "--include-deprecated")
	require.NoError(t, root.Execute())

	q := rec.last(t).Query
	assert.Equal(t, "/ci/", q.Get("pathPrefix"))
	assert.Equal(t, "true", q.Get("includeDeprecated"))
}

func TestCLI_PolicyVersionFlow(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"versionId":"v2","isDefaultVersion":false,"createdAt":"2026-01-02T03:04:05Z"}`))
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--account", "123456789012",
		"policy", "create-version", "deploy", `{"Statement":[]}`, "--set-default")
	require.NoError(t, root.Execute())
	req := rec.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/accounts/123456789012/policies/deploy/versions", req.Path)
	assert.JSONEq(t, `{"document":"{\"Statement\":[]}","setAsDefault":true}`, req.Body)

	root, _ = newTestRoot(t, srv, "--account", "123456789012",
		"policy", "set-default-version", "deploy", "v2")
	require.NoError(t, root.Execute())
	req = rec.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/accounts/123456789012/policies/deploy/versions/v2/set-default", req.Path)

	root, _ = newTestRoot(t, srv, "--account", "123456789012",
		"policy", "delete-version", "deploy", "v1")
	require.NoError(t, root.Execute())
	req = rec.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/v1/accounts/123456789012/policies/deploy/versions/v1", req.Path)
}

func TestCLI_PolicySetDeprecated(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"policyName":"deploy","deprecated":true}`))
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--account", "123456789012",
		"policy", "set-deprecated", "deploy", "true")
	require.NoError(t, root.Execute())
	req := rec.last(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.JSONEq(t, `{"deprecated":true}`, req.Body)

	root, _ = newTestRoot(t, srv, "--account", "123456789012",
		"policy", "set-deprecated", "deploy", "yes")
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected true or false")
}

func TestCLI_RoleTrustPolicy(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusOK,
		`{"roleName":"deployer","assumeRolePolicyDocument":"{}"}`))
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--account", "123456789012",
		"role", "set-trust-policy", "deployer", `{"Statement":[{"Effect":"Allow"}]}`)
	require.NoError(t, root.Execute())

	req := rec.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/v1/accounts/123456789012/roles/deployer/assume-role-policy", req.Path)
	assert.JSONEq(t, `{"policyDocument":"{\"Statement\":[{\"Effect\":\"Allow\"}]}"}`, req.Body)
}

func TestCLI_RoleCreateBody(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, http.StatusCreated,
		`{"roleName":"deployer","arn":"arn:aws:iam::123456789012:role/deployer"}`))
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--account", "123456789012",
		"role", "create", "deployer", `{"Statement":[]}`,
		"--description", "CI deployments",
		"--max-session-duration", "3600")
	require.NoError(t, root.Execute())

	assert.JSONEq(t, `{
		"roleName": "deployer",
		"assumeRolePolicyDocument": "{\"Statement\":[]}",
		"description": "CI deployments",
		"maxSessionDuration": 3600
	}`, rec.last(t).Body)
}

package cli

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_Configure(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	root, buf := newTestRoot(t, srv, "configure")
	// Host, account id, access key id, secret, output format.
	root.SetIn(strings.NewReader("https://iam.corp.example\n123456789012\nAKIAEXAMPLE000000001\nwJalrXUtnFEMI\njson\n"))
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), `Profile "default" saved.`)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.CurrentProfile)
	p := cfg.Profiles["default"]
	assert.Equal(t, "https://iam.corp.example", p.Host)
	assert.Equal(t, "123456789012", p.AccountID)
	assert.Equal(t, "AKIAEXAMPLE000000001", p.AccessKeyID)
	assert.Equal(t, "wJalrXUtnFEMI", p.SecretAccessKey)
	assert.Equal(t, "json", p.Output)
}

func TestCLI_ConfigureNamedProfile(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "--profile", "staging", "configure")
	root.SetIn(strings.NewReader("https://staging.example.com\n\n\n\n\n"))
	require.NoError(t, root.Execute())

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.CurrentProfile)
	assert.Equal(t, "https://staging.example.com", cfg.Profiles["staging"].Host)
}

func TestCLI_ConfigureKeepsValuesOnEmptyInput(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	isolateEnv(t)
	require.NoError(t, SaveUserConfig(&UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Host: "http://old.example", AccessKeyID: "AKIAOLD0000000000001", SecretAccessKey: "old-secret"},
		},
	}))

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetIn(strings.NewReader("\n\n\n\n\n"))
	root.SetArgs([]string{"--host", srv.URL, "configure"})
	require.NoError(t, root.Execute())

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	p := cfg.Profiles["default"]
	assert.Equal(t, "http://old.example", p.Host)
	assert.Equal(t, "AKIAOLD0000000000001", p.AccessKeyID)
	assert.Equal(t, "old-secret", p.SecretAccessKey)
}

func TestCLI_ConfigureRejectsBadOutput(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	root, _ := newTestRoot(t, srv, "configure")
	root.SetIn(strings.NewReader("\n\n\n\nxml\n"))
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

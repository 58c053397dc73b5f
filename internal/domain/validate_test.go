package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResourceName(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		maxLen  int
		wantErr string
	}{
		{name: "simple", value: "alice", maxLen: 64},
		{name: "full charset", value: "svc+user=a,b.c@d_e-f", maxLen: 64},
		{name: "empty", value: "", maxLen: 64, wantErr: "name is required"},
		{name: "too long", value: string(make([]byte, 65)), maxLen: 64, wantErr: "exceeds 64 characters"},
		{name: "space", value: "bad name", maxLen: 64, wantErr: "invalid character"},
		{name: "slash", value: "a/b", maxLen: 64, wantErr: "invalid character"},
		{name: "unicode", value: "üser", maxLen: 64, wantErr: "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceName("user", tt.value, tt.maxLen)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "empty defaults", path: ""},
		{name: "root", path: "/"},
		{name: "single segment", path: "/engineering/"},
		{name: "nested", path: "/division_abc/subdivision_xyz/"},
		{name: "no leading slash", path: "engineering/", wantErr: "begin and end with /"},
		{name: "no trailing slash", path: "/engineering", wantErr: "begin and end with /"},
		{name: "double slash", path: "/a//b/", wantErr: "empty segment"},
		{name: "space in segment", path: "/a b/", wantErr: "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateAccountAlias(t *testing.T) {
	tests := []struct {
		name    string
		alias   string
		wantErr string
	}{
		{name: "simple", alias: "acme"},
		{name: "with digits and hyphen", alias: "acme-corp-01"},
		{name: "too short", alias: "ab", wantErr: "3 to 63 characters"},
		{name: "uppercase", alias: "Acme", wantErr: "invalid character"},
		{name: "leading hyphen", alias: "-acme", wantErr: "begin or end with a hyphen"},
		{name: "trailing hyphen", alias: "acme-", wantErr: "begin or end with a hyphen"},
		{name: "twelve digits", alias: "123456789012", wantErr: "12-digit number"},
		{name: "digits but not id width", alias: "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccountAlias(tt.alias)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateSessionName(t *testing.T) {
	require.NoError(t, ValidateSessionName("alice"))
	require.NoError(t, ValidateSessionName("ci@deploy-42"))

	err := ValidateSessionName("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 characters")

	err = ValidateSessionName("bad session")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid character")
}

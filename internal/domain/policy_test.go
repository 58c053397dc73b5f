package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionID(t *testing.T) {
	assert.Equal(t, "v1", VersionID(1))
	assert.Equal(t, "v12", VersionID(12))

	n, err := ParseVersionID("v3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"", "3", "v0", "vx", "v-1"} {
		_, err := ParseVersionID(bad)
		require.Error(t, err, "input %q", bad)
	}
}

func TestCreatePolicyRequest_Validate(t *testing.T) {
	req := CreatePolicyRequest{
		AccountID: "123456789012",
		Name:      "ReadOnly",
		Document:  `{"Version":"2012-10-17","Statement":[]}`,
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, PolicyTypeLocal, req.PolicyType)

	req.PolicyType = "Custom"
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy type")

	req = CreatePolicyRequest{AccountID: "123456789012", Name: "ReadOnly"}
	err = req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document is required")
}

func TestManagedPolicyARN(t *testing.T) {
	p := ManagedPolicy{AccountID: "123456789012", Name: "ReadOnly", Path: "/"}
	assert.Equal(t, "arn:aws:iam::123456789012:policy/ReadOnly", p.ARN())
}

package domain

import (
	"strconv"
	"strings"
	"time"
)

// MaxManagedPolicyVersions is the ceiling on retained versions per policy.
const MaxManagedPolicyVersions = 5

// Managed policy types.
const (
	PolicyTypeLocal = "Local" // customer-managed, account-scoped
	PolicyTypeAWS   = "AWS"   // service-curated, seed-account-owned
)

// ManagedPolicy is a named, versioned permission document attachable to
// many principals.
type ManagedPolicy struct {
	ID             string
	AccountID      string
	Name           string
	Path           string
	Deprecated     bool
	PolicyType     string
	DefaultVersion int
	// LastVersion is the highest version number ever assigned. It only
	// grows, so version numbers are never reused after deletion.
	LastVersion int
	CreatedAt   time.Time
}

// ARN returns the policy's resource identifier.
func (p ManagedPolicy) ARN() string {
	return "arn:aws:iam::" + p.AccountID + ":policy" + pathOrSlash(p.Path) + p.Name
}

// ManagedPolicyVersion is one immutable revision of a managed policy.
type ManagedPolicyVersion struct {
	PolicyID  string
	Version   int
	Document  string
	CreatedAt time.Time
}

// VersionID renders a version number in the service's "v<N>" form.
func (v ManagedPolicyVersion) VersionID() string {
	return VersionID(v.Version)
}

// VersionID renders a version number in the service's "v<N>" form.
func VersionID(version int) string {
	return "v" + strconv.Itoa(version)
}

// ParseVersionID parses a "v<N>" version id.
func ParseVersionID(s string) (int, error) {
	rest, ok := strings.CutPrefix(s, "v")
	if !ok {
		return 0, ErrValidation("version id %q must look like v1", s)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, ErrValidation("version id %q must look like v1", s)
	}
	return n, nil
}

// InlinePolicy is a permission document embedded directly in one principal.
type InlinePolicy struct {
	PrincipalID string
	Name        string
	Document    string
}

// AttachedPolicy is a managed policy reference listed on a principal.
type AttachedPolicy struct {
	PolicyID   string
	Name       string
	Path       string
	ARN        string
	Default    int
	Attached   time.Time
	Deprecated bool
}

// CreatePolicyRequest holds parameters for creating a managed policy with
// its first version.
type CreatePolicyRequest struct {
	AccountID  string
	Name       string
	Path       string
	Document   string
	PolicyType string // defaults to Local
}

// Validate checks that the request is well-formed. Document syntax is
// validated separately by the policy parser before any write.
func (r *CreatePolicyRequest) Validate() error {
	if r.AccountID == "" {
		return ErrValidation("account id is required")
	}
	if err := ValidateResourceName("policy", r.Name, MaxPolicyNameLen); err != nil {
		return err
	}
	if err := ValidatePath(r.Path); err != nil {
		return err
	}
	if r.Document == "" {
		return ErrValidation("policy document is required")
	}
	if r.PolicyType == "" {
		r.PolicyType = PolicyTypeLocal
	}
	if r.PolicyType != PolicyTypeLocal && r.PolicyType != PolicyTypeAWS {
		return ErrValidation("policy type must be %q or %q", PolicyTypeLocal, PolicyTypeAWS)
	}
	return nil
}

// CreatePolicyVersionRequest appends a version to an existing policy.
type CreatePolicyVersionRequest struct {
	Document   string
	SetDefault bool
}

// Validate checks that the request is well-formed.
func (r *CreatePolicyVersionRequest) Validate() error {
	if r.Document == "" {
		return ErrValidation("policy document is required")
	}
	return nil
}

// PutInlinePolicyRequest embeds or replaces an inline policy on a principal.
type PutInlinePolicyRequest struct {
	Name     string
	Document string
}

// Validate checks that the request is well-formed.
func (r *PutInlinePolicyRequest) Validate() error {
	if err := ValidateResourceName("policy", r.Name, MaxPolicyNameLen); err != nil {
		return err
	}
	if r.Document == "" {
		return ErrValidation("policy document is required")
	}
	return nil
}

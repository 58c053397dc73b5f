package api

import (
	"time"

	"iamcore/internal/domain"
	"iamcore/internal/service/iam"
)

// === Wire types and mapping helpers ===

// resourceARN builds the path-less ARN handlers authorize against before
// the resource is loaded.
func resourceARN(accountID, kind, name string) string {
	return "arn:aws:iam::" + accountID + ":" + kind + "/" + name
}

type accountJSON struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	Alias     string    `json:"alias,omitempty"`
	ARN       string    `json:"arn"`
	CreatedAt time.Time `json:"createdAt"`
}

func accountToAPI(a domain.Account) accountJSON {
	return accountJSON{
		AccountID: a.ID,
		Email:     a.Email,
		Active:    a.Active,
		Alias:     a.Alias,
		ARN:       a.ARN(),
		CreatedAt: a.CreatedAt,
	}
}

type userJSON struct {
	UserID              string    `json:"userId"`
	AccountID           string    `json:"accountId"`
	UserName            string    `json:"userName"`
	Path                string    `json:"path"`
	ARN                 string    `json:"arn"`
	PermissionsBoundary string    `json:"permissionsBoundary,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

func userToAPI(u domain.User) userJSON {
	return userJSON{
		UserID:              u.ID,
		AccountID:           u.AccountID,
		UserName:            u.Name,
		Path:                u.Path,
		ARN:                 u.ARN(),
		PermissionsBoundary: u.PermissionsBoundary,
		CreatedAt:           u.CreatedAt,
	}
}

type groupJSON struct {
	GroupID   string    `json:"groupId"`
	AccountID string    `json:"accountId"`
	GroupName string    `json:"groupName"`
	Path      string    `json:"path"`
	ARN       string    `json:"arn"`
	CreatedAt time.Time `json:"createdAt"`
}

func groupToAPI(g domain.Group) groupJSON {
	return groupJSON{
		GroupID:   g.ID,
		AccountID: g.AccountID,
		GroupName: g.Name,
		Path:      g.Path,
		ARN:       g.ARN(),
		CreatedAt: g.CreatedAt,
	}
}

type roleJSON struct {
	RoleID              string    `json:"roleId"`
	AccountID           string    `json:"accountId"`
	RoleName            string    `json:"roleName"`
	Path                string    `json:"path"`
	ARN                 string    `json:"arn"`
	Description         string    `json:"description,omitempty"`
	AssumeRolePolicy    string    `json:"assumeRolePolicyDocument"`
	MaxSessionDuration  int       `json:"maxSessionDuration"`
	PermissionsBoundary string    `json:"permissionsBoundary,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

func roleToAPI(r domain.Role) roleJSON {
	return roleJSON{
		RoleID:              r.ID,
		AccountID:           r.AccountID,
		RoleName:            r.Name,
		Path:                r.Path,
		ARN:                 r.ARN(),
		Description:         r.Description,
		AssumeRolePolicy:    r.AssumeRolePolicy,
		MaxSessionDuration:  r.MaxSessionDuration,
		PermissionsBoundary: r.PermissionsBoundary,
		CreatedAt:           r.CreatedAt,
	}
}

type policyJSON struct {
	PolicyID         string    `json:"policyId"`
	AccountID        string    `json:"accountId"`
	PolicyName       string    `json:"policyName"`
	Path             string    `json:"path"`
	ARN              string    `json:"arn"`
	PolicyType       string    `json:"policyType"`
	Deprecated       bool      `json:"deprecated"`
	DefaultVersionID string    `json:"defaultVersionId"`
	CreatedAt        time.Time `json:"createdAt"`
}

func policyToAPI(p domain.ManagedPolicy) policyJSON {
	return policyJSON{
		PolicyID:         p.ID,
		AccountID:        p.AccountID,
		PolicyName:       p.Name,
		Path:             p.Path,
		ARN:              p.ARN(),
		PolicyType:       p.PolicyType,
		Deprecated:       p.Deprecated,
		DefaultVersionID: domain.VersionID(p.DefaultVersion),
		CreatedAt:        p.CreatedAt,
	}
}

type policyVersionJSON struct {
	VersionID string    `json:"versionId"`
	Document  string    `json:"document,omitempty"`
	IsDefault bool      `json:"isDefaultVersion"`
	CreatedAt time.Time `json:"createdAt"`
}

func policyVersionToAPI(v domain.ManagedPolicyVersion, defaultVersion int) policyVersionJSON {
	return policyVersionJSON{
		VersionID: v.VersionID(),
		Document:  v.Document,
		IsDefault: v.Version == defaultVersion,
		CreatedAt: v.CreatedAt,
	}
}

type attachedPolicyJSON struct {
	PolicyID   string    `json:"policyId"`
	PolicyName string    `json:"policyName"`
	PolicyARN  string    `json:"policyArn"`
	Deprecated bool      `json:"deprecated"`
	AttachedAt time.Time `json:"attachedAt"`
}

func attachedPolicyToAPI(p domain.AttachedPolicy) attachedPolicyJSON {
	return attachedPolicyJSON{
		PolicyID:   p.PolicyID,
		PolicyName: p.Name,
		PolicyARN:  p.ARN,
		Deprecated: p.Deprecated,
		AttachedAt: p.Attached,
	}
}

type inlinePolicyJSON struct {
	PolicyName string `json:"policyName"`
	Document   string `json:"document"`
}

func inlinePolicyToAPI(p domain.InlinePolicy) inlinePolicyJSON {
	return inlinePolicyJSON{PolicyName: p.Name, Document: p.Document}
}

type accessKeyJSON struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func accessKeyToAPI(k domain.AccessKey) accessKeyJSON {
	return accessKeyJSON{
		AccessKeyID:     k.ID,
		SecretAccessKey: k.Secret,
		Status:          k.Status(),
		CreatedAt:       k.CreatedAt,
	}
}

type loginProfileJSON struct {
	PasswordResetRequired bool      `json:"passwordResetRequired"`
	PasswordChangedAt     time.Time `json:"passwordChangedAt"`
	CreatedAt             time.Time `json:"createdAt"`
}

func loginProfileToAPI(p domain.LoginProfile) loginProfileJSON {
	return loginProfileJSON{
		PasswordResetRequired: p.ResetRequired,
		PasswordChangedAt:     p.PasswordChangedAt,
		CreatedAt:             p.CreatedAt,
	}
}

type serviceCredentialJSON struct {
	CredentialID    string    `json:"serviceSpecificCredentialId"`
	ServiceName     string    `json:"serviceName"`
	ServiceUserName string    `json:"serviceUserName"`
	ServicePassword string    `json:"servicePassword,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func serviceCredentialToAPI(c iam.ServiceCredential) serviceCredentialJSON {
	status := "Inactive"
	if c.Active {
		status = "Active"
	}
	return serviceCredentialJSON{
		CredentialID:    c.ID,
		ServiceName:     c.ServiceName,
		ServiceUserName: c.ServiceUserName,
		ServicePassword: c.Password,
		Status:          status,
		CreatedAt:       c.CreatedAt,
	}
}

type sshPublicKeyJSON struct {
	SSHPublicKeyID string    `json:"sshPublicKeyId"`
	Fingerprint    string    `json:"fingerprint"`
	Body           string    `json:"sshPublicKeyBody,omitempty"`
	Status         string    `json:"status"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

func sshPublicKeyToAPI(k domain.SSHPublicKey) sshPublicKeyJSON {
	status := "Inactive"
	if k.Active {
		status = "Active"
	}
	return sshPublicKeyJSON{
		SSHPublicKeyID: k.ID,
		Fingerprint:    k.Fingerprint,
		Body:           k.Body,
		Status:         status,
		UploadedAt:     k.CreatedAt,
	}
}

type tempCredentialsJSON struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey"`
	SessionToken    string    `json:"sessionToken"`
	Expiration      time.Time `json:"expiration"`
}

func tempCredentialsToAPI(c domain.TempCredentials) tempCredentialsJSON {
	return tempCredentialsJSON{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Expiration:      c.Expiration,
	}
}

type limitDefinitionJSON struct {
	ServiceName  string  `json:"serviceName"`
	LimitName    string  `json:"limitName"`
	Description  string  `json:"description,omitempty"`
	ValueType    string  `json:"valueType"`
	DefaultValue *int    `json:"defaultValue,omitempty"`
	MinValue     *int    `json:"minValue,omitempty"`
	MaxValue     *int    `json:"maxValue,omitempty"`
	DefaultText  *string `json:"defaultText,omitempty"`
}

func limitDefinitionToAPI(d domain.LimitDefinition) limitDefinitionJSON {
	return limitDefinitionJSON{
		ServiceName:  d.ServiceName,
		LimitName:    d.LimitName,
		Description:  d.Description,
		ValueType:    d.ValueType,
		DefaultValue: d.DefaultInt,
		MinValue:     d.MinValue,
		MaxValue:     d.MaxValue,
		DefaultText:  d.DefaultString,
	}
}

type effectiveLimitJSON struct {
	ServiceName string `json:"serviceName"`
	LimitName   string `json:"limitName"`
	Region      string `json:"region"`
	Value       int    `json:"value"`
	Overridden  bool   `json:"overridden"`
}

func effectiveLimitToAPI(l iam.EffectiveLimit) effectiveLimitJSON {
	return effectiveLimitJSON{
		ServiceName: l.Definition.ServiceName,
		LimitName:   l.Definition.LimitName,
		Region:      l.Region,
		Value:       l.Value,
		Overridden:  l.Overridden,
	}
}

// statusActive parses the Active/Inactive status strings used by key and
// credential updates.
func statusActive(status string) (bool, error) {
	switch status {
	case "Active":
		return true, nil
	case "Inactive":
		return false, nil
	default:
		return false, domain.ErrValidation(`status must be "Active" or "Inactive", got %q`, status)
	}
}

package domain

import (
	"context"
	"time"
)

// AccountRepository provides CRUD operations for accounts and aliases.
type AccountRepository interface {
	Create(ctx context.Context, a *Account) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByAlias(ctx context.Context, alias string) (*Account, error)
	List(ctx context.Context, page PageRequest) ([]Account, int64, error)
	SetAlias(ctx context.Context, id, alias string) error
	DeleteAlias(ctx context.Context, id string) error
}

// UserRepository provides CRUD operations for users, their attachments,
// and inline policies. Delete cascades credentials, profile, memberships,
// and policies into history in one transaction.
type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByName(ctx context.Context, accountID, name string) (*User, error)
	List(ctx context.Context, accountID, pathPrefix string, page PageRequest) ([]User, int64, error)
	Update(ctx context.Context, id string, newName, newPath string) (*User, error)
	SetPermissionsBoundary(ctx context.Context, id, policyID string) error
	Delete(ctx context.Context, id string) error

	AttachPolicy(ctx context.Context, userID, policyID string) error
	DetachPolicy(ctx context.Context, userID, policyID string) error
	ListAttachedPolicies(ctx context.Context, userID string, page PageRequest) ([]AttachedPolicy, int64, error)
	ListAttachedPolicyDocuments(ctx context.Context, userID string) ([]string, error)

	PutInlinePolicy(ctx context.Context, userID string, p *InlinePolicy) error
	GetInlinePolicy(ctx context.Context, userID, name string) (*InlinePolicy, error)
	DeleteInlinePolicy(ctx context.Context, userID, name string) error
	ListInlinePolicies(ctx context.Context, userID string, page PageRequest) ([]InlinePolicy, int64, error)
}

// GroupRepository provides CRUD operations for groups and membership.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) (*Group, error)
	GetByID(ctx context.Context, id string) (*Group, error)
	GetByName(ctx context.Context, accountID, name string) (*Group, error)
	List(ctx context.Context, accountID, pathPrefix string, page PageRequest) ([]Group, int64, error)
	Update(ctx context.Context, id string, newName, newPath string) (*Group, error)
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	ListMembers(ctx context.Context, groupID string, page PageRequest) ([]User, int64, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]Group, error)

	AttachPolicy(ctx context.Context, groupID, policyID string) error
	DetachPolicy(ctx context.Context, groupID, policyID string) error
	ListAttachedPolicies(ctx context.Context, groupID string, page PageRequest) ([]AttachedPolicy, int64, error)
	ListAttachedPolicyDocuments(ctx context.Context, groupID string) ([]string, error)

	PutInlinePolicy(ctx context.Context, groupID string, p *InlinePolicy) error
	GetInlinePolicy(ctx context.Context, groupID, name string) (*InlinePolicy, error)
	DeleteInlinePolicy(ctx context.Context, groupID, name string) error
	ListInlinePolicies(ctx context.Context, groupID string, page PageRequest) ([]InlinePolicy, int64, error)
}

// RoleRepository provides CRUD operations for roles.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) (*Role, error)
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, accountID, name string) (*Role, error)
	List(ctx context.Context, accountID, pathPrefix string, page PageRequest) ([]Role, int64, error)
	Update(ctx context.Context, id string, description *string, maxSessionDuration *int) (*Role, error)
	SetAssumeRolePolicy(ctx context.Context, id, document string) error
	SetPermissionsBoundary(ctx context.Context, id, policyID string) error
	Delete(ctx context.Context, id string) error

	AttachPolicy(ctx context.Context, roleID, policyID string) error
	DetachPolicy(ctx context.Context, roleID, policyID string) error
	ListAttachedPolicies(ctx context.Context, roleID string, page PageRequest) ([]AttachedPolicy, int64, error)
	ListAttachedPolicyDocuments(ctx context.Context, roleID string) ([]string, error)

	PutInlinePolicy(ctx context.Context, roleID string, p *InlinePolicy) error
	GetInlinePolicy(ctx context.Context, roleID, name string) (*InlinePolicy, error)
	DeleteInlinePolicy(ctx context.Context, roleID, name string) error
	ListInlinePolicies(ctx context.Context, roleID string, page PageRequest) ([]InlinePolicy, int64, error)
}

// PolicyRepository provides CRUD and version lifecycle for managed policies.
type PolicyRepository interface {
	Create(ctx context.Context, p *ManagedPolicy, document string) (*ManagedPolicy, error)
	GetByID(ctx context.Context, id string) (*ManagedPolicy, error)
	GetByName(ctx context.Context, accountID, name string) (*ManagedPolicy, error)
	List(ctx context.Context, accountID, pathPrefix string, includeDeprecated bool, page PageRequest) ([]ManagedPolicy, int64, error)
	SetDeprecated(ctx context.Context, id string, deprecated bool) error
	Delete(ctx context.Context, id string) error

	CreateVersion(ctx context.Context, policyID, document string, setDefault bool) (*ManagedPolicyVersion, error)
	GetVersion(ctx context.Context, policyID string, version int) (*ManagedPolicyVersion, error)
	GetDefaultDocument(ctx context.Context, policyID string) (string, error)
	ListVersions(ctx context.Context, policyID string, page PageRequest) ([]ManagedPolicyVersion, int64, error)
	SetDefaultVersion(ctx context.Context, policyID string, version int) error
	DeleteVersion(ctx context.Context, policyID string, version int) error

	// AttachmentCount counts live principals the policy is attached to.
	AttachmentCount(ctx context.Context, policyID string) (int64, error)
}

// CredentialRepository provides long-term credential, login profile,
// service credential, and SSH key operations.
type CredentialRepository interface {
	CreateAccessKey(ctx context.Context, k *AccessKey) (*AccessKey, error)
	GetAccessKey(ctx context.Context, accessKeyID string) (*AccessKey, error)
	// ResolveAccessKey joins the key to its owning user for authentication.
	ResolveAccessKey(ctx context.Context, accessKeyID string) (*AccessKey, *User, error)
	ListAccessKeys(ctx context.Context, userID string, page PageRequest) ([]AccessKey, int64, error)
	CountAccessKeys(ctx context.Context, userID string) (int64, error)
	SetAccessKeyStatus(ctx context.Context, accessKeyID string, active bool) error
	DeleteAccessKey(ctx context.Context, accessKeyID string) error

	CreateLoginProfile(ctx context.Context, p *LoginProfile) error
	GetLoginProfile(ctx context.Context, userID string) (*LoginProfile, error)
	UpdateLoginProfile(ctx context.Context, p *LoginProfile) error
	DeleteLoginProfile(ctx context.Context, userID string) error
	ListPasswordHistory(ctx context.Context, userID string, limit int) ([]PasswordHistoryEntry, error)

	CreateServiceCredential(ctx context.Context, c *ServiceSpecificCredential) (*ServiceSpecificCredential, error)
	GetServiceCredential(ctx context.Context, id string) (*ServiceSpecificCredential, error)
	ListServiceCredentials(ctx context.Context, userID string, page PageRequest) ([]ServiceSpecificCredential, int64, error)
	ResetServiceCredential(ctx context.Context, id, newPassword string) error
	SetServiceCredentialStatus(ctx context.Context, id string, active bool) error
	DeleteServiceCredential(ctx context.Context, id string) error

	CreateSSHPublicKey(ctx context.Context, k *SSHPublicKey) (*SSHPublicKey, error)
	GetSSHPublicKey(ctx context.Context, id string) (*SSHPublicKey, error)
	ListSSHPublicKeys(ctx context.Context, userID string, page PageRequest) ([]SSHPublicKey, int64, error)
	SetSSHPublicKeyStatus(ctx context.Context, id string, active bool) error
	DeleteSSHPublicKey(ctx context.Context, id string) error
}

// TokenKeyRepository persists role token keys. Keys move to history only
// through SweepExpired, never through a direct delete.
type TokenKeyRepository interface {
	Create(ctx context.Context, k *RoleTokenKey) error
	GetByAccessKeyID(ctx context.Context, accessKeyID string) (*RoleTokenKey, error)
	// GetCurrentForRole returns the valid key with the latest valid_at, or
	// NotFoundError when no key covers now.
	GetCurrentForRole(ctx context.Context, roleID string, now time.Time) (*RoleTokenKey, error)
	// ListExpiring returns, per role, the newest key when it expires before
	// the threshold. Roles listed here need a replacement key minted.
	ListExpiring(ctx context.Context, threshold time.Time) ([]RoleTokenKey, error)
	// SweepExpired archives keys whose expires_at predates the cutoff.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// LimitRepository persists limit definitions and per-account overrides.
type LimitRepository interface {
	UpsertDefinition(ctx context.Context, d *LimitDefinition) (*LimitDefinition, error)
	GetDefinition(ctx context.Context, serviceName, limitName string) (*LimitDefinition, error)
	ListDefinitions(ctx context.Context, page PageRequest) ([]LimitDefinition, int64, error)
	GetAccountLimit(ctx context.Context, accountID string, limitID int64, region string) (*AccountLimit, error)
	PutAccountLimit(ctx context.Context, l *AccountLimit) error
}

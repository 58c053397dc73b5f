package domain

import "time"

// MaxAccessKeysPerUser caps active+inactive key pairs on one user, subject
// to the account limit override.
const MaxAccessKeysPerUser = 2

// AccessKey is a long-term credential pair owned by a user.
type AccessKey struct {
	UserID    string
	ID        string // AKIA...
	Secret    string
	Active    bool
	CreatedAt time.Time
}

// Status renders the active flag in the service's Active/Inactive form.
func (k AccessKey) Status() string {
	if k.Active {
		return "Active"
	}
	return "Inactive"
}

// LoginProfile is a user's console password record.
type LoginProfile struct {
	UserID            string
	PasswordAlgorithm string // e.g. "bcrypt:10"
	PasswordHash      string
	ResetRequired     bool
	PasswordChangedAt time.Time
	CreatedAt         time.Time
	LastUsedAt        *time.Time
}

// PasswordHistoryEntry records a prior password hash for reuse checks.
type PasswordHistoryEntry struct {
	UserID            string
	PasswordAlgorithm string
	PasswordHash      string
	ChangedAt         time.Time
}

// ServiceSpecificCredential is a generated username/password pair scoped to
// one external service.
type ServiceSpecificCredential struct {
	UserID      string
	ID          string // ACCA...
	ServiceName string
	Password    string
	Active      bool
	CreatedAt   time.Time
}

// SSHPublicKey is a user-uploaded public key.
type SSHPublicKey struct {
	UserID      string
	ID          string // APKA...
	Fingerprint string
	Body        string
	Active      bool
	CreatedAt   time.Time
}

// CreateLoginProfileRequest sets a console password on a user.
type CreateLoginProfileRequest struct {
	Password      string
	ResetRequired bool
}

// Validate checks that the request is well-formed.
func (r *CreateLoginProfileRequest) Validate() error {
	if len(r.Password) < 8 {
		return ErrValidation("password must be at least 8 characters")
	}
	if len(r.Password) > 128 {
		return ErrValidation("password exceeds 128 characters")
	}
	return nil
}

// CreateServiceCredentialRequest generates a credential for one service.
type CreateServiceCredentialRequest struct {
	ServiceName string
}

// Validate checks that the request is well-formed.
func (r *CreateServiceCredentialRequest) Validate() error {
	if r.ServiceName == "" {
		return ErrValidation("service name is required")
	}
	return nil
}

// UploadSSHPublicKeyRequest registers a public key body.
type UploadSSHPublicKeyRequest struct {
	Body string
}

// Validate checks that the request is well-formed.
func (r *UploadSSHPublicKeyRequest) Validate() error {
	if r.Body == "" {
		return ErrValidation("ssh public key body is required")
	}
	return nil
}

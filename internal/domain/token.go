package domain

import "time"

// TokenKeyAlgorithmAES256GCM identifies the only supported token key algorithm.
const TokenKeyAlgorithmAES256GCM = "AES256GCM"

// RoleTokenKey is the symmetric key material a role's session tokens are
// sealed under. Keys rotate; expired keys are kept so tokens issued under
// them stay decryptable until the tokens themselves expire.
type RoleTokenKey struct {
	AccessKeyID string // ASIA..., names the key inside issued tokens
	RoleID      string
	Algorithm   string
	Key         []byte
	ValidAt     time.Time
	ExpiresAt   time.Time
}

// ValidFor reports whether new tokens may be issued under the key at t.
func (k RoleTokenKey) ValidFor(t time.Time) bool {
	return !t.Before(k.ValidAt) && t.Before(k.ExpiresAt)
}

// TempCredentials is the response of an AssumeRole-class operation.
type TempCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// AssumeRoleRequest holds parameters for minting role session credentials.
type AssumeRoleRequest struct {
	AccountID       string
	RoleName        string
	SessionName     string
	DurationSeconds int    // defaults to the role's maximum when 0
	SessionPolicy   string // optional intersection cap
}

// Validate checks that the request is well-formed.
func (r *AssumeRoleRequest) Validate() error {
	if r.AccountID == "" {
		return ErrValidation("account id is required")
	}
	if err := ValidateResourceName("role", r.RoleName, MaxRoleNameLen); err != nil {
		return err
	}
	if err := ValidateSessionName(r.SessionName); err != nil {
		return err
	}
	if r.DurationSeconds != 0 && (r.DurationSeconds < MinSessionDuration || r.DurationSeconds > MaxMaxSessionDuration) {
		return ErrValidation("duration must be between %d and %d seconds",
			MinSessionDuration, MaxMaxSessionDuration)
	}
	return nil
}

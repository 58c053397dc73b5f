package iam

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/ssh"

	"iamcore/internal/domain"
)

// passwordHistoryWindow is how many prior hashes a new password is
// checked against.
const passwordHistoryWindow = 5

// secretLen is the byte length of generated secrets before base64
// encoding. 30 bytes encode to the canonical 40-character form.
const secretLen = 30

// CredentialService provides access key, login profile, service
// credential, and SSH key operations for users.
type CredentialService struct {
	creds      domain.CredentialRepository
	users      domain.UserRepository
	enforcer   *LimitEnforcer
	bcryptCost int
	logger     *slog.Logger
}

// NewCredentialService creates a new CredentialService. A cost below the
// bcrypt minimum falls back to the bcrypt default.
func NewCredentialService(creds domain.CredentialRepository, users domain.UserRepository, enforcer *LimitEnforcer, bcryptCost int, logger *slog.Logger) *CredentialService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &CredentialService{
		creds:      creds,
		users:      users,
		enforcer:   enforcer,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// CreateAccessKey mints a key pair for the user. The secret is returned
// here and never again.
func (s *CredentialService) CreateAccessKey(ctx context.Context, accountID, userName string) (*domain.AccessKey, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, err
	}
	current, err := s.creds.CountAccessKeys(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	err = s.enforcer.CheckBelow(ctx, accountID,
		domain.LimitServiceIAM, domain.LimitAccessKeysPerUser, current)
	if err != nil {
		return nil, err
	}
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	created, err := s.creds.CreateAccessKey(ctx, &domain.AccessKey{
		UserID: u.ID,
		Secret: secret,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("access key created", "account_id", accountID, "user", userName, "access_key_id", created.ID)
	return created, nil
}

// ListAccessKeys returns the user's keys with secrets redacted.
func (s *CredentialService) ListAccessKeys(ctx context.Context, accountID, userName string, page domain.PageRequest) ([]domain.AccessKey, int64, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, 0, err
	}
	keys, total, err := s.creds.ListAccessKeys(ctx, u.ID, page)
	if err != nil {
		return nil, 0, err
	}
	for i := range keys {
		keys[i].Secret = ""
	}
	return keys, total, nil
}

// SetAccessKeyStatus activates or deactivates one of the user's keys.
func (s *CredentialService) SetAccessKeyStatus(ctx context.Context, accountID, userName, keyID string, active bool) error {
	if _, err := s.userAccessKey(ctx, accountID, userName, keyID); err != nil {
		return err
	}
	if err := s.creds.SetAccessKeyStatus(ctx, keyID, active); err != nil {
		return err
	}
	s.logger.Info("access key status set", "account_id", accountID, "user", userName,
		"access_key_id", keyID, "active", active)
	return nil
}

// DeleteAccessKey removes one of the user's keys.
func (s *CredentialService) DeleteAccessKey(ctx context.Context, accountID, userName, keyID string) error {
	if _, err := s.userAccessKey(ctx, accountID, userName, keyID); err != nil {
		return err
	}
	if err := s.creds.DeleteAccessKey(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("access key deleted", "account_id", accountID, "user", userName, "access_key_id", keyID)
	return nil
}

// userAccessKey loads a key and verifies it belongs to the named user.
func (s *CredentialService) userAccessKey(ctx context.Context, accountID, userName, keyID string) (*domain.AccessKey, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, err
	}
	k, err := s.creds.GetAccessKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if k.UserID != u.ID {
		return nil, domain.ErrNotFound("access key %s for user %s", keyID, userName)
	}
	return k, nil
}

// CreateLoginProfile sets a console password on the user.
func (s *CredentialService) CreateLoginProfile(ctx context.Context, accountID, userName string, req domain.CreateLoginProfileRequest) (*domain.LoginProfile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, err
	}
	hash, algorithm, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	p := &domain.LoginProfile{
		UserID:            u.ID,
		PasswordAlgorithm: algorithm,
		PasswordHash:      hash,
		ResetRequired:     req.ResetRequired,
	}
	if err := s.creds.CreateLoginProfile(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("login profile created", "account_id", accountID, "user", userName)
	return p, nil
}

// GetLoginProfile returns the user's profile metadata without the hash.
func (s *CredentialService) GetLoginProfile(ctx context.Context, accountID, userName string) (*domain.LoginProfile, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, err
	}
	p, err := s.creds.GetLoginProfile(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	p.PasswordHash = ""
	return p, nil
}

// UpdateLoginProfile changes the user's password or reset flag. A new
// password must differ from the current one and the recent history.
func (s *CredentialService) UpdateLoginProfile(ctx context.Context, accountID, userName string, password string, resetRequired *bool) error {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return err
	}
	p, err := s.creds.GetLoginProfile(ctx, u.ID)
	if err != nil {
		return err
	}
	if password != "" {
		req := domain.CreateLoginProfileRequest{Password: password}
		if err := req.Validate(); err != nil {
			return err
		}
		if err := s.checkPasswordReuse(ctx, u.ID, p, password); err != nil {
			return err
		}
		hash, algorithm, err := s.hashPassword(password)
		if err != nil {
			return err
		}
		p.PasswordHash = hash
		p.PasswordAlgorithm = algorithm
	}
	if resetRequired != nil {
		p.ResetRequired = *resetRequired
	}
	if err := s.creds.UpdateLoginProfile(ctx, p); err != nil {
		return err
	}
	s.logger.Info("login profile updated", "account_id", accountID, "user", userName,
		"password_changed", password != "")
	return nil
}

// DeleteLoginProfile removes the user's console password.
func (s *CredentialService) DeleteLoginProfile(ctx context.Context, accountID, userName string) error {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return err
	}
	if err := s.creds.DeleteLoginProfile(ctx, u.ID); err != nil {
		return err
	}
	s.logger.Info("login profile deleted", "account_id", accountID, "user", userName)
	return nil
}

// VerifyPassword checks a console password against the stored hash.
func (s *CredentialService) VerifyPassword(ctx context.Context, accountID, userName, password string) (*domain.User, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid user name or password")
	}
	p, err := s.creds.GetLoginProfile(ctx, u.ID)
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid user name or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrAccessDenied("invalid user name or password")
	}
	return u, nil
}

func (s *CredentialService) hashPassword(password string) (hash, algorithm string, err error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", "", domain.ErrStorage(err, "hash password")
	}
	return string(h), fmt.Sprintf("bcrypt:%d", s.bcryptCost), nil
}

func (s *CredentialService) checkPasswordReuse(ctx context.Context, userID string, current *domain.LoginProfile, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(current.PasswordHash), []byte(password)) == nil {
		return domain.ErrValidation("new password must differ from the current password")
	}
	history, err := s.creds.ListPasswordHistory(ctx, userID, passwordHistoryWindow)
	if err != nil {
		return err
	}
	for _, entry := range history {
		if bcrypt.CompareHashAndPassword([]byte(entry.PasswordHash), []byte(password)) == nil {
			return domain.ErrValidation("new password was used recently")
		}
	}
	return nil
}

// ServiceCredential pairs a stored credential with its derived service
// username.
type ServiceCredential struct {
	domain.ServiceSpecificCredential
	ServiceUserName string
}

// serviceUserName derives the login name handed to external services.
func serviceUserName(userName, accountID string) string {
	return userName + "-at-" + accountID
}

// CreateServiceCredential generates a username/password pair for one
// external service. The password is returned here and on reset only.
func (s *CredentialService) CreateServiceCredential(ctx context.Context, accountID, userName string, req domain.CreateServiceCredentialRequest) (*ServiceCredential, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, err
	}
	password, err := generateSecret()
	if err != nil {
		return nil, err
	}
	created, err := s.creds.CreateServiceCredential(ctx, &domain.ServiceSpecificCredential{
		UserID:      u.ID,
		ServiceName: req.ServiceName,
		Password:    password,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("service credential created", "account_id", accountID, "user", userName,
		"service", req.ServiceName, "credential_id", created.ID)
	return &ServiceCredential{
		ServiceSpecificCredential: *created,
		ServiceUserName:           serviceUserName(u.Name, accountID),
	}, nil
}

// ListServiceCredentials returns the user's credentials with passwords
// redacted.
func (s *CredentialService) ListServiceCredentials(ctx context.Context, accountID, userName string, page domain.PageRequest) ([]ServiceCredential, int64, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.creds.ListServiceCredentials(ctx, u.ID, page)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ServiceCredential, 0, len(rows))
	for _, row := range rows {
		row.Password = ""
		out = append(out, ServiceCredential{
			ServiceSpecificCredential: row,
			ServiceUserName:           serviceUserName(u.Name, accountID),
		})
	}
	return out, total, nil
}

// ResetServiceCredential replaces the credential's password.
func (s *CredentialService) ResetServiceCredential(ctx context.Context, accountID, userName, credentialID string) (*ServiceCredential, error) {
	u, c, err := s.userServiceCredential(ctx, accountID, userName, credentialID)
	if err != nil {
		return nil, err
	}
	password, err := generateSecret()
	if err != nil {
		return nil, err
	}
	if err := s.creds.ResetServiceCredential(ctx, c.ID, password); err != nil {
		return nil, err
	}
	c.Password = password
	s.logger.Info("service credential reset", "account_id", accountID, "user", userName, "credential_id", c.ID)
	return &ServiceCredential{
		ServiceSpecificCredential: *c,
		ServiceUserName:           serviceUserName(u.Name, accountID),
	}, nil
}

// SetServiceCredentialStatus activates or deactivates a credential.
func (s *CredentialService) SetServiceCredentialStatus(ctx context.Context, accountID, userName, credentialID string, active bool) error {
	if _, _, err := s.userServiceCredential(ctx, accountID, userName, credentialID); err != nil {
		return err
	}
	return s.creds.SetServiceCredentialStatus(ctx, credentialID, active)
}

// DeleteServiceCredential removes a credential.
func (s *CredentialService) DeleteServiceCredential(ctx context.Context, accountID, userName, credentialID string) error {
	if _, _, err := s.userServiceCredential(ctx, accountID, userName, credentialID); err != nil {
		return err
	}
	if err := s.creds.DeleteServiceCredential(ctx, credentialID); err != nil {
		return err
	}
	s.logger.Info("service credential deleted", "account_id", accountID, "user", userName,
		"credential_id", credentialID)
	return nil
}

func (s *CredentialService) userServiceCredential(ctx context.Context, accountID, userName, credentialID string) (*domain.User, *domain.ServiceSpecificCredential, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.creds.GetServiceCredential(ctx, credentialID)
	if err != nil {
		return nil, nil, err
	}
	if c.UserID != u.ID {
		return nil, nil, domain.ErrNotFound("service credential %s for user %s", credentialID, userName)
	}
	return u, c, nil
}

// UploadSSHPublicKey registers a public key, computing its SHA-256
// fingerprint from the parsed key material.
func (s *CredentialService) UploadSSHPublicKey(ctx context.Context, accountID, userName string, req domain.UploadSSHPublicKeyRequest) (*domain.SSHPublicKey, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(req.Body))
	if err != nil {
		return nil, domain.ErrValidation("ssh public key body is not a valid authorized_keys entry: %v", err)
	}
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, err
	}
	created, err := s.creds.CreateSSHPublicKey(ctx, &domain.SSHPublicKey{
		UserID:      u.ID,
		Fingerprint: ssh.FingerprintSHA256(pub),
		Body:        req.Body,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ssh public key uploaded", "account_id", accountID, "user", userName, "key_id", created.ID)
	return created, nil
}

// GetSSHPublicKey returns one of the user's keys.
func (s *CredentialService) GetSSHPublicKey(ctx context.Context, accountID, userName, keyID string) (*domain.SSHPublicKey, error) {
	_, k, err := s.userSSHPublicKey(ctx, accountID, userName, keyID)
	return k, err
}

// ListSSHPublicKeys returns the user's keys.
func (s *CredentialService) ListSSHPublicKeys(ctx context.Context, accountID, userName string, page domain.PageRequest) ([]domain.SSHPublicKey, int64, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, 0, err
	}
	return s.creds.ListSSHPublicKeys(ctx, u.ID, page)
}

// SetSSHPublicKeyStatus activates or deactivates a key.
func (s *CredentialService) SetSSHPublicKeyStatus(ctx context.Context, accountID, userName, keyID string, active bool) error {
	if _, _, err := s.userSSHPublicKey(ctx, accountID, userName, keyID); err != nil {
		return err
	}
	return s.creds.SetSSHPublicKeyStatus(ctx, keyID, active)
}

// DeleteSSHPublicKey removes a key.
func (s *CredentialService) DeleteSSHPublicKey(ctx context.Context, accountID, userName, keyID string) error {
	if _, _, err := s.userSSHPublicKey(ctx, accountID, userName, keyID); err != nil {
		return err
	}
	if err := s.creds.DeleteSSHPublicKey(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("ssh public key deleted", "account_id", accountID, "user", userName, "key_id", keyID)
	return nil
}

func (s *CredentialService) userSSHPublicKey(ctx context.Context, accountID, userName, keyID string) (*domain.User, *domain.SSHPublicKey, error) {
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return nil, nil, err
	}
	k, err := s.creds.GetSSHPublicKey(ctx, keyID)
	if err != nil {
		return nil, nil, err
	}
	if k.UserID != u.ID {
		return nil, nil, domain.ErrNotFound("ssh public key %s for user %s", keyID, userName)
	}
	return u, k, nil
}

// generateSecret returns a random 40-character base64 secret.
func generateSecret() (string, error) {
	buf := make([]byte, secretLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", domain.ErrStorage(err, "generate secret")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

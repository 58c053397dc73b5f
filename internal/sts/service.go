package sts

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

// DefaultKeyLifetime is how long a freshly minted token key may issue new
// tokens. Expired keys stay readable until the sweep removes them.
const DefaultKeyLifetime = 24 * time.Hour

// TokenService mints and validates session tokens. Key material lives in
// the token-key store; currently-loaded keys are cached so concurrent token
// operations do not hit the database per request.
type TokenService struct {
	keys        domain.TokenKeyRepository
	alloc       *ids.Allocator
	logger      *slog.Logger
	keyLifetime time.Duration

	mu     sync.RWMutex
	byRole map[string]*domain.RoleTokenKey
	byID   map[string]*domain.RoleTokenKey
}

// NewTokenService creates a TokenService. A non-positive keyLifetime selects
// DefaultKeyLifetime.
func NewTokenService(keys domain.TokenKeyRepository, alloc *ids.Allocator, logger *slog.Logger, keyLifetime time.Duration) *TokenService {
	if keyLifetime <= 0 {
		keyLifetime = DefaultKeyLifetime
	}
	return &TokenService{
		keys:        keys,
		alloc:       alloc,
		logger:      logger,
		keyLifetime: keyLifetime,
		byRole:      make(map[string]*domain.RoleTokenKey),
		byID:        make(map[string]*domain.RoleTokenKey),
	}
}

// CreateToken mints temporary credentials for a role session. The caller
// has already authorized the assumption and clamped duration to the role's
// maximum. The returned secret is derived, not stored: validation re-derives
// it from the token claims and the sealing key. A non-nil identity stamps
// the federated provider and subject into the claims.
func (s *TokenService) CreateToken(ctx context.Context, role *domain.Role, sessionName string, duration time.Duration, sessionPolicy string, identity *WebIdentity) (*domain.TempCredentials, error) {
	now := time.Now().UTC()
	key, err := s.issuingKey(ctx, role.ID, now)
	if err != nil {
		return nil, err
	}
	tempID, err := s.alloc.Allocate(ctx, ids.KindTempAccessKey, s.keyIDUsed)
	if err != nil {
		return nil, err
	}

	claims := &Claims{
		RoleID:      role.ID,
		AccountID:   role.AccountID,
		RoleName:    role.Name,
		SessionName: sessionName,
		AccessKeyID: tempID,
		Expiration:  now.Add(duration).Unix(),
	}
	if sessionPolicy != "" {
		claims.SessionPolicy = sessionPolicy
		claims.PolicyDigest = policyDigest(sessionPolicy)
	}
	if identity != nil {
		claims.FederatedProvider = identity.Issuer
		claims.FederatedSubject = identity.Subject
	}

	token, err := sealToken(key, claims)
	if err != nil {
		return nil, err
	}
	secret, err := deriveSecret(key.Key, claims)
	if err != nil {
		return nil, err
	}
	return &domain.TempCredentials{
		AccessKeyID:     tempID,
		SecretAccessKey: secret,
		SessionToken:    token,
		Expiration:      claims.ExpiresAt(),
	}, nil
}

// ValidateToken decrypts and checks a session token, returning its claims.
// Fails with a TokenError: invalid for anything undecryptable, expired for a
// well-formed token past its embedded expiration.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	claims, _, err := s.validate(ctx, token)
	return claims, err
}

// ResolveSessionSecret validates the token and re-derives the temporary
// secret for the temporary access-key id, for request-signature checks.
func (s *TokenService) ResolveSessionSecret(ctx context.Context, accessKeyID, token string) (string, *Claims, error) {
	claims, key, err := s.validate(ctx, token)
	if err != nil {
		return "", nil, err
	}
	if claims.AccessKeyID != accessKeyID {
		return "", nil, domain.ErrTokenInvalid("session token was not issued for access key %s", accessKeyID)
	}
	secret, err := deriveSecret(key.Key, claims)
	if err != nil {
		return "", nil, err
	}
	return secret, claims, nil
}

func (s *TokenService) validate(ctx context.Context, token string) (*Claims, *domain.RoleTokenKey, error) {
	keyID, _, err := splitToken(token)
	if err != nil {
		return nil, nil, err
	}
	key, err := s.decryptionKey(ctx, keyID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil, domain.ErrTokenInvalid("session token references unknown key")
		}
		return nil, nil, err
	}
	claims, err := openToken(key, token)
	if err != nil {
		return nil, nil, err
	}
	if !claims.ExpiresAt().After(time.Now().UTC()) {
		return nil, nil, domain.ErrTokenExpired("session token expired at %s", claims.ExpiresAt().Format(time.RFC3339))
	}
	return claims, key, nil
}

// issuingKey returns the role's currently-valid sealing key, loading or
// minting one on a miss. Double-checked locking keeps the hot path on the
// read lock.
func (s *TokenService) issuingKey(ctx context.Context, roleID string, now time.Time) (*domain.RoleTokenKey, error) {
	s.mu.RLock()
	if k, ok := s.byRole[roleID]; ok && k.ValidFor(now) {
		s.mu.RUnlock()
		return k, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.byRole[roleID]; ok && k.ValidFor(now) {
		return k, nil
	}

	k, err := s.keys.GetCurrentForRole(ctx, roleID, now)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		k, err = s.mintKey(ctx, roleID, now)
	}
	if err != nil {
		return nil, err
	}
	s.byRole[roleID] = k
	s.byID[k.AccessKeyID] = k
	return k, nil
}

// decryptionKey returns the key named in a token header. Expired keys
// resolve too: tokens issued near the end of a key's window outlive it.
func (s *TokenService) decryptionKey(ctx context.Context, keyID string) (*domain.RoleTokenKey, error) {
	s.mu.RLock()
	if k, ok := s.byID[keyID]; ok {
		s.mu.RUnlock()
		return k, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.byID[keyID]; ok {
		return k, nil
	}
	k, err := s.keys.GetByAccessKeyID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	s.byID[keyID] = k
	return k, nil
}

func (s *TokenService) mintKey(ctx context.Context, roleID string, now time.Time) (*domain.RoleTokenKey, error) {
	id, err := s.alloc.Allocate(ctx, ids.KindTempAccessKey, s.keyIDUsed)
	if err != nil {
		return nil, err
	}
	material := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, domain.ErrStorage(err, "generating token key material")
	}
	k := &domain.RoleTokenKey{
		AccessKeyID: id,
		RoleID:      roleID,
		Algorithm:   domain.TokenKeyAlgorithmAES256GCM,
		Key:         material,
		ValidAt:     now,
		ExpiresAt:   now.Add(s.keyLifetime),
	}
	if err := s.keys.Create(ctx, k); err != nil {
		return nil, err
	}
	s.logger.Info("minted token key",
		"role_id", roleID,
		"access_key_id", id,
		"expires_at", k.ExpiresAt.Format(time.RFC3339),
	)
	return k, nil
}

func (s *TokenService) keyIDUsed(ctx context.Context, id string) (bool, error) {
	_, err := s.keys.GetByAccessKeyID(ctx, id)
	if err == nil {
		return true, nil
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

// RotateExpiring mints replacement keys for every role whose newest key
// expires within the horizon. The old key keeps serving until its window
// closes; the replacement takes over for new tokens from now.
func (s *TokenService) RotateExpiring(ctx context.Context, horizon time.Duration) (int, error) {
	now := time.Now().UTC()
	expiring, err := s.keys.ListExpiring(ctx, now.Add(horizon))
	if err != nil {
		return 0, err
	}
	rotated := 0
	for _, old := range expiring {
		if _, err := s.mintKey(ctx, old.RoleID, now); err != nil {
			// The role may have been deleted between listing and minting.
			s.logger.Warn("token key rotation failed",
				"role_id", old.RoleID,
				"error", err,
			)
			continue
		}
		rotated++
	}
	return rotated, nil
}

// SweepExpiredKeys archives keys that expired more than grace ago. The grace
// must cover the maximum session duration so no outstanding token loses its
// decryption key.
func (s *TokenService) SweepExpiredKeys(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-grace)
	n, err := s.keys.SweepExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidateKeys()
	}
	return n, nil
}

// invalidateKeys drops the key cache so swept keys stop resolving.
func (s *TokenService) invalidateKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRole = make(map[string]*domain.RoleTokenKey)
	s.byID = make(map[string]*domain.RoleTokenKey)
}

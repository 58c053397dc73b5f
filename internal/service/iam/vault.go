package iam

import (
	"context"

	"iamcore/internal/domain"
	"iamcore/internal/ids"
	"iamcore/internal/sts"
)

// CredentialVault resolves the signing secret and identity behind an
// access-key id presented for authentication.
type CredentialVault struct {
	creds  domain.CredentialRepository
	tokens *sts.TokenService
}

// NewCredentialVault creates a new CredentialVault.
func NewCredentialVault(creds domain.CredentialRepository, tokens *sts.TokenService) *CredentialVault {
	return &CredentialVault{creds: creds, tokens: tokens}
}

// ResolveSecret returns the secret expected for the key id and the caller
// it authenticates. Long-term ids resolve through the credential store;
// temporary ids validate the session token and re-derive the secret from
// its claims.
func (v *CredentialVault) ResolveSecret(ctx context.Context, accessKeyID, sessionToken string) (string, domain.Caller, error) {
	kind, ok := ids.KindOfAccessKey(accessKeyID)
	if !ok {
		return "", domain.Caller{}, domain.ErrAccessDenied("access key id %q is not recognized", accessKeyID)
	}
	if kind == ids.KindTempAccessKey {
		return v.resolveSession(ctx, accessKeyID, sessionToken)
	}

	key, user, err := v.creds.ResolveAccessKey(ctx, accessKeyID)
	if err != nil {
		if domain.IsNotFound(err) {
			return "", domain.Caller{}, domain.ErrAccessDenied("access key %s is unknown", accessKeyID)
		}
		return "", domain.Caller{}, err
	}
	if !key.Active {
		return "", domain.Caller{}, domain.ErrAccessDenied("access key %s is inactive", accessKeyID)
	}
	return key.Secret, domain.Caller{
		AccountID:   user.AccountID,
		PrincipalID: user.ID,
		ARN:         user.ARN(),
		Type:        domain.CallerTypeUser,
		UserID:      user.ID,
		AccessKeyID: key.ID,
	}, nil
}

func (v *CredentialVault) resolveSession(ctx context.Context, accessKeyID, sessionToken string) (string, domain.Caller, error) {
	if sessionToken == "" {
		return "", domain.Caller{}, domain.ErrTokenInvalid("temporary credentials require a session token")
	}
	secret, claims, err := v.tokens.ResolveSessionSecret(ctx, accessKeyID, sessionToken)
	if err != nil {
		return "", domain.Caller{}, err
	}
	return secret, domain.Caller{
		AccountID:         claims.AccountID,
		PrincipalID:       claims.PrincipalID(),
		ARN:               claims.SessionARN(),
		Type:              domain.CallerTypeAssumedRole,
		RoleID:            claims.RoleID,
		SessionName:       claims.SessionName,
		SessionPolicy:     claims.SessionPolicy,
		FederatedProvider: claims.FederatedProvider,
		AccessKeyID:       accessKeyID,
	}, nil
}

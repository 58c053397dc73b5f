package sts

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"iamcore/internal/domain"
)

// WebIdentity is the verified external identity behind an
// AssumeRoleWithWebIdentity call. Subject and audience feed the session's
// evaluation context.
type WebIdentity struct {
	Subject  string
	Issuer   string
	Audience []string
}

// IdentityVerifier checks an externally issued identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*WebIdentity, error)
}

// OIDCVerifier verifies identity tokens against a provider's JWKS via OIDC
// discovery.
type OIDCVerifier struct {
	verifier       *oidc.IDTokenVerifier
	allowedIssuers map[string]bool
}

// NewOIDCVerifier creates a verifier from an OIDC issuer URL. Discovery runs
// once at construction.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string, allowedIssuers []string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})
	issuers := make(map[string]bool, len(allowedIssuers))
	for _, iss := range allowedIssuers {
		issuers[iss] = true
	}
	if len(issuers) == 0 {
		issuers[issuerURL] = true
	}
	return &OIDCVerifier{verifier: verifier, allowedIssuers: issuers}, nil
}

// Verify checks the token's signature, audience, and issuer.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*WebIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, domain.ErrAccessDenied("web identity token rejected: %v", err)
	}
	if !v.allowedIssuers[idToken.Issuer] {
		return nil, domain.ErrAccessDenied("web identity issuer %q is not trusted", idToken.Issuer)
	}
	return &WebIdentity{
		Subject:  idToken.Subject,
		Issuer:   idToken.Issuer,
		Audience: idToken.Audience,
	}, nil
}

// StaticVerifier verifies identity tokens signed with a shared HS256
// secret. Intended for local and test deployments without an OIDC provider.
type StaticVerifier struct {
	secret []byte
	issuer string
}

// NewStaticVerifier creates an HS256 verifier. The issuer, when non-empty,
// is required to match the token's iss claim.
func NewStaticVerifier(secret, issuer string) (*StaticVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("web identity secret is required")
	}
	return &StaticVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify checks the HS256 signature and extracts subject, issuer, and
// audience.
func (v *StaticVerifier) Verify(_ context.Context, token string) (*WebIdentity, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, domain.ErrAccessDenied("web identity token rejected: %v", err)
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrAccessDenied("web identity claims are malformed")
	}

	id := &WebIdentity{}
	if sub, ok := raw["sub"].(string); ok {
		id.Subject = sub
	}
	if iss, ok := raw["iss"].(string); ok {
		id.Issuer = iss
	}
	switch aud := raw["aud"].(type) {
	case string:
		id.Audience = []string{aud}
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok {
				id.Audience = append(id.Audience, s)
			}
		}
	}
	if id.Subject == "" {
		return nil, domain.ErrAccessDenied("web identity token has no subject")
	}
	if v.issuer != "" && id.Issuer != v.issuer {
		return nil, domain.ErrAccessDenied("web identity issuer %q is not trusted", id.Issuer)
	}
	return id, nil
}

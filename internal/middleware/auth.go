package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"iamcore/internal/domain"
)

// Credential headers. Long-term keys send the first two; temporary
// credentials additionally send the session token.
const (
	HeaderAccessKeyID  = "X-Access-Key-Id"
	HeaderSecretKey    = "X-Secret-Access-Key"
	HeaderSessionToken = "X-Session-Token"
)

// SecretResolver looks up the secret expected for an access-key id and the
// caller it authenticates.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, accessKeyID, sessionToken string) (string, domain.Caller, error)
}

// RootCredential is the bootstrap credential that authenticates the
// operator account root without touching the credential store.
type RootCredential struct {
	AccessKeyID string
	Secret      string
	AccountID   string
}

func (c RootCredential) matches(accessKeyID string) bool {
	return c.AccessKeyID != "" &&
		subtle.ConstantTimeCompare([]byte(accessKeyID), []byte(c.AccessKeyID)) == 1
}

// Authenticate resolves the credential headers into a Caller and stores it,
// together with transport metadata for policy conditions, in the request
// context. Requests without credentials, or with credentials that do not
// check out, are rejected before reaching the handler.
func Authenticate(vault SecretResolver, root RootCredential) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID := r.Header.Get(HeaderAccessKeyID)
			secret := r.Header.Get(HeaderSecretKey)
			if keyID == "" {
				writeAuthError(w, domain.ErrAccessDenied("request is missing credentials"))
				return
			}

			var caller domain.Caller
			if root.matches(keyID) {
				if subtle.ConstantTimeCompare([]byte(secret), []byte(root.Secret)) != 1 {
					writeAuthError(w, domain.ErrAccessDenied("secret access key does not match"))
					return
				}
				caller = domain.Caller{
					AccountID:   root.AccountID,
					PrincipalID: root.AccountID,
					ARN:         "arn:aws:iam::" + root.AccountID + ":root",
					Type:        domain.CallerTypeRoot,
					AccessKeyID: keyID,
				}
			} else {
				expected, resolved, err := vault.ResolveSecret(r.Context(), keyID, r.Header.Get(HeaderSessionToken))
				if err != nil {
					writeAuthError(w, err)
					return
				}
				if subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
					writeAuthError(w, domain.ErrAccessDenied("secret access key does not match"))
					return
				}
				caller = resolved
			}

			ctx := domain.WithRequestMeta(r.Context(), domain.RequestMeta{
				SourceIP:        clientIP(r),
				SecureTransport: r.TLS != nil,
			})
			ctx = domain.WithCaller(ctx, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError renders authentication failures in the API error shape
// without depending on the handler package.
func writeAuthError(w http.ResponseWriter, err error) {
	status, code := http.StatusForbidden, "AccessDenied"
	message := err.Error()

	var token *domain.TokenError
	switch {
	case errors.As(err, &token):
		code = "InvalidClientTokenId"
		if token.Expired {
			code = "ExpiredToken"
		}
	case isDomainAccessDenied(err):
		// defaults hold
	default:
		status, code = http.StatusInternalServerError, "ServiceFailure"
		message = "internal service failure"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func isDomainAccessDenied(err error) bool {
	var denied *domain.AccessDeniedError
	return errors.As(err, &denied)
}

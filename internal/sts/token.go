// Package sts issues and validates encrypted session tokens for
// assumed-role credentials.
package sts

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"time"

	"iamcore/internal/domain"
)

// tokenVersion prefixes every session token. Bumped if the sealed layout
// ever changes, so old tokens fail cleanly instead of misparsing.
const tokenVersion = "v1"

// Claims is the payload sealed inside a session token. The token is the
// only copy; nothing about an individual session is persisted server-side.
type Claims struct {
	RoleID        string `json:"rid"`
	AccountID     string `json:"acc"`
	RoleName      string `json:"rol"`
	SessionName   string `json:"ses"`
	AccessKeyID   string `json:"kid"`
	Expiration    int64  `json:"exp"`
	SessionPolicy string `json:"pol,omitempty"`
	PolicyDigest  string `json:"dig,omitempty"`
	// Set when the session was opened through web identity federation.
	FederatedProvider string `json:"fed,omitempty"`
	FederatedSubject  string `json:"sub,omitempty"`
}

// ExpiresAt returns the session expiration instant.
func (c *Claims) ExpiresAt() time.Time {
	return time.Unix(c.Expiration, 0).UTC()
}

// SessionARN renders the assumed-role principal ARN for the session.
func (c *Claims) SessionARN() string {
	return "arn:aws:sts::" + c.AccountID + ":assumed-role/" + c.RoleName + "/" + c.SessionName
}

// PrincipalID renders the session's unique id (role id plus session name).
func (c *Claims) PrincipalID() string {
	return c.RoleID + ":" + c.SessionName
}

func newAEAD(material []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, domain.ErrStorage(err, "loading token key material")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, domain.ErrStorage(err, "building token cipher")
	}
	return gcm, nil
}

// sealToken encrypts the claims under the key. The token is
// "v1.<key access-key-id>.<base64url(nonce||ciphertext)>" with the header
// bound as additional authenticated data, so a token cannot be replayed
// under a different key id.
func sealToken(key *domain.RoleTokenKey, c *Claims) (string, error) {
	aead, err := newAEAD(key.Key)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(c)
	if err != nil {
		return "", domain.ErrStorage(err, "encoding token claims")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", domain.ErrStorage(err, "generating token nonce")
	}
	header := tokenVersion + "." + key.AccessKeyID
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(header))
	return header + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// splitToken parses the cleartext header off a session token.
func splitToken(token string) (keyID, payload string, err error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != tokenVersion || parts[1] == "" {
		return "", "", domain.ErrTokenInvalid("malformed session token")
	}
	return parts[1], parts[2], nil
}

// openToken authenticates and decrypts a session token under the key named
// in its header. Any failure is reported as an invalid-token error; callers
// check expiration separately.
func openToken(key *domain.RoleTokenKey, token string) (*Claims, error) {
	keyID, payload, err := splitToken(token)
	if err != nil {
		return nil, err
	}
	sealed, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.ErrTokenInvalid("session token payload is not valid base64")
	}
	aead, err := newAEAD(key.Key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, domain.ErrTokenInvalid("session token payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(tokenVersion+"."+keyID))
	if err != nil {
		return nil, domain.ErrTokenInvalid("session token failed authentication")
	}
	var c Claims
	if err := json.Unmarshal(plaintext, &c); err != nil {
		return nil, domain.ErrTokenInvalid("session token claims are malformed")
	}
	return &c, nil
}

// deriveSecret computes the temporary secret access key as an HMAC of the
// key material over the canonical claims bytes. The secret is never stored;
// anyone holding the token and the key re-derives the same value.
func deriveSecret(material []byte, c *Claims) (string, error) {
	canonical, err := json.Marshal(c)
	if err != nil {
		return "", domain.ErrStorage(err, "encoding token claims")
	}
	mac := hmac.New(sha256.New, material)
	mac.Write(canonical)
	// 30 bytes of MAC encode to the same 40-character shape as a
	// long-term secret.
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)[:30]), nil
}

// policyDigest fingerprints a session policy document for the claims.
func policyDigest(document string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:])
}

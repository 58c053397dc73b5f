// Package ids allocates fixed-length, type-prefixed resource identifiers.
package ids

import (
	"context"
	"crypto/rand"
	"io"

	"iamcore/internal/domain"
)

// Kind selects the prefix and width of an allocated identifier.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
	KindRole
	KindPolicy
	KindAccessKey
	KindTempAccessKey
	KindServiceCredential
	KindSSHPublicKey
)

// idAlphabet is the base32 alphabet used for identifier suffixes.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Access keys are 20 characters, other resource ids 21.
const (
	accessKeyIDLen   = 20
	resourceIDLen    = 21
	prefixLen        = 4
	maxAllocAttempts = 5
)

func (k Kind) prefix() string {
	switch k {
	case KindUser:
		return "AIDA"
	case KindGroup:
		return "AGPA"
	case KindRole:
		return "AROA"
	case KindPolicy:
		return "ANPA"
	case KindAccessKey:
		return "AKIA"
	case KindTempAccessKey:
		return "ASIA"
	case KindServiceCredential:
		return "ACCA"
	case KindSSHPublicKey:
		return "APKA"
	}
	return "AXXX"
}

func (k Kind) length() int {
	switch k {
	case KindAccessKey, KindTempAccessKey:
		return accessKeyIDLen
	}
	return resourceIDLen
}

// ExistsFunc probes the target table for an already-used identifier.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Allocator generates globally unique identifiers. Safe for concurrent use.
type Allocator struct {
	rand io.Reader
}

// NewAllocator creates an Allocator backed by crypto/rand.
func NewAllocator() *Allocator {
	return &Allocator{rand: rand.Reader}
}

// Allocate generates an identifier of the given kind and verifies it is
// unused via exists, retrying a bounded number of times on collision.
func (a *Allocator) Allocate(ctx context.Context, kind Kind, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		id, err := a.generate(kind.prefix(), kind.length())
		if err != nil {
			return "", err
		}
		used, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
	}
	return "", domain.ErrStorage(nil, "id space exhausted for prefix %s after %d attempts",
		kind.prefix(), maxAllocAttempts)
}

// AllocateAccountID generates a fixed-width decimal account id.
func (a *Allocator) AllocateAccountID(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		buf := make([]byte, domain.AccountIDLen)
		if _, err := io.ReadFull(a.rand, buf); err != nil {
			return "", domain.ErrStorage(err, "reading randomness")
		}
		for i, b := range buf {
			buf[i] = '0' + b%10
		}
		id := string(buf)
		used, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
	}
	return "", domain.ErrStorage(nil, "account id space exhausted after %d attempts", maxAllocAttempts)
}

func (a *Allocator) generate(prefix string, total int) (string, error) {
	buf := make([]byte, total-prefixLen)
	if _, err := io.ReadFull(a.rand, buf); err != nil {
		return "", domain.ErrStorage(err, "reading randomness")
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return prefix + string(buf), nil
}

// KindOfAccessKey reports whether an access-key id names a long-term or
// temporary credential, by prefix.
func KindOfAccessKey(id string) (Kind, bool) {
	if len(id) < accessKeyIDLen {
		return 0, false
	}
	switch id[:prefixLen] {
	case "AKIA":
		return KindAccessKey, true
	case "ASIA":
		return KindTempAccessKey, true
	}
	return 0, false
}

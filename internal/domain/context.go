package domain

import "context"

type callerKey struct{}

// Caller principal types.
const (
	CallerTypeUser        = "user"
	CallerTypeAssumedRole = "assumed-role"
	CallerTypeRoot        = "root"
)

// Caller carries the authenticated identity through request context.
type Caller struct {
	AccountID   string
	PrincipalID string // AIDA... for users, AROA...:session for role sessions, account id for root
	ARN         string
	Type        string // CallerTypeUser, CallerTypeAssumedRole, CallerTypeRoot
	UserID      string // set when Type is user
	RoleID      string // set when Type is assumed-role
	SessionName string // set when Type is assumed-role
	// SessionPolicy is the policy document embedded in the session token,
	// empty when the session was created without one.
	SessionPolicy string
	// FederatedProvider is the issuer of the web identity the session was
	// opened with, empty for sessions opened with IAM credentials.
	FederatedProvider string
	AccessKeyID       string
}

// IsRoot reports whether the caller authenticated with root credentials.
func (c Caller) IsRoot() bool { return c.Type == CallerTypeRoot }

// WithCaller stores a Caller in the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext extracts the Caller from the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

type requestMetaKey struct{}

// RequestMeta carries transport facts about the request for policy
// condition evaluation.
type RequestMeta struct {
	SourceIP        string
	SecureTransport bool
}

// WithRequestMeta stores request metadata in the context.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFromContext extracts request metadata from the context.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	m, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m, ok
}

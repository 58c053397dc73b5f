package iam

import (
	"context"
	"log/slog"
	"time"

	"iamcore/internal/domain"
	"iamcore/internal/policy"
	"iamcore/internal/sts"
)

// STSService mints and describes temporary credentials.
type STSService struct {
	roles    domain.RoleRepository
	tokens   *sts.TokenService
	verifier sts.IdentityVerifier // nil disables web identity federation
	enforcer *LimitEnforcer
	logger   *slog.Logger
}

// NewSTSService creates a new STSService.
func NewSTSService(roles domain.RoleRepository, tokens *sts.TokenService, verifier sts.IdentityVerifier, enforcer *LimitEnforcer, logger *slog.Logger) *STSService {
	return &STSService{
		roles:    roles,
		tokens:   tokens,
		verifier: verifier,
		enforcer: enforcer,
		logger:   logger,
	}
}

// AssumeRole evaluates the role's trust policy against the caller and
// mints session credentials. Only the trust policy decides: a principal
// the trust document does not allow is refused regardless of its
// identity policies.
func (s *STSService) AssumeRole(ctx context.Context, req domain.AssumeRoleRequest) (*domain.TempCredentials, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("request is not authenticated")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role, err := s.roles.GetByName(ctx, req.AccountID, req.RoleName)
	if err != nil {
		return nil, err
	}
	duration, err := s.sessionDuration(ctx, role, req.DurationSeconds)
	if err != nil {
		return nil, err
	}
	if req.SessionPolicy != "" {
		if _, err := policy.Parse(req.SessionPolicy); err != nil {
			return nil, err
		}
	}
	if err := s.evaluateTrust(role, "sts:AssumeRole", RequestContext(ctx, caller)); err != nil {
		return nil, err
	}
	creds, err := s.tokens.CreateToken(ctx, role, req.SessionName, duration, req.SessionPolicy, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role assumed",
		"account_id", role.AccountID,
		"role", role.Name,
		"session", req.SessionName,
		"principal", caller.ARN,
		"expiration", creds.Expiration.Format(time.RFC3339))
	return creds, nil
}

// AssumeRoleWithWebIdentity authenticates with an external identity token
// instead of IAM credentials. The trust policy must allow the token's
// issuer as a federated principal.
func (s *STSService) AssumeRoleWithWebIdentity(ctx context.Context, req domain.AssumeRoleRequest, identityToken string) (*domain.TempCredentials, error) {
	if s.verifier == nil {
		return nil, domain.ErrAccessDenied("web identity federation is not configured")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if identityToken == "" {
		return nil, domain.ErrValidation("web identity token is required")
	}
	identity, err := s.verifier.Verify(ctx, identityToken)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByName(ctx, req.AccountID, req.RoleName)
	if err != nil {
		return nil, err
	}
	duration, err := s.sessionDuration(ctx, role, req.DurationSeconds)
	if err != nil {
		return nil, err
	}
	if req.SessionPolicy != "" {
		if _, err := policy.Parse(req.SessionPolicy); err != nil {
			return nil, err
		}
	}
	evalCtx := policy.Context{
		policy.CtxFederatedProvider: identity.Issuer,
		policy.CtxPrincipalType:     "FederatedUser",
		policy.CtxCurrentTime:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.evaluateTrust(role, "sts:AssumeRoleWithWebIdentity", evalCtx); err != nil {
		return nil, err
	}
	creds, err := s.tokens.CreateToken(ctx, role, req.SessionName, duration, req.SessionPolicy, identity)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role assumed with web identity",
		"account_id", role.AccountID,
		"role", role.Name,
		"session", req.SessionName,
		"issuer", identity.Issuer,
		"subject", identity.Subject)
	return creds, nil
}

// CallerIdentity describes the authenticated principal.
type CallerIdentity struct {
	AccountID   string
	ARN         string
	PrincipalID string
}

// GetCallerIdentity returns the identity behind the request's credentials.
func (s *STSService) GetCallerIdentity(ctx context.Context) (*CallerIdentity, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("request is not authenticated")
	}
	return &CallerIdentity{
		AccountID:   caller.AccountID,
		ARN:         caller.ARN,
		PrincipalID: caller.PrincipalID,
	}, nil
}

// sessionDuration resolves the requested duration against the role's cap
// and the account's session duration limit. Zero requests the role cap.
func (s *STSService) sessionDuration(ctx context.Context, role *domain.Role, seconds int) (time.Duration, error) {
	if seconds == 0 {
		seconds = role.MaxSessionDuration
	}
	if seconds > role.MaxSessionDuration {
		return 0, domain.ErrValidation("requested duration %d exceeds the role maximum of %d seconds",
			seconds, role.MaxSessionDuration)
	}
	ceiling, err := s.enforcer.EffectiveInt(ctx, role.AccountID,
		domain.LimitServiceSTS, domain.LimitMaxSessionDuration)
	if err != nil {
		return 0, err
	}
	if seconds > ceiling {
		return 0, domain.ErrValidation("requested duration %d exceeds the account limit of %d seconds",
			seconds, ceiling)
	}
	return time.Duration(seconds) * time.Second, nil
}

// evaluateTrust runs the decision procedure with the trust document as
// the resource policy.
func (s *STSService) evaluateTrust(role *domain.Role, action string, evalCtx policy.Context) error {
	trust, err := policy.ParseStatements(role.AssumeRolePolicy)
	if err != nil {
		return domain.ErrStorage(err, "trust policy for role %s does not parse", role.Name)
	}
	req := policy.Request{Action: action, Resource: role.ARN(), Context: evalCtx}
	if policy.Evaluate(policy.Input{Resource: trust}, req) != policy.DecisionAllow {
		return domain.ErrAccessDenied("role %s trust policy does not allow %s", role.Name, action)
	}
	return nil
}

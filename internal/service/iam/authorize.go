package iam

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"iamcore/internal/domain"
	"iamcore/internal/policy"
)

// Authorizer assembles every policy source bearing on a caller and
// answers authorization questions against them.
type Authorizer struct {
	users    domain.UserRepository
	groups   domain.GroupRepository
	roles    domain.RoleRepository
	policies domain.PolicyRepository
	logger   *slog.Logger
}

// NewAuthorizer creates a new Authorizer.
func NewAuthorizer(users domain.UserRepository, groups domain.GroupRepository, roles domain.RoleRepository, policies domain.PolicyRepository, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		users:    users,
		groups:   groups,
		roles:    roles,
		policies: policies,
		logger:   logger,
	}
}

// Authorize answers one question for the caller in ctx. The bootstrap
// root principal bypasses policy evaluation entirely.
func (a *Authorizer) Authorize(ctx context.Context, action, resource string) error {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return domain.ErrAccessDenied("request is not authenticated")
	}
	if caller.IsRoot() {
		return nil
	}
	decision, err := a.Evaluate(ctx, caller, action, resource, nil)
	if err != nil {
		return err
	}
	if decision != policy.DecisionAllow {
		a.logger.Debug("authorization denied",
			"principal", caller.ARN, "action", action, "resource", resource)
		return domain.ErrAccessDenied("%s is not authorized to perform %s on %s",
			caller.ARN, action, resource)
	}
	return nil
}

// Evaluate runs the decision procedure for an explicit caller, optionally
// against a resource policy.
func (a *Authorizer) Evaluate(ctx context.Context, caller domain.Caller, action, resource string, resourcePolicy []policy.Statement) (policy.Decision, error) {
	in, err := a.buildInput(ctx, caller)
	if err != nil {
		return policy.DecisionDeny, err
	}
	in.Resource = resourcePolicy
	req := policy.Request{
		Action:   action,
		Resource: resource,
		Context:  RequestContext(ctx, caller),
	}
	return policy.Evaluate(in, req), nil
}

// buildInput gathers the caller's identity statements, boundary, and
// session policy.
func (a *Authorizer) buildInput(ctx context.Context, caller domain.Caller) (policy.Input, error) {
	var in policy.Input
	var err error
	switch caller.Type {
	case domain.CallerTypeUser:
		in.Principal, in.Boundary, err = a.userSources(ctx, caller.UserID)
	case domain.CallerTypeAssumedRole:
		in.Principal, in.Boundary, err = a.roleSources(ctx, caller.RoleID)
	default:
		return in, domain.ErrAccessDenied("principal type %q cannot be evaluated", caller.Type)
	}
	if err != nil {
		return in, err
	}
	if caller.SessionPolicy != "" {
		session, err := policy.ParseStatements(caller.SessionPolicy)
		if err != nil {
			return in, err
		}
		in.Session = session
	}
	return in, nil
}

// userSources collects the user's own policies, every policy inherited
// through group membership, and the user's boundary document.
func (a *Authorizer) userSources(ctx context.Context, userID string) ([]policy.SourcedStatement, []policy.Statement, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	var principal []policy.SourcedStatement

	principal, err = appendPrincipalSources(ctx, principal, principalPolicies{
		inline:   a.users.ListInlinePolicies,
		attached: a.users.ListAttachedPolicies,
		docs:     a.users.ListAttachedPolicyDocuments,
	}, u.ID, "")
	if err != nil {
		return nil, nil, err
	}

	groups, err := a.groups.ListGroupsForUser(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, g := range groups {
		principal, err = appendPrincipalSources(ctx, principal, principalPolicies{
			inline:   a.groups.ListInlinePolicies,
			attached: a.groups.ListAttachedPolicies,
			docs:     a.groups.ListAttachedPolicyDocuments,
		}, g.ID, "group/"+g.Name+"/")
		if err != nil {
			return nil, nil, err
		}
	}

	boundary, err := a.boundaryStatements(ctx, u.PermissionsBoundary)
	if err != nil {
		return nil, nil, err
	}
	return principal, boundary, nil
}

// roleSources collects an assumed role's policies and boundary.
func (a *Authorizer) roleSources(ctx context.Context, roleID string) ([]policy.SourcedStatement, []policy.Statement, error) {
	r, err := a.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	principal, err := appendPrincipalSources(ctx, nil, principalPolicies{
		inline:   a.roles.ListInlinePolicies,
		attached: a.roles.ListAttachedPolicies,
		docs:     a.roles.ListAttachedPolicyDocuments,
	}, r.ID, "")
	if err != nil {
		return nil, nil, err
	}
	boundary, err := a.boundaryStatements(ctx, r.PermissionsBoundary)
	if err != nil {
		return nil, nil, err
	}
	return principal, boundary, nil
}

// boundaryStatements loads a boundary policy's default document. A nil
// slice means no boundary is set.
func (a *Authorizer) boundaryStatements(ctx context.Context, policyID string) ([]policy.Statement, error) {
	if policyID == "" {
		return nil, nil
	}
	doc, err := a.policies.GetDefaultDocument(ctx, policyID)
	if err != nil {
		return nil, err
	}
	return policy.ParseStatements(doc)
}

// principalPolicies abstracts the identical inline/attached accessors the
// user, group, and role repositories expose.
type principalPolicies struct {
	inline   func(ctx context.Context, principalID string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error)
	attached func(ctx context.Context, principalID string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error)
	docs     func(ctx context.Context, principalID string) ([]string, error)
}

// appendPrincipalSources parses one principal's inline and attached policy
// documents into sourced statements. Inline statements are tagged with the
// policy name, attached ones with the policy ARN; sourcePrefix marks
// statements inherited through a group.
func appendPrincipalSources(ctx context.Context, dst []policy.SourcedStatement, pp principalPolicies, principalID, sourcePrefix string) ([]policy.SourcedStatement, error) {
	inline, _, err := pp.inline(ctx, principalID, domain.PageRequest{MaxItems: domain.MaxMaxItems})
	if err != nil {
		return nil, err
	}
	for _, p := range inline {
		statements, err := policy.ParseStatements(p.Document)
		if err != nil {
			return nil, err
		}
		for _, st := range statements {
			dst = append(dst, policy.SourcedStatement{Statement: st, Source: sourcePrefix + p.Name})
		}
	}

	docs, err := pp.docs(ctx, principalID)
	if err != nil {
		return nil, err
	}
	// Both attachment queries order by policy name, so metadata lines up
	// with documents index for index.
	metas, _, err := pp.attached(ctx, principalID, domain.PageRequest{MaxItems: domain.MaxMaxItems})
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		source := sourcePrefix + "attached-policy"
		if i < len(metas) {
			source = sourcePrefix + metas[i].ARN
		}
		statements, err := policy.ParseStatements(doc)
		if err != nil {
			return nil, err
		}
		for _, st := range statements {
			dst = append(dst, policy.SourcedStatement{Statement: st, Source: source})
		}
	}
	return dst, nil
}

// RequestContext assembles the evaluator context for a caller, folding in
// transport metadata when the request carries it.
func RequestContext(ctx context.Context, caller domain.Caller) policy.Context {
	pc := policy.Context{
		policy.CtxPrincipalAccount: caller.AccountID,
		policy.CtxPrincipalArn:     caller.ARN,
		policy.CtxUserID:           caller.PrincipalID,
		policy.CtxCurrentTime:      time.Now().UTC().Format(time.RFC3339),
	}
	switch caller.Type {
	case domain.CallerTypeUser:
		pc[policy.CtxPrincipalType] = "User"
		if i := strings.LastIndexByte(caller.ARN, '/'); i >= 0 {
			pc[policy.CtxUsername] = caller.ARN[i+1:]
		}
	case domain.CallerTypeAssumedRole:
		pc[policy.CtxPrincipalType] = "AssumedRole"
		pc[policy.CtxRoleSessionName] = caller.SessionName
	case domain.CallerTypeRoot:
		pc[policy.CtxPrincipalType] = "Account"
	}
	if caller.FederatedProvider != "" {
		pc[policy.CtxFederatedProvider] = caller.FederatedProvider
	}
	if meta, ok := domain.RequestMetaFromContext(ctx); ok {
		if meta.SourceIP != "" {
			pc[policy.CtxSourceIP] = meta.SourceIP
		}
		pc[policy.CtxSecureTransport] = "false"
		if meta.SecureTransport {
			pc[policy.CtxSecureTransport] = "true"
		}
	}
	return pc
}

package policy

// Well-known context keys set by the authorization layer.
const (
	CtxUsername          = "aws:username"
	CtxUserID            = "aws:userid"
	CtxPrincipalType     = "aws:PrincipalType"
	CtxPrincipalAccount  = "aws:PrincipalAccount"
	CtxPrincipalArn      = "aws:PrincipalArn"
	CtxFederatedProvider = "aws:FederatedProvider"
	CtxServiceName       = "aws:PrincipalServiceName"
	CtxCanonicalUser     = "aws:CanonicalUser"
	CtxCurrentTime       = "aws:CurrentTime"
	CtxSourceIP          = "aws:SourceIp"
	CtxSecureTransport   = "aws:SecureTransport"
	CtxRoleSessionName   = "sts:RoleSessionName"
)

// Decision is the evaluator's verdict. The zero value is Deny.
type Decision int

// The two possible verdicts.
const (
	DecisionDeny Decision = iota
	DecisionAllow
)

func (d Decision) String() string {
	if d == DecisionAllow {
		return "Allow"
	}
	return "Deny"
}

// Request is one authorization question.
type Request struct {
	Action   string
	Resource string
	Context  Context
}

// SourcedStatement tags an identity-policy statement with where it came
// from (inline policy name, attached policy ARN, owning group).
type SourcedStatement struct {
	Statement
	Source string
}

// Input collects every policy source bearing on one request. A nil
// Boundary/Session slice means that source is absent; an empty non-nil
// slice is a present-but-empty cap that denies everything it gates.
type Input struct {
	Principal []SourcedStatement
	Boundary  []Statement
	Resource  []Statement
	Session   []Statement
}

// Evaluate runs the decision procedure:
//
//  1. a matching Deny in identity, resource, or session sources denies;
//  2. a present permissions boundary with no matching Allow denies,
//     unless a resource-policy statement allows directly (the boundary
//     caps identity- and session-derived grants only); a present session
//     policy caps the same way;
//  3. a matching Allow in identity or resource sources allows;
//  4. otherwise deny.
//
// The function is pure: no I/O, no shared state.
func Evaluate(in Input, req Request) Decision {
	for _, ss := range in.Principal {
		if ss.Effect == EffectDeny && statementMatches(ss.Statement, req) {
			return DecisionDeny
		}
	}
	for _, st := range in.Resource {
		if st.Effect == EffectDeny && statementMatches(st, req) {
			return DecisionDeny
		}
	}
	for _, st := range in.Session {
		if st.Effect == EffectDeny && statementMatches(st, req) {
			return DecisionDeny
		}
	}

	resourceAllow := anyAllow(in.Resource, req)

	if in.Boundary != nil && !anyAllow(in.Boundary, req) {
		if resourceAllow {
			return DecisionAllow
		}
		return DecisionDeny
	}
	if in.Session != nil && !anyAllow(in.Session, req) {
		if resourceAllow {
			return DecisionAllow
		}
		return DecisionDeny
	}

	if resourceAllow {
		return DecisionAllow
	}
	for _, ss := range in.Principal {
		if ss.Effect == EffectAllow && statementMatches(ss.Statement, req) {
			return DecisionAllow
		}
	}
	return DecisionDeny
}

func anyAllow(statements []Statement, req Request) bool {
	for _, st := range statements {
		if st.Effect == EffectAllow && statementMatches(st, req) {
			return true
		}
	}
	return false
}

// statementMatches reports whether a statement's action, resource,
// principal, and condition clauses all cover the request.
func statementMatches(st Statement, req Request) bool {
	if len(st.Action) > 0 {
		if !anyValue(st.Action, func(p string) bool { return MatchAction(p, req.Action) }) {
			return false
		}
	} else if anyValue(st.NotAction, func(p string) bool { return MatchAction(p, req.Action) }) {
		return false
	}

	if len(st.Resource) > 0 {
		if !anyValue(st.Resource, func(p string) bool { return MatchResource(p, req.Resource) }) {
			return false
		}
	} else if len(st.NotResource) > 0 {
		if anyValue(st.NotResource, func(p string) bool { return MatchResource(p, req.Resource) }) {
			return false
		}
	}

	if st.Principal != nil && !principalMatches(st.Principal, req.Context) {
		return false
	}
	if st.NotPrincipal != nil && principalMatches(st.NotPrincipal, req.Context) {
		return false
	}

	if len(st.Condition) > 0 && !st.Condition.Eval(req.Context) {
		return false
	}
	return true
}

// principalMatches tests a Principal element against the caller identity
// in the context. AWS entries accept a bare account id, an account root
// ARN, or the caller's exact ARN; the other categories match exactly.
func principalMatches(p *Principal, ctx Context) bool {
	if p.Any {
		return true
	}
	arn, _ := ctx.Get(CtxPrincipalArn)
	account, _ := ctx.Get(CtxPrincipalAccount)
	for _, entry := range p.AWS {
		if entry == "*" {
			return true
		}
		if entry == arn && arn != "" {
			return true
		}
		if account != "" && (entry == account || entry == "arn:aws:iam::"+account+":root") {
			return true
		}
	}
	if provider, ok := ctx.Get(CtxFederatedProvider); ok {
		for _, entry := range p.Federated {
			if entry == provider {
				return true
			}
		}
	}
	if svc, ok := ctx.Get(CtxServiceName); ok {
		for _, entry := range p.Service {
			if entry == svc {
				return true
			}
		}
	}
	if cu, ok := ctx.Get(CtxCanonicalUser); ok {
		for _, entry := range p.CanonicalUser {
			if entry == cu {
				return true
			}
		}
	}
	return false
}

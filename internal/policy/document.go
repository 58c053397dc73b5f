// Package policy parses access policy documents into a closed statement
// model and evaluates them into Allow/Deny decisions.
package policy

import (
	"encoding/json"
	"strings"

	"iamcore/internal/domain"
)

// MaxDocumentLen caps accepted policy document size in bytes.
const MaxDocumentLen = 10240

// Effect is a statement's verdict contribution.
type Effect string

// The two statement effects.
const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// Document is a parsed policy document.
type Document struct {
	Version    string
	ID         string
	Statements []Statement
}

// Statement is one clause of a policy document.
type Statement struct {
	Sid          string
	Effect       Effect
	Action       []string
	NotAction    []string
	Resource     []string
	NotResource  []string
	Principal    *Principal
	NotPrincipal *Principal
	Condition    Condition
}

// Principal names who a resource-policy statement applies to. Any is set
// for the "*" form; otherwise the category lists hold matchable values.
type Principal struct {
	Any           bool
	AWS           []string
	CanonicalUser []string
	Federated     []string
	Service       []string
}

// Condition maps operator name to context key to accepted values.
type Condition map[string]map[string][]string

// stringList accepts a bare string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

type rawPrincipal struct {
	AWS           stringList `json:"AWS"`
	CanonicalUser stringList `json:"CanonicalUser"`
	Federated     stringList `json:"Federated"`
	Service       stringList `json:"Service"`
}

func (p *Principal) UnmarshalJSON(data []byte) error {
	var any string
	if err := json.Unmarshal(data, &any); err == nil {
		if any != "*" {
			return errBadPrincipal
		}
		p.Any = true
		return nil
	}
	var raw rawPrincipal
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.AWS = raw.AWS
	p.CanonicalUser = raw.CanonicalUser
	p.Federated = raw.Federated
	p.Service = raw.Service
	return nil
}

var errBadPrincipal = domain.ErrMalformedPolicy(`principal must be "*" or a category map`)

type rawCondition map[string]map[string]stringList

type rawStatement struct {
	Sid          string       `json:"Sid"`
	Effect       string       `json:"Effect"`
	Action       stringList   `json:"Action"`
	NotAction    stringList   `json:"NotAction"`
	Resource     stringList   `json:"Resource"`
	NotResource  stringList   `json:"NotResource"`
	Principal    *Principal   `json:"Principal"`
	NotPrincipal *Principal   `json:"NotPrincipal"`
	Condition    rawCondition `json:"Condition"`
}

type rawDocument struct {
	Version   string          `json:"Version"`
	ID        string          `json:"Id"`
	Statement json.RawMessage `json:"Statement"`
}

// Parse decodes and validates a policy document. All failures are
// ValidationErrors so malformed input never reaches storage.
func Parse(document string) (*Document, error) {
	if strings.TrimSpace(document) == "" {
		return nil, domain.ErrMalformedPolicy("policy document is empty")
	}
	if len(document) > MaxDocumentLen {
		return nil, domain.ErrMalformedPolicy("policy document exceeds %d bytes", MaxDocumentLen)
	}

	var raw rawDocument
	if err := json.Unmarshal([]byte(document), &raw); err != nil {
		return nil, domain.ErrMalformedPolicy("policy document is not valid JSON: %v", err)
	}
	if len(raw.Statement) == 0 {
		return nil, domain.ErrMalformedPolicy("policy document has no Statement")
	}

	// Statement is a single object or a list.
	var rawStatements []rawStatement
	if err := json.Unmarshal(raw.Statement, &rawStatements); err != nil {
		var one rawStatement
		if err := json.Unmarshal(raw.Statement, &one); err != nil {
			return nil, domain.ErrMalformedPolicy("Statement must be an object or a list of objects")
		}
		rawStatements = []rawStatement{one}
	}

	doc := &Document{Version: raw.Version, ID: raw.ID}
	for i, rs := range rawStatements {
		st, err := buildStatement(rs)
		if err != nil {
			return nil, domain.ErrMalformedPolicy("statement %d: %v", i, err)
		}
		doc.Statements = append(doc.Statements, st)
	}
	return doc, nil
}

func buildStatement(rs rawStatement) (Statement, error) {
	st := Statement{
		Sid:          rs.Sid,
		Action:       rs.Action,
		NotAction:    rs.NotAction,
		Resource:     rs.Resource,
		NotResource:  rs.NotResource,
		Principal:    rs.Principal,
		NotPrincipal: rs.NotPrincipal,
	}

	switch rs.Effect {
	case "Allow":
		st.Effect = EffectAllow
	case "Deny":
		st.Effect = EffectDeny
	default:
		return st, domain.ErrMalformedPolicy(`Effect must be "Allow" or "Deny", got %q`, rs.Effect)
	}

	if len(st.Action) == 0 && len(st.NotAction) == 0 {
		return st, domain.ErrMalformedPolicy("statement must specify Action or NotAction")
	}
	for _, pat := range st.Action {
		if err := validateActionPattern(pat); err != nil {
			return st, err
		}
	}
	for _, pat := range st.NotAction {
		if err := validateActionPattern(pat); err != nil {
			return st, err
		}
	}

	if len(rs.Condition) > 0 {
		st.Condition = make(Condition, len(rs.Condition))
		for op, keys := range rs.Condition {
			if !knownOperator(op) {
				return st, domain.ErrMalformedPolicy("unknown condition operator %q", op)
			}
			m := make(map[string][]string, len(keys))
			for k, vals := range keys {
				m[k] = vals
			}
			st.Condition[op] = m
		}
	}
	return st, nil
}

// validateActionPattern enforces the action grammar: "*" alone, or
// service:verb where the service is alphanumeric with interior - or _,
// and the verb additionally permits the * and ? wildcards.
func validateActionPattern(pat string) error {
	if pat == "*" {
		return nil
	}
	service, verb, ok := strings.Cut(pat, ":")
	if !ok || strings.Contains(verb, ":") {
		return domain.ErrMalformedPolicy("action %q must be service:verb or *", pat)
	}
	if service == "" || verb == "" {
		return domain.ErrMalformedPolicy("action %q must be service:verb or *", pat)
	}
	for i := 0; i < len(service); i++ {
		c := service[i]
		if isAlnum(c) {
			continue
		}
		if (c == '-' || c == '_') && i > 0 && i < len(service)-1 {
			continue
		}
		return domain.ErrMalformedPolicy("action %q has an invalid service name", pat)
	}
	for i := 0; i < len(verb); i++ {
		c := verb[i]
		if isAlnum(c) || c == '*' || c == '?' {
			continue
		}
		if (c == '-' || c == '_') && i > 0 && i < len(verb)-1 {
			continue
		}
		return domain.ErrMalformedPolicy("action %q has an invalid verb", pat)
	}
	return nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// ParseStatements is Parse restricted to returning the statement list,
// for callers assembling evaluator input.
func ParseStatements(document string) ([]Statement, error) {
	doc, err := Parse(document)
	if err != nil {
		return nil, err
	}
	return doc.Statements, nil
}

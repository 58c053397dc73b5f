package policy

import "strings"

// wildMatch reports whether s matches pattern, where * matches any run of
// characters and ? matches exactly one. Case-sensitive, iterative with
// single-star backtracking.
func wildMatch(pattern, s string) bool {
	var (
		pi, si         int
		starPi, starSi = -1, 0
	)
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			starPi, starSi = pi, si
			pi++
		case starPi >= 0:
			pi = starPi + 1
			starSi++
			si = starSi
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// MatchAction reports whether an action pattern matches a requested
// service:verb action. The service segment must match exactly; the verb
// segment honors * and ? wildcards. A bare "*" matches every action.
func MatchAction(pattern, action string) bool {
	if pattern == "*" {
		return true
	}
	patService, patVerb, ok := strings.Cut(pattern, ":")
	if !ok {
		return false
	}
	service, verb, ok := strings.Cut(action, ":")
	if !ok {
		return false
	}
	return patService == service && wildMatch(patVerb, verb)
}

// arnSegments is the number of colon-separated ARN fields:
// arn:partition:service:region:account:resource.
const arnSegments = 6

// MatchResource reports whether a resource pattern matches a target ARN,
// comparing segment-wise so wildcards never cross a colon except inside
// the final resource segment.
func MatchResource(pattern, arn string) bool {
	if pattern == "*" {
		return true
	}
	patParts := strings.SplitN(pattern, ":", arnSegments)
	arnParts := strings.SplitN(arn, ":", arnSegments)
	if len(patParts) != arnSegments || len(arnParts) != arnSegments {
		return false
	}
	for i := 0; i < arnSegments; i++ {
		if !wildMatch(patParts[i], arnParts[i]) {
			return false
		}
	}
	return true
}

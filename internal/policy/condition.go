package policy

import (
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Context holds the request context values condition predicates test
// against, e.g. "aws:username" or "aws:PrincipalArn". Key lookup is
// case-insensitive.
type Context map[string]string

// Get returns the value for a key, folding case on the key.
func (c Context) Get(key string) (string, bool) {
	if v, ok := c[key]; ok {
		return v, true
	}
	for k, v := range c {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

var conditionOperators = map[string]struct{}{
	"StringEquals":              {},
	"StringNotEquals":           {},
	"StringEqualsIgnoreCase":    {},
	"StringNotEqualsIgnoreCase": {},
	"StringLike":                {},
	"StringNotLike":             {},
	"NumericEquals":             {},
	"NumericNotEquals":          {},
	"NumericLessThan":           {},
	"NumericLessThanEquals":     {},
	"NumericGreaterThan":        {},
	"NumericGreaterThanEquals":  {},
	"DateEquals":                {},
	"DateNotEquals":             {},
	"DateLessThan":              {},
	"DateLessThanEquals":        {},
	"DateGreaterThan":           {},
	"DateGreaterThanEquals":     {},
	"Bool":                      {},
	"BinaryEquals":              {},
	"IpAddress":                 {},
	"NotIpAddress":              {},
	"ArnEquals":                 {},
	"ArnNotEquals":              {},
	"ArnLike":                   {},
	"ArnNotLike":                {},
	"Null":                      {},
}

func knownOperator(op string) bool {
	base, hadSuffix := strings.CutSuffix(op, "IfExists")
	if base == "Null" && hadSuffix {
		return false
	}
	_, ok := conditionOperators[base]
	return ok
}

// Eval reports whether every predicate in the condition block holds
// against the context. Operators and keys AND together; the values under
// one key OR together. A missing context key fails the predicate unless
// the operator carries the IfExists suffix or is Null.
func (cond Condition) Eval(ctx Context) bool {
	for op, keys := range cond {
		base, ifExists := strings.CutSuffix(op, "IfExists")
		for key, values := range keys {
			val, present := ctx.Get(key)
			if base == "Null" {
				if !evalNull(present, values) {
					return false
				}
				continue
			}
			if !present {
				if ifExists {
					continue
				}
				return false
			}
			if !evalOperator(base, val, values) {
				return false
			}
		}
	}
	return true
}

func evalNull(present bool, values []string) bool {
	for _, v := range values {
		if strings.EqualFold(v, "true") && !present {
			return true
		}
		if strings.EqualFold(v, "false") && present {
			return true
		}
	}
	return false
}

func evalOperator(base, val string, values []string) bool {
	switch base {
	case "StringEquals":
		return anyValue(values, func(v string) bool { return val == v })
	case "StringNotEquals":
		return !anyValue(values, func(v string) bool { return val == v })
	case "StringEqualsIgnoreCase":
		return anyValue(values, func(v string) bool { return strings.EqualFold(val, v) })
	case "StringNotEqualsIgnoreCase":
		return !anyValue(values, func(v string) bool { return strings.EqualFold(val, v) })
	case "StringLike":
		return anyValue(values, func(v string) bool { return wildMatch(v, val) })
	case "StringNotLike":
		return !anyValue(values, func(v string) bool { return wildMatch(v, val) })

	case "NumericEquals":
		return numericCmp(val, values, func(a, b float64) bool { return a == b })
	case "NumericNotEquals":
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return false
		}
		return !anyValue(values, func(v string) bool {
			m, err := strconv.ParseFloat(v, 64)
			return err == nil && n == m
		})
	case "NumericLessThan":
		return numericCmp(val, values, func(a, b float64) bool { return a < b })
	case "NumericLessThanEquals":
		return numericCmp(val, values, func(a, b float64) bool { return a <= b })
	case "NumericGreaterThan":
		return numericCmp(val, values, func(a, b float64) bool { return a > b })
	case "NumericGreaterThanEquals":
		return numericCmp(val, values, func(a, b float64) bool { return a >= b })

	case "DateEquals":
		return dateCmp(val, values, func(a, b time.Time) bool { return a.Equal(b) })
	case "DateNotEquals":
		t, ok := parseConditionTime(val)
		if !ok {
			return false
		}
		return !anyValue(values, func(v string) bool {
			u, ok := parseConditionTime(v)
			return ok && t.Equal(u)
		})
	case "DateLessThan":
		return dateCmp(val, values, func(a, b time.Time) bool { return a.Before(b) })
	case "DateLessThanEquals":
		return dateCmp(val, values, func(a, b time.Time) bool { return !a.After(b) })
	case "DateGreaterThan":
		return dateCmp(val, values, func(a, b time.Time) bool { return a.After(b) })
	case "DateGreaterThanEquals":
		return dateCmp(val, values, func(a, b time.Time) bool { return !a.Before(b) })

	case "Bool":
		return anyValue(values, func(v string) bool { return strings.EqualFold(val, v) })
	case "BinaryEquals":
		return anyValue(values, func(v string) bool { return val == v })

	case "IpAddress":
		return anyValue(values, func(v string) bool { return ipWithin(val, v) })
	case "NotIpAddress":
		return !anyValue(values, func(v string) bool { return ipWithin(val, v) })

	case "ArnEquals", "ArnLike":
		return anyValue(values, func(v string) bool { return MatchResource(v, val) })
	case "ArnNotEquals", "ArnNotLike":
		return !anyValue(values, func(v string) bool { return MatchResource(v, val) })
	}
	return false
}

func anyValue(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if pred(v) {
			return true
		}
	}
	return false
}

func numericCmp(val string, values []string, cmp func(a, b float64) bool) bool {
	n, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return false
	}
	return anyValue(values, func(v string) bool {
		m, err := strconv.ParseFloat(v, 64)
		return err == nil && cmp(n, m)
	})
}

func dateCmp(val string, values []string, cmp func(a, b time.Time) bool) bool {
	t, ok := parseConditionTime(val)
	if !ok {
		return false
	}
	return anyValue(values, func(v string) bool {
		u, ok := parseConditionTime(v)
		return ok && cmp(t, u)
	})
}

// parseConditionTime accepts RFC 3339 timestamps or integer epoch seconds.
func parseConditionTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// ipWithin reports whether addr falls inside the CIDR block, or equals it
// when the block is a bare address.
func ipWithin(addr, block string) bool {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	if prefix, err := netip.ParsePrefix(block); err == nil {
		return prefix.Contains(a)
	}
	b, err := netip.ParseAddr(block)
	if err != nil {
		return false
	}
	return a == b
}

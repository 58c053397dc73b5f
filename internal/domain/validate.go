package domain

import "strings"

// Maximum lengths for resource names, matching the emulated service.
const (
	MaxUserNameLen    = 64
	MaxGroupNameLen   = 128
	MaxRoleNameLen    = 64
	MaxPolicyNameLen  = 128
	MaxPathLen        = 512
	MaxSessionNameLen = 64
	MinSessionNameLen = 2
)

func nameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '+' || c == '=' || c == ',' || c == '.' || c == '@' || c == '_' || c == '-':
		return true
	}
	return false
}

// ValidateResourceName checks a user/group/role/policy name against the
// shared name grammar: 1..maxLen characters from [A-Za-z0-9+=,.@_-].
func ValidateResourceName(kind, name string, maxLen int) error {
	if name == "" {
		return ErrValidation("%s name is required", kind)
	}
	if len(name) > maxLen {
		return ErrValidation("%s name exceeds %d characters", kind, maxLen)
	}
	for i := 0; i < len(name); i++ {
		if !nameChar(name[i]) {
			return ErrValidation("%s name contains invalid character %q", kind, name[i])
		}
	}
	return nil
}

// ValidatePath checks a resource path: either "/" alone, or a string that
// begins and ends with "/" whose segments are printable ASCII without "/".
func ValidatePath(path string) error {
	if path == "" || path == "/" {
		return nil
	}
	if len(path) > MaxPathLen {
		return ErrValidation("path exceeds %d characters", MaxPathLen)
	}
	if path[0] != '/' || path[len(path)-1] != '/' {
		return ErrValidation("path must begin and end with /")
	}
	for _, seg := range strings.Split(path[1:len(path)-1], "/") {
		if seg == "" {
			return ErrValidation("path contains an empty segment")
		}
		for i := 0; i < len(seg); i++ {
			if seg[i] < 0x21 || seg[i] > 0x7e {
				return ErrValidation("path contains invalid character %q", seg[i])
			}
		}
	}
	return nil
}

// ValidateAccountAlias checks an account alias: 3..63 characters of lowercase
// letters, digits, and interior hyphens, and not a bare 12-digit number.
func ValidateAccountAlias(alias string) error {
	if len(alias) < 3 || len(alias) > 63 {
		return ErrValidation("account alias must be 3 to 63 characters")
	}
	digitsOnly := true
	for i := 0; i < len(alias); i++ {
		c := alias[i]
		switch {
		case c >= 'a' && c <= 'z':
			digitsOnly = false
		case c >= '0' && c <= '9':
		case c == '-':
			digitsOnly = false
			if i == 0 || i == len(alias)-1 {
				return ErrValidation("account alias cannot begin or end with a hyphen")
			}
		default:
			return ErrValidation("account alias contains invalid character %q", c)
		}
	}
	if digitsOnly && len(alias) == AccountIDLen {
		return ErrValidation("account alias cannot be a %d-digit number", AccountIDLen)
	}
	return nil
}

// ValidateSessionName checks a role session name: 2..64 characters from the
// shared name grammar.
func ValidateSessionName(name string) error {
	if len(name) < MinSessionNameLen {
		return ErrValidation("session name must be at least %d characters", MinSessionNameLen)
	}
	return ValidateResourceName("session", name, MaxSessionNameLen)
}

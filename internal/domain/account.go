package domain

import (
	"strings"
	"time"
)

// AccountIDLen is the fixed width of an account id (decimal digits).
const AccountIDLen = 12

// SeedAccountID is the account created at bootstrap.
const SeedAccountID = "000000000000"

// SeedAccountAlias is the alias reserved for the seed account.
const SeedAccountAlias = "aws"

// Account is a top-level tenant namespace for IAM resources.
type Account struct {
	ID        string
	Email     string
	Active    bool
	Alias     string // empty when no alias is set
	CreatedAt time.Time
}

// ARN returns the account root ARN.
func (a Account) ARN() string {
	return "arn:aws:iam::" + a.ID + ":root"
}

// CreateAccountRequest holds parameters for creating a new account.
type CreateAccountRequest struct {
	Email string
	Alias string // optional
}

// Validate checks that the request is well-formed.
func (r *CreateAccountRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return ErrValidation("account email is required")
	}
	at := strings.IndexByte(r.Email, '@')
	if at <= 0 || at == len(r.Email)-1 {
		return ErrValidation("account email %q is not a valid address", r.Email)
	}
	if r.Alias != "" {
		if err := ValidateAccountAlias(r.Alias); err != nil {
			return err
		}
	}
	return nil
}

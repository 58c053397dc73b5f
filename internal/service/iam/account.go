package iam

import (
	"context"
	"log/slog"

	"iamcore/internal/domain"
)

// AccountService provides account lifecycle and alias operations.
type AccountService struct {
	accounts domain.AccountRepository
	enforcer *LimitEnforcer
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts domain.AccountRepository, enforcer *LimitEnforcer, logger *slog.Logger) *AccountService {
	return &AccountService{accounts: accounts, enforcer: enforcer, logger: logger}
}

// Create provisions a new account. Creation is gated by the
// organizations/create_account limit, which defaults to 0: the caller's
// account needs an override before new accounts may be opened.
func (s *AccountService) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if caller, ok := domain.CallerFromContext(ctx); ok {
		err := s.enforcer.CheckEnabled(ctx, caller.AccountID,
			domain.LimitServiceOrganizations, domain.LimitCreateAccount)
		if err != nil {
			return nil, err
		}
	}
	if req.Alias == domain.SeedAccountAlias {
		return nil, domain.ErrConflict("account alias %q is reserved", req.Alias)
	}
	created, err := s.accounts.Create(ctx, &domain.Account{
		Email: req.Email,
		Alias: req.Alias,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", created.ID, "email", created.Email)
	return created, nil
}

// Get resolves an account by its 12-digit id or by alias.
func (s *AccountService) Get(ctx context.Context, idOrAlias string) (*domain.Account, error) {
	if isAccountID(idOrAlias) {
		return s.accounts.GetByID(ctx, idOrAlias)
	}
	return s.accounts.GetByAlias(ctx, idOrAlias)
}

// List returns a page of accounts.
func (s *AccountService) List(ctx context.Context, page domain.PageRequest) ([]domain.Account, int64, error) {
	return s.accounts.List(ctx, page)
}

// SetAlias creates or replaces the account's alias.
func (s *AccountService) SetAlias(ctx context.Context, accountID, alias string) error {
	if err := domain.ValidateAccountAlias(alias); err != nil {
		return err
	}
	if alias == domain.SeedAccountAlias && accountID != domain.SeedAccountID {
		return domain.ErrConflict("account alias %q is reserved", alias)
	}
	if err := s.accounts.SetAlias(ctx, accountID, alias); err != nil {
		return err
	}
	s.logger.Info("account alias set", "account_id", accountID, "alias", alias)
	return nil
}

// DeleteAlias removes the account's alias.
func (s *AccountService) DeleteAlias(ctx context.Context, accountID string) error {
	if err := s.accounts.DeleteAlias(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("account alias removed", "account_id", accountID)
	return nil
}

// isAccountID reports whether s has the shape of a 12-digit account id.
func isAccountID(s string) bool {
	if len(s) != domain.AccountIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

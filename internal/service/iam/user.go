package iam

import (
	"context"
	"log/slog"

	"iamcore/internal/domain"
	"iamcore/internal/policy"
)

// UserService provides user lifecycle, policy attachment, and inline
// policy operations.
type UserService struct {
	users    domain.UserRepository
	groups   domain.GroupRepository
	policies domain.PolicyRepository
	accounts domain.AccountRepository
	logger   *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, groups domain.GroupRepository, policies domain.PolicyRepository, accounts domain.AccountRepository, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		groups:   groups,
		policies: policies,
		accounts: accounts,
		logger:   logger,
	}
}

// Create validates and persists a new user.
func (s *UserService) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetByID(ctx, req.AccountID); err != nil {
		return nil, err
	}
	var boundary *domain.ManagedPolicy
	if req.PermissionsBoundary != "" {
		p, err := resolvePolicy(ctx, s.policies, req.AccountID, req.PermissionsBoundary)
		if err != nil {
			return nil, err
		}
		boundary = p
	}
	created, err := s.users.Create(ctx, &domain.User{
		AccountID: req.AccountID,
		Name:      req.Name,
		Path:      req.Path,
	})
	if err != nil {
		return nil, err
	}
	if boundary != nil {
		if err := s.users.SetPermissionsBoundary(ctx, created.ID, boundary.ID); err != nil {
			return nil, err
		}
		created.PermissionsBoundary = boundary.ID
	}
	s.logger.Info("user created", "account_id", created.AccountID, "user", created.Name, "user_id", created.ID)
	return created, nil
}

// Get returns a user by name within an account.
func (s *UserService) Get(ctx context.Context, accountID, name string) (*domain.User, error) {
	return s.users.GetByName(ctx, accountID, name)
}

// List returns users under a path prefix.
func (s *UserService) List(ctx context.Context, accountID, pathPrefix string, page domain.PageRequest) ([]domain.User, int64, error) {
	return s.users.List(ctx, accountID, pathPrefix, page)
}

// Update renames or moves a user.
func (s *UserService) Update(ctx context.Context, accountID, name string, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.Update(ctx, u.ID, req.NewName, req.NewPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated", "account_id", accountID, "user", name, "new_name", updated.Name)
	return updated, nil
}

// Delete removes a user. Credentials, memberships, and policies go with
// it in one transaction.
func (s *UserService) Delete(ctx context.Context, accountID, name string) error {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "account_id", accountID, "user", name, "user_id", u.ID)
	return nil
}

// SetPermissionsBoundary caps the user's effective permissions with a
// managed policy.
func (s *UserService) SetPermissionsBoundary(ctx context.Context, accountID, name, policyARN string) error {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := resolvePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	return s.users.SetPermissionsBoundary(ctx, u.ID, p.ID)
}

// DeletePermissionsBoundary removes the user's boundary.
func (s *UserService) DeletePermissionsBoundary(ctx context.Context, accountID, name string) error {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	if u.PermissionsBoundary == "" {
		return domain.ErrNotFound("user %s has no permissions boundary", name)
	}
	return s.users.SetPermissionsBoundary(ctx, u.ID, "")
}

// AttachPolicy attaches a managed policy to the user.
func (s *UserService) AttachPolicy(ctx context.Context, accountID, name, policyARN string) error {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := attachablePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	if err := s.users.AttachPolicy(ctx, u.ID, p.ID); err != nil {
		return err
	}
	s.logger.Info("policy attached", "account_id", accountID, "user", name, "policy", p.Name)
	return nil
}

// DetachPolicy removes a managed policy attachment from the user.
func (s *UserService) DetachPolicy(ctx context.Context, accountID, name, policyARN string) error {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := resolvePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	return s.users.DetachPolicy(ctx, u.ID, p.ID)
}

// ListAttachedPolicies returns the user's managed policy attachments.
func (s *UserService) ListAttachedPolicies(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.users.ListAttachedPolicies(ctx, u.ID, page)
}

// PutInlinePolicy embeds or replaces an inline policy on the user.
func (s *UserService) PutInlinePolicy(ctx context.Context, accountID, name string, req domain.PutInlinePolicyRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := policy.Parse(req.Document); err != nil {
		return err
	}
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	err = s.users.PutInlinePolicy(ctx, u.ID, &domain.InlinePolicy{Name: req.Name, Document: req.Document})
	if err != nil {
		return err
	}
	s.logger.Info("inline policy put", "account_id", accountID, "user", name, "policy", req.Name)
	return nil
}

// GetInlinePolicy returns one inline policy by name.
func (s *UserService) GetInlinePolicy(ctx context.Context, accountID, name, policyName string) (*domain.InlinePolicy, error) {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	return s.users.GetInlinePolicy(ctx, u.ID, policyName)
}

// DeleteInlinePolicy removes one inline policy.
func (s *UserService) DeleteInlinePolicy(ctx context.Context, accountID, name, policyName string) error {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	return s.users.DeleteInlinePolicy(ctx, u.ID, policyName)
}

// ListInlinePolicies returns the user's inline policies.
func (s *UserService) ListInlinePolicies(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.users.ListInlinePolicies(ctx, u.ID, page)
}

// ListGroups returns the groups the user belongs to.
func (s *UserService) ListGroups(ctx context.Context, accountID, name string) ([]domain.Group, error) {
	u, err := s.users.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	return s.groups.ListGroupsForUser(ctx, u.ID)
}

package iam

import (
	"context"
	"log/slog"

	"iamcore/internal/domain"
	"iamcore/internal/policy"
)

// RoleService provides role lifecycle, trust policy, and policy
// operations.
type RoleService struct {
	roles    domain.RoleRepository
	policies domain.PolicyRepository
	accounts domain.AccountRepository
	logger   *slog.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(roles domain.RoleRepository, policies domain.PolicyRepository, accounts domain.AccountRepository, logger *slog.Logger) *RoleService {
	return &RoleService{
		roles:    roles,
		policies: policies,
		accounts: accounts,
		logger:   logger,
	}
}

// Create validates the trust document and persists a new role.
func (s *RoleService) Create(ctx context.Context, req domain.CreateRoleRequest) (*domain.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := policy.Parse(req.AssumeRolePolicy); err != nil {
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
	created, err := s.roles.Create(ctx, &domain.Role{
		AccountID:          req.AccountID,
		Name:               req.Name,
		Path:               req.Path,
		Description:        req.Description,
		AssumeRolePolicy:   req.AssumeRolePolicy,
		MaxSessionDuration: req.MaxSessionDuration,
	})
	if err != nil {
		return nil, err
	}
	if boundary != nil {
		if err := s.roles.SetPermissionsBoundary(ctx, created.ID, boundary.ID); err != nil {
			return nil, err
		}
		created.PermissionsBoundary = boundary.ID
	}
	s.logger.Info("role created", "account_id", created.AccountID, "role", created.Name, "role_id", created.ID)
	return created, nil
}

// Get returns a role by name within an account.
func (s *RoleService) Get(ctx context.Context, accountID, name string) (*domain.Role, error) {
	return s.roles.GetByName(ctx, accountID, name)
}

// List returns roles under a path prefix.
func (s *RoleService) List(ctx context.Context, accountID, pathPrefix string, page domain.PageRequest) ([]domain.Role, int64, error) {
	return s.roles.List(ctx, accountID, pathPrefix, page)
}

// Update changes the role's description or session cap.
func (s *RoleService) Update(ctx context.Context, accountID, name string, req domain.UpdateRoleRequest) (*domain.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	return s.roles.Update(ctx, r.ID, req.Description, req.MaxSessionDuration)
}

// SetAssumeRolePolicy replaces the role's trust document.
func (s *RoleService) SetAssumeRolePolicy(ctx context.Context, accountID, name, document string) error {
	if document == "" {
		return domain.ErrValidation("assume role policy document is required")
	}
	if _, err := policy.Parse(document); err != nil {
		return err
	}
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	if err := s.roles.SetAssumeRolePolicy(ctx, r.ID, document); err != nil {
		return err
	}
	s.logger.Info("role trust policy updated", "account_id", accountID, "role", name)
	return nil
}

// SetPermissionsBoundary caps the role's effective permissions with a
// managed policy.
func (s *RoleService) SetPermissionsBoundary(ctx context.Context, accountID, name, policyARN string) error {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := resolvePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	return s.roles.SetPermissionsBoundary(ctx, r.ID, p.ID)
}

// DeletePermissionsBoundary removes the role's boundary.
func (s *RoleService) DeletePermissionsBoundary(ctx context.Context, accountID, name string) error {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	if r.PermissionsBoundary == "" {
		return domain.ErrNotFound("role %s has no permissions boundary", name)
	}
	return s.roles.SetPermissionsBoundary(ctx, r.ID, "")
}

// Delete removes a role. Token keys and policies go with it, so any
// outstanding session tokens die with their decryption keys.
func (s *RoleService) Delete(ctx context.Context, accountID, name string) error {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, r.ID); err != nil {
		return err
	}
	s.logger.Info("role deleted", "account_id", accountID, "role", name, "role_id", r.ID)
	return nil
}

// AttachPolicy attaches a managed policy to the role.
func (s *RoleService) AttachPolicy(ctx context.Context, accountID, name, policyARN string) error {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := attachablePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	if err := s.roles.AttachPolicy(ctx, r.ID, p.ID); err != nil {
		return err
	}
	s.logger.Info("policy attached", "account_id", accountID, "role", name, "policy", p.Name)
	return nil
}

// DetachPolicy removes a managed policy attachment from the role.
func (s *RoleService) DetachPolicy(ctx context.Context, accountID, name, policyARN string) error {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := resolvePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	return s.roles.DetachPolicy(ctx, r.ID, p.ID)
}

// ListAttachedPolicies returns the role's managed policy attachments.
func (s *RoleService) ListAttachedPolicies(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.roles.ListAttachedPolicies(ctx, r.ID, page)
}

// PutInlinePolicy embeds or replaces an inline policy on the role.
func (s *RoleService) PutInlinePolicy(ctx context.Context, accountID, name string, req domain.PutInlinePolicyRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := policy.Parse(req.Document); err != nil {
		return err
	}
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	err = s.roles.PutInlinePolicy(ctx, r.ID, &domain.InlinePolicy{Name: req.Name, Document: req.Document})
	if err != nil {
		return err
	}
	s.logger.Info("inline policy put", "account_id", accountID, "role", name, "policy", req.Name)
	return nil
}

// GetInlinePolicy returns one inline policy by name.
func (s *RoleService) GetInlinePolicy(ctx context.Context, accountID, name, policyName string) (*domain.InlinePolicy, error) {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	return s.roles.GetInlinePolicy(ctx, r.ID, policyName)
}

// DeleteInlinePolicy removes one inline policy.
func (s *RoleService) DeleteInlinePolicy(ctx context.Context, accountID, name, policyName string) error {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	return s.roles.DeleteInlinePolicy(ctx, r.ID, policyName)
}

// ListInlinePolicies returns the role's inline policies.
func (s *RoleService) ListInlinePolicies(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	r, err := s.roles.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.roles.ListInlinePolicies(ctx, r.ID, page)
}

package iam

import (
	"context"
	"log/slog"

	"iamcore/internal/domain"
	"iamcore/internal/policy"
)

// GroupService provides group lifecycle, membership, and policy
// operations.
type GroupService struct {
	groups   domain.GroupRepository
	users    domain.UserRepository
	policies domain.PolicyRepository
	accounts domain.AccountRepository
	logger   *slog.Logger
}

// NewGroupService creates a new GroupService.
func NewGroupService(groups domain.GroupRepository, users domain.UserRepository, policies domain.PolicyRepository, accounts domain.AccountRepository, logger *slog.Logger) *GroupService {
	return &GroupService{
		groups:   groups,
		users:    users,
		policies: policies,
		accounts: accounts,
		logger:   logger,
	}
}

// Create validates and persists a new group.
func (s *GroupService) Create(ctx context.Context, req domain.CreateGroupRequest) (*domain.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetByID(ctx, req.AccountID); err != nil {
		return nil, err
	}
	created, err := s.groups.Create(ctx, &domain.Group{
		AccountID: req.AccountID,
		Name:      req.Name,
		Path:      req.Path,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created", "account_id", created.AccountID, "group", created.Name, "group_id", created.ID)
	return created, nil
}

// Get returns a group by name within an account.
func (s *GroupService) Get(ctx context.Context, accountID, name string) (*domain.Group, error) {
	return s.groups.GetByName(ctx, accountID, name)
}

// List returns groups under a path prefix.
func (s *GroupService) List(ctx context.Context, accountID, pathPrefix string, page domain.PageRequest) ([]domain.Group, int64, error) {
	return s.groups.List(ctx, accountID, pathPrefix, page)
}

// Update renames or moves a group.
func (s *GroupService) Update(ctx context.Context, accountID, name string, req domain.UpdateGroupRequest) (*domain.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	updated, err := s.groups.Update(ctx, g.ID, req.NewName, req.NewPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("group updated", "account_id", accountID, "group", name, "new_name", updated.Name)
	return updated, nil
}

// Delete removes a group along with its memberships and policies.
func (s *GroupService) Delete(ctx context.Context, accountID, name string) error {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, g.ID); err != nil {
		return err
	}
	s.logger.Info("group deleted", "account_id", accountID, "group", name, "group_id", g.ID)
	return nil
}

// AddMember puts a user, named within the same account, into the group.
func (s *GroupService) AddMember(ctx context.Context, accountID, groupName, userName string) error {
	g, err := s.groups.GetByName(ctx, accountID, groupName)
	if err != nil {
		return err
	}
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return err
	}
	if err := s.groups.AddMember(ctx, g.ID, u.ID); err != nil {
		return err
	}
	s.logger.Info("group member added", "account_id", accountID, "group", groupName, "user", userName)
	return nil
}

// RemoveMember takes a user out of the group.
func (s *GroupService) RemoveMember(ctx context.Context, accountID, groupName, userName string) error {
	g, err := s.groups.GetByName(ctx, accountID, groupName)
	if err != nil {
		return err
	}
	u, err := s.users.GetByName(ctx, accountID, userName)
	if err != nil {
		return err
	}
	return s.groups.RemoveMember(ctx, g.ID, u.ID)
}

// ListMembers returns the group's users.
func (s *GroupService) ListMembers(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.User, int64, error) {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.groups.ListMembers(ctx, g.ID, page)
}

// AttachPolicy attaches a managed policy to the group.
func (s *GroupService) AttachPolicy(ctx context.Context, accountID, name, policyARN string) error {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := attachablePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	if err := s.groups.AttachPolicy(ctx, g.ID, p.ID); err != nil {
		return err
	}
	s.logger.Info("policy attached", "account_id", accountID, "group", name, "policy", p.Name)
	return nil
}

// DetachPolicy removes a managed policy attachment from the group.
func (s *GroupService) DetachPolicy(ctx context.Context, accountID, name, policyARN string) error {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	p, err := resolvePolicy(ctx, s.policies, accountID, policyARN)
	if err != nil {
		return err
	}
	return s.groups.DetachPolicy(ctx, g.ID, p.ID)
}

// ListAttachedPolicies returns the group's managed policy attachments.
func (s *GroupService) ListAttachedPolicies(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error) {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.groups.ListAttachedPolicies(ctx, g.ID, page)
}

// PutInlinePolicy embeds or replaces an inline policy on the group.
func (s *GroupService) PutInlinePolicy(ctx context.Context, accountID, name string, req domain.PutInlinePolicyRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := policy.Parse(req.Document); err != nil {
		return err
	}
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	err = s.groups.PutInlinePolicy(ctx, g.ID, &domain.InlinePolicy{Name: req.Name, Document: req.Document})
	if err != nil {
		return err
	}
	s.logger.Info("inline policy put", "account_id", accountID, "group", name, "policy", req.Name)
	return nil
}

// GetInlinePolicy returns one inline policy by name.
func (s *GroupService) GetInlinePolicy(ctx context.Context, accountID, name, policyName string) (*domain.InlinePolicy, error) {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	return s.groups.GetInlinePolicy(ctx, g.ID, policyName)
}

// DeleteInlinePolicy removes one inline policy.
func (s *GroupService) DeleteInlinePolicy(ctx context.Context, accountID, name, policyName string) error {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return err
	}
	return s.groups.DeleteInlinePolicy(ctx, g.ID, policyName)
}

// ListInlinePolicies returns the group's inline policies.
func (s *GroupService) ListInlinePolicies(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error) {
	g, err := s.groups.GetByName(ctx, accountID, name)
	if err != nil {
		return nil, 0, err
	}
	return s.groups.ListInlinePolicies(ctx, g.ID, page)
}

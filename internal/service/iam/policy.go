package iam

import (
	"context"
	"log/slog"
	"strings"

	"iamcore/internal/domain"
	"iamcore/internal/policy"
)

// PolicyService provides managed policy and version lifecycle operations.
type PolicyService struct {
	policies domain.PolicyRepository
	accounts domain.AccountRepository
	enforcer *LimitEnforcer
	logger   *slog.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(policies domain.PolicyRepository, accounts domain.AccountRepository, enforcer *LimitEnforcer, logger *slog.Logger) *PolicyService {
	return &PolicyService{
		policies: policies,
		accounts: accounts,
		enforcer: enforcer,
		logger:   logger,
	}
}

// Create validates the document and persists a new managed policy whose
// first version becomes the default.
func (s *PolicyService) Create(ctx context.Context, req domain.CreatePolicyRequest) (*domain.ManagedPolicy, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := policy.Parse(req.Document); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetByID(ctx, req.AccountID); err != nil {
		return nil, err
	}
	if req.PolicyType == domain.PolicyTypeAWS && req.AccountID != domain.SeedAccountID {
		return nil, domain.ErrValidation("AWS managed policies belong to account %s", domain.SeedAccountID)
	}
	created, err := s.policies.Create(ctx, &domain.ManagedPolicy{
		AccountID:  req.AccountID,
		Name:       req.Name,
		Path:       req.Path,
		PolicyType: req.PolicyType,
	}, req.Document)
	if err != nil {
		return nil, err
	}
	s.logger.Info("policy created", "account_id", created.AccountID, "policy", created.Name, "policy_id", created.ID)
	return created, nil
}

// Get resolves a policy by ARN, id, or name.
func (s *PolicyService) Get(ctx context.Context, accountID, ref string) (*domain.ManagedPolicy, error) {
	return resolvePolicy(ctx, s.policies, accountID, ref)
}

// GetDefaultDocument returns the document of the policy's default version.
func (s *PolicyService) GetDefaultDocument(ctx context.Context, accountID, ref string) (string, error) {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return "", err
	}
	return s.policies.GetDefaultDocument(ctx, p.ID)
}

// List returns policies under a path prefix. Deprecated policies are
// excluded unless asked for.
func (s *PolicyService) List(ctx context.Context, accountID, pathPrefix string, includeDeprecated bool, page domain.PageRequest) ([]domain.ManagedPolicy, int64, error) {
	return s.policies.List(ctx, accountID, pathPrefix, includeDeprecated, page)
}

// SetDeprecated marks or unmarks a policy as deprecated. Existing
// attachments keep working; new attachments are refused while set.
func (s *PolicyService) SetDeprecated(ctx context.Context, accountID, ref string, deprecated bool) error {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return err
	}
	if err := s.policies.SetDeprecated(ctx, p.ID, deprecated); err != nil {
		return err
	}
	s.logger.Info("policy deprecation set", "account_id", accountID, "policy", p.Name, "deprecated", deprecated)
	return nil
}

// Delete removes a policy and its versions. Attached policies are refused.
func (s *PolicyService) Delete(ctx context.Context, accountID, ref string) error {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return err
	}
	if err := s.policies.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.logger.Info("policy deleted", "account_id", accountID, "policy", p.Name, "policy_id", p.ID)
	return nil
}

// CreateVersion appends a version. The account's version limit applies
// before the hard ceiling on retained versions.
func (s *PolicyService) CreateVersion(ctx context.Context, accountID, ref string, req domain.CreatePolicyVersionRequest) (*domain.ManagedPolicyVersion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := policy.Parse(req.Document); err != nil {
		return nil, err
	}
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return nil, err
	}
	_, retained, err := s.policies.ListVersions(ctx, p.ID, domain.PageRequest{MaxItems: 1})
	if err != nil {
		return nil, err
	}
	err = s.enforcer.CheckBelow(ctx, p.AccountID,
		domain.LimitServiceIAM, domain.LimitPolicyVersions, retained)
	if err != nil {
		return nil, err
	}
	v, err := s.policies.CreateVersion(ctx, p.ID, req.Document, req.SetDefault)
	if err != nil {
		return nil, err
	}
	s.logger.Info("policy version created",
		"account_id", accountID, "policy", p.Name, "version", v.Version, "default", req.SetDefault)
	return v, nil
}

// GetVersion returns one version by its v-prefixed id.
func (s *PolicyService) GetVersion(ctx context.Context, accountID, ref, versionID string) (*domain.ManagedPolicyVersion, error) {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return nil, err
	}
	n, err := domain.ParseVersionID(versionID)
	if err != nil {
		return nil, err
	}
	return s.policies.GetVersion(ctx, p.ID, n)
}

// ListVersions returns the policy's versions, newest first.
func (s *PolicyService) ListVersions(ctx context.Context, accountID, ref string, page domain.PageRequest) ([]domain.ManagedPolicyVersion, int64, error) {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return nil, 0, err
	}
	return s.policies.ListVersions(ctx, p.ID, page)
}

// SetDefaultVersion promotes an existing version to default.
func (s *PolicyService) SetDefaultVersion(ctx context.Context, accountID, ref, versionID string) error {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return err
	}
	n, err := domain.ParseVersionID(versionID)
	if err != nil {
		return err
	}
	if err := s.policies.SetDefaultVersion(ctx, p.ID, n); err != nil {
		return err
	}
	s.logger.Info("policy default version set", "account_id", accountID, "policy", p.Name, "version", n)
	return nil
}

// DeleteVersion removes a non-default version.
func (s *PolicyService) DeleteVersion(ctx context.Context, accountID, ref, versionID string) error {
	p, err := resolvePolicy(ctx, s.policies, accountID, ref)
	if err != nil {
		return err
	}
	n, err := domain.ParseVersionID(versionID)
	if err != nil {
		return err
	}
	return s.policies.DeleteVersion(ctx, p.ID, n)
}

// resolvePolicy finds a managed policy by ARN, id, or name within an
// account. Name and ARN lookups fall back to AWS managed policies in the
// seed account so those stay attachable from every account.
func resolvePolicy(ctx context.Context, policies domain.PolicyRepository, accountID, ref string) (*domain.ManagedPolicy, error) {
	switch {
	case strings.HasPrefix(ref, "arn:"):
		acct, name, err := splitPolicyARN(ref)
		if err != nil {
			return nil, err
		}
		if acct != accountID && acct != domain.SeedAccountID {
			return nil, domain.ErrNotFound("policy %s", ref)
		}
		p, err := policies.GetByName(ctx, acct, name)
		if err != nil {
			return nil, err
		}
		if p.AccountID != accountID && p.PolicyType != domain.PolicyTypeAWS {
			return nil, domain.ErrNotFound("policy %s", ref)
		}
		return p, nil
	case len(ref) == 21 && strings.HasPrefix(ref, "ANPA"):
		p, err := policies.GetByID(ctx, ref)
		if err != nil {
			return nil, err
		}
		if p.AccountID != accountID && p.PolicyType != domain.PolicyTypeAWS {
			return nil, domain.ErrNotFound("policy %s", ref)
		}
		return p, nil
	default:
		p, err := policies.GetByName(ctx, accountID, ref)
		if err == nil || !domain.IsNotFound(err) {
			return p, err
		}
		aws, awsErr := policies.GetByName(ctx, domain.SeedAccountID, ref)
		if awsErr == nil && aws.PolicyType == domain.PolicyTypeAWS {
			return aws, nil
		}
		return nil, err
	}
}

// attachablePolicy resolves a policy and refuses deprecated ones, which
// may keep existing attachments but not gain new ones.
func attachablePolicy(ctx context.Context, policies domain.PolicyRepository, accountID, ref string) (*domain.ManagedPolicy, error) {
	p, err := resolvePolicy(ctx, policies, accountID, ref)
	if err != nil {
		return nil, err
	}
	if p.Deprecated {
		return nil, domain.ErrConflict("policy %s is deprecated and cannot be attached", p.Name)
	}
	return p, nil
}

// splitPolicyARN extracts the account id and policy name from an ARN of
// the form arn:aws:iam::123456789012:policy/path/Name.
func splitPolicyARN(arn string) (accountID, name string, err error) {
	rest, ok := strings.CutPrefix(arn, "arn:aws:iam::")
	if !ok {
		return "", "", domain.ErrValidation("malformed policy arn %q", arn)
	}
	acct, res, ok := strings.Cut(rest, ":")
	if !ok || !strings.HasPrefix(res, "policy/") {
		return "", "", domain.ErrValidation("malformed policy arn %q", arn)
	}
	name = res[strings.LastIndexByte(res, '/')+1:]
	if name == "" {
		return "", "", domain.ErrValidation("malformed policy arn %q", arn)
	}
	return acct, name, nil
}

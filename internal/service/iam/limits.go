package iam

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"iamcore/internal/domain"
)

// LimitEnforcer resolves effective limit values and gates operations on
// them. The effective value is the account's override when present, else
// the definition default.
type LimitEnforcer struct {
	limits domain.LimitRepository
}

// NewLimitEnforcer creates a new LimitEnforcer.
func NewLimitEnforcer(limits domain.LimitRepository) *LimitEnforcer {
	return &LimitEnforcer{limits: limits}
}

// EffectiveInt returns the integer value in force for an account in the
// global region.
func (e *LimitEnforcer) EffectiveInt(ctx context.Context, accountID, serviceName, limitName string) (int, error) {
	def, err := e.limits.GetDefinition(ctx, serviceName, limitName)
	if err != nil {
		return 0, err
	}
	if def.ValueType != domain.LimitValueInt || def.DefaultInt == nil {
		return 0, domain.ErrValidation("limit %s/%s is not an integer limit", serviceName, limitName)
	}
	override, err := e.limits.GetAccountLimit(ctx, accountID, def.ID, domain.GlobalRegion)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return *def.DefaultInt, nil
	}
	if err != nil {
		return 0, err
	}
	if override.IntValue == nil {
		return *def.DefaultInt, nil
	}
	return *override.IntValue, nil
}

// CheckEnabled gates a feature limit: the effective value must be at
// least 1.
func (e *LimitEnforcer) CheckEnabled(ctx context.Context, accountID, serviceName, limitName string) error {
	v, err := e.EffectiveInt(ctx, accountID, serviceName, limitName)
	if err != nil {
		return err
	}
	if v < 1 {
		return domain.ErrLimitExceeded("%s/%s is disabled for account %s", serviceName, limitName, accountID)
	}
	return nil
}

// CheckBelow gates a counted resource: current must be strictly below the
// effective maximum.
func (e *LimitEnforcer) CheckBelow(ctx context.Context, accountID, serviceName, limitName string, current int64) error {
	v, err := e.EffectiveInt(ctx, accountID, serviceName, limitName)
	if err != nil {
		return err
	}
	if current >= int64(v) {
		return domain.ErrLimitExceeded("account %s has reached the %s/%s limit of %d",
			accountID, serviceName, limitName, v)
	}
	return nil
}

// EffectiveLimit pairs a definition with the value in force for an account.
type EffectiveLimit struct {
	Definition domain.LimitDefinition
	Region     string
	Value      int
	Overridden bool
}

// LimitService exposes limit definitions and per-account overrides.
type LimitService struct {
	limits   domain.LimitRepository
	accounts domain.AccountRepository
	logger   *slog.Logger
}

// NewLimitService creates a new LimitService.
func NewLimitService(limits domain.LimitRepository, accounts domain.AccountRepository, logger *slog.Logger) *LimitService {
	return &LimitService{limits: limits, accounts: accounts, logger: logger}
}

// ListDefinitions returns all known limit definitions.
func (s *LimitService) ListDefinitions(ctx context.Context, page domain.PageRequest) ([]domain.LimitDefinition, int64, error) {
	return s.limits.ListDefinitions(ctx, page)
}

// findDefinition resolves a limit named either "service/name" or by its
// bare name when that is unambiguous.
func (s *LimitService) findDefinition(ctx context.Context, limitName string) (*domain.LimitDefinition, error) {
	if svc, name, ok := strings.Cut(limitName, "/"); ok {
		return s.limits.GetDefinition(ctx, svc, name)
	}
	defs, _, err := s.limits.ListDefinitions(ctx, domain.PageRequest{MaxItems: domain.MaxMaxItems})
	if err != nil {
		return nil, err
	}
	var found *domain.LimitDefinition
	for i := range defs {
		if defs[i].LimitName != limitName {
			continue
		}
		if found != nil {
			return nil, domain.ErrValidation("limit name %q is ambiguous, qualify it as service/name", limitName)
		}
		found = &defs[i]
	}
	if found == nil {
		return nil, domain.ErrNotFound("limit %s", limitName)
	}
	return found, nil
}

// GetAccountLimit returns the value in force for one account, flagging
// whether an override supplied it.
func (s *LimitService) GetAccountLimit(ctx context.Context, accountID, limitName, region string) (*EffectiveLimit, error) {
	if region == "" {
		region = domain.GlobalRegion
	}
	def, err := s.findDefinition(ctx, limitName)
	if err != nil {
		return nil, err
	}
	eff := &EffectiveLimit{Definition: *def, Region: region}
	if def.DefaultInt != nil {
		eff.Value = *def.DefaultInt
	}
	override, err := s.limits.GetAccountLimit(ctx, accountID, def.ID, region)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return eff, nil
	}
	if err != nil {
		return nil, err
	}
	if override.IntValue != nil {
		eff.Value = *override.IntValue
		eff.Overridden = true
	}
	return eff, nil
}

// SetAccountLimit creates or replaces an account's override, bounded by
// the definition's min and max when those are set.
func (s *LimitService) SetAccountLimit(ctx context.Context, accountID, limitName string, req domain.PutAccountLimitRequest) (*EffectiveLimit, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	def, err := s.findDefinition(ctx, limitName)
	if err != nil {
		return nil, err
	}
	if def.ValueType != domain.LimitValueInt {
		return nil, domain.ErrValidation("limit %s/%s does not take an integer value", def.ServiceName, def.LimitName)
	}
	v := *req.IntValue
	if def.MinValue != nil && v < *def.MinValue {
		return nil, domain.ErrValidation("limit %s/%s value %d is below the minimum %d",
			def.ServiceName, def.LimitName, v, *def.MinValue)
	}
	if def.MaxValue != nil && v > *def.MaxValue {
		return nil, domain.ErrValidation("limit %s/%s value %d exceeds the maximum %d",
			def.ServiceName, def.LimitName, v, *def.MaxValue)
	}
	err = s.limits.PutAccountLimit(ctx, &domain.AccountLimit{
		AccountID: accountID,
		LimitID:   def.ID,
		Region:    req.Region,
		IntValue:  req.IntValue,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account limit set",
		"account_id", accountID,
		"limit", def.ServiceName+"/"+def.LimitName,
		"region", req.Region,
		"value", v)
	return &EffectiveLimit{Definition: *def, Region: req.Region, Value: v, Overridden: true}, nil
}

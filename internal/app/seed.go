package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"iamcore/internal/config"
	"iamcore/internal/domain"
	"iamcore/internal/service/iam"
)

// SeedDeps carries the dependencies Seed needs to bring a fresh database to
// a usable state.
type SeedDeps struct {
	Cfg      *config.Config
	Accounts domain.AccountRepository
	Limits   domain.LimitRepository
	Logger   *slog.Logger
}

// SeedRootCredential is the root access key pair declared in a seed file.
type SeedRootCredential struct {
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

// SeedResult reports what the seed pass produced beyond database rows.
type SeedResult struct {
	// RootCredential is non-nil when the seed file declared one.
	RootCredential *SeedRootCredential
}

type seedFile struct {
	RootCredential *SeedRootCredential `yaml:"rootCredential"`
	Accounts       []seedAccount       `yaml:"accounts"`
	Limits         []seedLimit         `yaml:"limits"`
}

type seedAccount struct {
	Email string `yaml:"email"`
	Alias string `yaml:"alias"`
}

type seedLimit struct {
	AccountID string `yaml:"accountId"`
	Limit     string `yaml:"limit"`
	Region    string `yaml:"region"`
	Value     int    `yaml:"value"`
}

// Seed guarantees the management account exists and is allowed to open
// further accounts, then applies the optional seed file. Every step is
// idempotent so the pass runs on each startup.
func Seed(ctx context.Context, deps SeedDeps) (*SeedResult, error) {
	if err := ensureSeedAccount(ctx, deps); err != nil {
		return nil, err
	}
	if err := ensureAccountCreationEnabled(ctx, deps); err != nil {
		return nil, err
	}

	result := &SeedResult{}
	if deps.Cfg.SeedFile == "" {
		return result, nil
	}
	file, err := loadSeedFile(deps.Cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	if err := applySeedFile(ctx, deps, file); err != nil {
		return nil, err
	}
	result.RootCredential = file.RootCredential
	return result, nil
}

// ensureSeedAccount creates the management account on first start.
func ensureSeedAccount(ctx context.Context, deps SeedDeps) error {
	_, err := deps.Accounts.GetByID(ctx, domain.SeedAccountID)
	if err == nil {
		return nil
	}
	if !domain.IsNotFound(err) {
		return fmt.Errorf("look up seed account: %w", err)
	}
	_, err = deps.Accounts.Create(ctx, &domain.Account{
		ID:    domain.SeedAccountID,
		Email: deps.Cfg.SeedAccountEmail,
		Alias: domain.SeedAccountAlias,
	})
	if err != nil {
		return fmt.Errorf("create seed account: %w", err)
	}
	deps.Logger.Info("seed account created",
		"account_id", domain.SeedAccountID, "email", deps.Cfg.SeedAccountEmail)
	return nil
}

// ensureAccountCreationEnabled grants the seed account the ability to open
// new accounts. The override is written only when absent, so an operator's
// later change survives restarts.
func ensureAccountCreationEnabled(ctx context.Context, deps SeedDeps) error {
	def, err := deps.Limits.GetDefinition(ctx,
		domain.LimitServiceOrganizations, domain.LimitCreateAccount)
	if err != nil {
		return fmt.Errorf("resolve %s/%s: %w",
			domain.LimitServiceOrganizations, domain.LimitCreateAccount, err)
	}
	_, err = deps.Limits.GetAccountLimit(ctx, domain.SeedAccountID, def.ID, domain.GlobalRegion)
	if err == nil {
		return nil
	}
	if !domain.IsNotFound(err) {
		return fmt.Errorf("look up seed account limit: %w", err)
	}
	enabled := 1
	err = deps.Limits.PutAccountLimit(ctx, &domain.AccountLimit{
		AccountID: domain.SeedAccountID,
		LimitID:   def.ID,
		Region:    domain.GlobalRegion,
		IntValue:  &enabled,
	})
	if err != nil {
		return fmt.Errorf("enable account creation: %w", err)
	}
	deps.Logger.Info("account creation enabled for seed account")
	return nil
}

// applySeedFile provisions the accounts and limit overrides the file
// declares. Accounts are matched by alias, so reruns do not duplicate them.
// Limit overrides are applied unconditionally; the file states the
// operator's intent.
func applySeedFile(ctx context.Context, deps SeedDeps, file *seedFile) error {
	accounts := iam.NewAccountService(deps.Accounts, iam.NewLimitEnforcer(deps.Limits), deps.Logger)
	limits := iam.NewLimitService(deps.Limits, deps.Accounts, deps.Logger)

	for _, a := range file.Accounts {
		_, err := deps.Accounts.GetByAlias(ctx, a.Alias)
		if err == nil {
			continue
		}
		if !domain.IsNotFound(err) {
			return fmt.Errorf("look up account %q: %w", a.Alias, err)
		}
		_, err = accounts.Create(ctx, domain.CreateAccountRequest{Email: a.Email, Alias: a.Alias})
		if err != nil {
			return fmt.Errorf("seed account %q: %w", a.Alias, err)
		}
	}

	for _, l := range file.Limits {
		value := l.Value
		_, err := limits.SetAccountLimit(ctx, l.AccountID, l.Limit, domain.PutAccountLimitRequest{
			Region:   l.Region,
			IntValue: &value,
		})
		if err != nil {
			return fmt.Errorf("seed limit %s for account %s: %w", l.Limit, l.AccountID, err)
		}
	}
	return nil
}

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if rc := file.RootCredential; rc != nil {
		if rc.AccessKeyID == "" || rc.SecretAccessKey == "" {
			return nil, fmt.Errorf("seed file %s: rootCredential needs both accessKeyId and secretAccessKey", path)
		}
	}
	for i, a := range file.Accounts {
		if a.Alias == "" {
			return nil, fmt.Errorf("seed file %s: accounts[%d] needs an alias", path, i)
		}
	}
	return &file, nil
}

// Package app provides application-level wiring and dependency injection
// for the IAM service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"iamcore/internal/api"
	"iamcore/internal/config"
	"iamcore/internal/db/repository"
	"iamcore/internal/domain"
	"iamcore/internal/ids"
	"iamcore/internal/middleware"
	"iamcore/internal/service/iam"
	"iamcore/internal/sts"
)

// Deps holds the external dependencies that main() must provide: the open
// database pool, config, and the logger.
type Deps struct {
	Cfg    *config.Config
	DB     *sqlx.DB
	Logger *slog.Logger
}

// Services groups the service pointers the API handler and CLI need.
type Services struct {
	Accounts    *iam.AccountService
	Users       *iam.UserService
	Groups      *iam.GroupService
	Roles       *iam.RoleService
	Policies    *iam.PolicyService
	Credentials *iam.CredentialService
	Limits      *iam.LimitService
	STS         *iam.STSService
	Authorizer  *iam.Authorizer
}

// App holds the fully-wired application: services, the HTTP handler, the
// credential vault behind the auth middleware, and background maintenance.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	DB       *sqlx.DB
	Services Services

	Handler     *api.Handler
	Vault       *iam.CredentialVault
	Root        middleware.RootCredential
	Maintenance *sts.Maintenance
}

// New wires all repositories and services from the provided deps, applies
// the idempotent seed, and returns the assembled application. Migrations
// must have run before New is called.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg, logger := deps.Cfg, deps.Logger
	alloc := ids.NewAllocator()

	accountRepo := repository.NewAccountRepo(deps.DB, alloc)
	userRepo := repository.NewUserRepo(deps.DB, alloc)
	groupRepo := repository.NewGroupRepo(deps.DB, alloc)
	roleRepo := repository.NewRoleRepo(deps.DB, alloc)
	policyRepo := repository.NewPolicyRepo(deps.DB, alloc)
	credRepo := repository.NewCredentialRepo(deps.DB, alloc)
	tokenKeyRepo := repository.NewTokenKeyRepo(deps.DB)
	limitRepo := repository.NewLimitRepo(deps.DB)

	enforcer := iam.NewLimitEnforcer(limitRepo)
	tokens := sts.NewTokenService(tokenKeyRepo, alloc,
		logger.With("component", "sts-tokens"), cfg.TokenKeyLifetime)

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("web identity verifier: %w", err)
	}

	services := Services{
		Accounts:    iam.NewAccountService(accountRepo, enforcer, logger),
		Users:       iam.NewUserService(userRepo, groupRepo, policyRepo, accountRepo, logger),
		Groups:      iam.NewGroupService(groupRepo, userRepo, policyRepo, accountRepo, logger),
		Roles:       iam.NewRoleService(roleRepo, policyRepo, accountRepo, logger),
		Policies:    iam.NewPolicyService(policyRepo, accountRepo, enforcer, logger),
		Credentials: iam.NewCredentialService(credRepo, userRepo, enforcer, cfg.BcryptCost, logger),
		Limits:      iam.NewLimitService(limitRepo, accountRepo, logger),
		STS:         iam.NewSTSService(roleRepo, tokens, verifier, enforcer, logger),
		Authorizer:  iam.NewAuthorizer(userRepo, groupRepo, roleRepo, policyRepo, logger),
	}

	handler := api.NewHandler(
		services.Accounts, services.Users, services.Groups, services.Roles,
		services.Policies, services.Credentials, services.Limits, services.STS,
		services.Authorizer, logger.With("component", "api"),
	)

	root := middleware.RootCredential{
		AccessKeyID: cfg.RootAccessKeyID,
		Secret:      cfg.RootSecretAccessKey,
		AccountID:   domain.SeedAccountID,
	}
	seeded, err := Seed(ctx, SeedDeps{
		Cfg:      cfg,
		Accounts: accountRepo,
		Limits:   limitRepo,
		Logger:   logger.With("component", "seed"),
	})
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	// An explicit env credential wins over the seed file; the seed file
	// wins over the built-in development fallback.
	if seeded.RootCredential != nil && cfg.UsingDefaultRootCredential() {
		root.AccessKeyID = seeded.RootCredential.AccessKeyID
		root.Secret = seeded.RootCredential.SecretAccessKey
	}

	maint := sts.NewMaintenance(tokens, logger.With("component", "sts-maintenance"),
		sts.MaintenanceConfig{
			RotateSchedule: cfg.RotateSchedule,
			SweepSchedule:  cfg.SweepSchedule,
		})

	return &App{
		Cfg:         cfg,
		Logger:      logger,
		DB:          deps.DB,
		Services:    services,
		Handler:     handler,
		Vault:       iam.NewCredentialVault(credRepo, tokens),
		Root:        root,
		Maintenance: maint,
	}, nil
}

// newVerifier builds the web identity verifier from config: OIDC discovery
// when an issuer is set, the static HS256 verifier as the local fallback,
// nil when federation is not configured.
func newVerifier(ctx context.Context, cfg *config.Config) (sts.IdentityVerifier, error) {
	w := cfg.WebIdentity
	switch {
	case w.IssuerURL != "":
		return sts.NewOIDCVerifier(ctx, w.IssuerURL, w.Audience, w.AllowedIssuers)
	case w.StaticSecret != "":
		return sts.NewStaticVerifier(w.StaticSecret, w.StaticIssuer)
	default:
		return nil, nil
	}
}

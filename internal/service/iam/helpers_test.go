package iam

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	internaldb "iamcore/internal/db"
	"iamcore/internal/db/repository"
	"iamcore/internal/domain"
	"iamcore/internal/ids"
	"iamcore/internal/sts"
)

// serviceEnv wires every service over one migrated SQLite database.
type serviceEnv struct {
	accounts    *AccountService
	users       *UserService
	groups      *GroupService
	roles       *RoleService
	policies    *PolicyService
	credentials *CredentialService
	limits      *LimitService
	enforcer    *LimitEnforcer
	authorizer  *Authorizer
	tokens      *sts.TokenService
	vault       *CredentialVault

	accountRepo  *repository.AccountRepo
	userRepo     *repository.UserRepo
	roleRepo     *repository.RoleRepo
	policyRepo   *repository.PolicyRepo
	credRepo     *repository.CredentialRepo
	tokenKeyRepo *repository.TokenKeyRepo
	limitRepo    *repository.LimitRepo
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	pool := internaldb.OpenTestDB(t)
	alloc := ids.NewAllocator()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accountRepo := repository.NewAccountRepo(pool, alloc)
	userRepo := repository.NewUserRepo(pool, alloc)
	groupRepo := repository.NewGroupRepo(pool, alloc)
	roleRepo := repository.NewRoleRepo(pool, alloc)
	policyRepo := repository.NewPolicyRepo(pool, alloc)
	credRepo := repository.NewCredentialRepo(pool, alloc)
	tokenKeyRepo := repository.NewTokenKeyRepo(pool)
	limitRepo := repository.NewLimitRepo(pool)

	enforcer := NewLimitEnforcer(limitRepo)
	tokens := sts.NewTokenService(tokenKeyRepo, alloc, logger, 0)

	return &serviceEnv{
		accounts:    NewAccountService(accountRepo, enforcer, logger),
		users:       NewUserService(userRepo, groupRepo, policyRepo, accountRepo, logger),
		groups:      NewGroupService(groupRepo, userRepo, policyRepo, accountRepo, logger),
		roles:       NewRoleService(roleRepo, policyRepo, accountRepo, logger),
		policies:    NewPolicyService(policyRepo, accountRepo, enforcer, logger),
		credentials: NewCredentialService(credRepo, userRepo, enforcer, bcryptTestCost, logger),
		limits:      NewLimitService(limitRepo, accountRepo, logger),
		enforcer:    enforcer,
		authorizer:  NewAuthorizer(userRepo, groupRepo, roleRepo, policyRepo, logger),
		tokens:      tokens,
		vault:       NewCredentialVault(credRepo, tokens),

		accountRepo:  accountRepo,
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		policyRepo:   policyRepo,
		credRepo:     credRepo,
		tokenKeyRepo: tokenKeyRepo,
		limitRepo:    limitRepo,
	}
}

// bcryptTestCost keeps password hashing fast in tests.
const bcryptTestCost = 4

func (e *serviceEnv) stsService(t *testing.T, verifier sts.IdentityVerifier) *STSService {
	t.Helper()
	return NewSTSService(e.roleRepo, e.tokens, verifier, e.enforcer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (e *serviceEnv) account(t *testing.T, email string) *domain.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), domain.CreateAccountRequest{Email: email})
	require.NoError(t, err)
	return a
}

// seedAccount installs the bootstrap account the way app seeding does.
func (e *serviceEnv) seedAccount(t *testing.T) *domain.Account {
	t.Helper()
	a, err := e.accountRepo.Create(context.Background(), &domain.Account{
		ID:    domain.SeedAccountID,
		Email: "root@iamcore.local",
		Alias: domain.SeedAccountAlias,
	})
	require.NoError(t, err)
	return a
}

func (e *serviceEnv) user(t *testing.T, accountID, name string) *domain.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), domain.CreateUserRequest{
		AccountID: accountID,
		Name:      name,
	})
	require.NoError(t, err)
	return u
}

const allowAnythingTrust = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":"*","Action":"sts:AssumeRole"}]}`

const allowAllDocument = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"*","Resource":"*"}]}`

const allowReadDocument = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["s3:GetObject","s3:ListBucket"],"Resource":"*"}]}`

func (e *serviceEnv) role(t *testing.T, accountID, name, trust string) *domain.Role {
	t.Helper()
	if trust == "" {
		trust = allowAnythingTrust
	}
	r, err := e.roles.Create(context.Background(), domain.CreateRoleRequest{
		AccountID:        accountID,
		Name:             name,
		AssumeRolePolicy: trust,
	})
	require.NoError(t, err)
	return r
}

func (e *serviceEnv) managedPolicy(t *testing.T, accountID, name, document string) *domain.ManagedPolicy {
	t.Helper()
	p, err := e.policies.Create(context.Background(), domain.CreatePolicyRequest{
		AccountID: accountID,
		Name:      name,
		Document:  document,
	})
	require.NoError(t, err)
	return p
}

// overrideLimit installs an account override directly through the repo.
func (e *serviceEnv) overrideLimit(t *testing.T, accountID, serviceName, limitName string, value int) {
	t.Helper()
	def, err := e.limitRepo.GetDefinition(context.Background(), serviceName, limitName)
	require.NoError(t, err)
	err = e.limitRepo.PutAccountLimit(context.Background(), &domain.AccountLimit{
		AccountID: accountID,
		LimitID:   def.ID,
		Region:    domain.GlobalRegion,
		IntValue:  &value,
	})
	require.NoError(t, err)
}

// rootCtx returns a context authenticated as the account's root principal.
func rootCtx(accountID string) context.Context {
	return domain.WithCaller(context.Background(), domain.Caller{
		AccountID:   accountID,
		PrincipalID: accountID,
		ARN:         "arn:aws:iam::" + accountID + ":root",
		Type:        domain.CallerTypeRoot,
	})
}

// userCtx returns a context authenticated as the user.
func userCtx(u *domain.User) context.Context {
	return domain.WithCaller(context.Background(), domain.Caller{
		AccountID:   u.AccountID,
		PrincipalID: u.ID,
		ARN:         u.ARN(),
		Type:        domain.CallerTypeUser,
		UserID:      u.ID,
	})
}

func intPtr(v int) *int { return &v }

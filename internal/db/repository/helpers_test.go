package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	internaldb "iamcore/internal/db"
	"iamcore/internal/domain"
	"iamcore/internal/ids"
)

// testEnv bundles every repo over one migrated SQLite database so tests
// can build cross-entity fixtures without boilerplate.
type testEnv struct {
	db          *sqlx.DB
	accounts    *AccountRepo
	users       *UserRepo
	groups      *GroupRepo
	roles       *RoleRepo
	policies    *PolicyRepo
	credentials *CredentialRepo
	tokenKeys   *TokenKeyRepo
	limits      *LimitRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := internaldb.OpenTestDB(t)
	alloc := ids.NewAllocator()
	return &testEnv{
		db:          pool,
		accounts:    NewAccountRepo(pool, alloc),
		users:       NewUserRepo(pool, alloc),
		groups:      NewGroupRepo(pool, alloc),
		roles:       NewRoleRepo(pool, alloc),
		policies:    NewPolicyRepo(pool, alloc),
		credentials: NewCredentialRepo(pool, alloc),
		tokenKeys:   NewTokenKeyRepo(pool),
		limits:      NewLimitRepo(pool),
	}
}

func (e *testEnv) account(t *testing.T, email string) *domain.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), &domain.Account{Email: email})
	require.NoError(t, err)
	return a
}

func (e *testEnv) user(t *testing.T, accountID, name string) *domain.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), &domain.User{
		AccountID: accountID,
		Name:      name,
		Path:      "/",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) role(t *testing.T, accountID, name string) *domain.Role {
	t.Helper()
	r, err := e.roles.Create(context.Background(), &domain.Role{
		AccountID:          accountID,
		Name:               name,
		Path:               "/",
		AssumeRolePolicy:   `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":"*"},"Action":"sts:AssumeRole"}]}`,
		MaxSessionDuration: 3600,
	})
	require.NoError(t, err)
	return r
}

const testPolicyDocument = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"s3:GetObject","Resource":"*"}]}`

func (e *testEnv) policy(t *testing.T, accountID, name string) *domain.ManagedPolicy {
	t.Helper()
	p, err := e.policies.Create(context.Background(), &domain.ManagedPolicy{
		AccountID:  accountID,
		Name:       name,
		Path:       "/",
		PolicyType: domain.PolicyTypeLocal,
	}, testPolicyDocument)
	require.NoError(t, err)
	return p
}

// historyCount counts rows in a deleted_* twin matching the where clause.
func (e *testEnv) historyCount(t *testing.T, twin, where string, args ...any) int64 {
	t.Helper()
	var n int64
	err := e.db.Get(&n, e.db.Rebind(`SELECT COUNT(*) FROM `+twin+` WHERE `+where), args...)
	require.NoError(t, err)
	return n
}

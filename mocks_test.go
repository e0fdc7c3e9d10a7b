package identity_test

import (
	"context"
	"time"

	identity "github.com/dztabib/identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts implements identity.Accounts for the methods the tests
// exercise. The embedded repository interface covers the rest; calling an
// unregistered method panics, which is what we want in a test.
type MockAccounts struct {
	mock.Mock
	repository.Repository[*identity.Account]
}

func (m *MockAccounts) Register(ctx context.Context, account *identity.Account) (*identity.Account, error) {
	args := m.Called(ctx, account)
	return accountResult(args)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *identity.Account) (*identity.Account, error) {
	args := m.Called(ctx, tx, account)
	return accountResult(args)
}

func (m *MockAccounts) Create(ctx context.Context, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, record)
	return accountResult(args)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, record)
	return accountResult(args)
}

func (m *MockAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	return accountResult(args)
}

func (m *MockAccounts) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	return accountResult(args)
}

func (m *MockAccounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*identity.Account, error) {
	args := m.Called(ctx, tx, email)
	return accountResult(args)
}

func (m *MockAccounts) Search(ctx context.Context, namePattern string) ([]*identity.Account, error) {
	args := m.Called(ctx, namePattern)
	if records, ok := args.Get(0).([]*identity.Account); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) StoreResetCode(ctx context.Context, email, code string, expires time.Time) error {
	args := m.Called(ctx, email, code, expires)
	return args.Error(0)
}

func (m *MockAccounts) StoreResetCodeTx(ctx context.Context, tx bun.IDB, email, code string, expires time.Time) error {
	args := m.Called(ctx, tx, email, code, expires)
	return args.Error(0)
}

func (m *MockAccounts) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	args := m.Called(ctx, email, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) UpdatePasswordTx(ctx context.Context, tx bun.IDB, email, passwordHash string) error {
	args := m.Called(ctx, tx, email, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.AccountStatus, opts ...identity.StatusUpdateOption) (*identity.Account, error) {
	args := m.Called(ctx, id, status, opts)
	return accountResult(args)
}

func (m *MockAccounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status identity.AccountStatus, opts ...identity.StatusUpdateOption) (*identity.Account, error) {
	args := m.Called(ctx, tx, id, status, opts)
	return accountResult(args)
}

func (m *MockAccounts) Suspend(ctx context.Context, actor identity.ActorRef, account *identity.Account, opts ...identity.TransitionOption) (*identity.Account, error) {
	args := m.Called(ctx, actor, account)
	return accountResult(args)
}

func (m *MockAccounts) Unsuspend(ctx context.Context, actor identity.ActorRef, account *identity.Account, opts ...identity.TransitionOption) (*identity.Account, error) {
	args := m.Called(ctx, actor, account)
	return accountResult(args)
}

func accountResult(args mock.Arguments) (*identity.Account, error) {
	if record, ok := args.Get(0).(*identity.Account); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockActivitySink implements identity.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event identity.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if id, ok := args.Get(0).(identity.Identity); ok {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if id, ok := args.Get(0).(identity.Identity); ok {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

// testIdentity is a plain Identity value for feeding the token service.
type testIdentity struct {
	id        string
	username  string
	email     string
	role      string
	profileID string
}

func (t testIdentity) ID() string        { return t.id }
func (t testIdentity) Username() string  { return t.username }
func (t testIdentity) Email() string     { return t.email }
func (t testIdentity) Role() string      { return t.role }
func (t testIdentity) ProfileID() string { return t.profileID }

// MockLoginPayload implements identity.LoginPayload
type MockLoginPayload struct {
	Identifier string
	Password   string
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

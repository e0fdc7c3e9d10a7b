package identity

import (
	"context"

	"github.com/goliatone/go-errors"
)

// AccountStore is the slice of the accounts repository the provider needs.
type AccountStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
}

// ProfileResolver maps an account to its satellite profile row id.
type ProfileResolver interface {
	ProfileIDFor(ctx context.Context, account *Account) (string, error)
}

// AccountProvider resolves identities against the accounts store.
type AccountProvider struct {
	store     AccountStore
	profiles  ProfileResolver
	Validator func(*Account) error
	logger    Logger
	provider  LoggerProvider
}

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountStore, profiles ProfileResolver) *AccountProvider {
	loggerProvider, logger := ResolveLogger("identity.account_provider", nil, nil)
	return &AccountProvider{
		store:     store,
		profiles:  profiles,
		logger:    logger,
		provider:  loggerProvider,
		Validator: defaultAccountValidator,
	}
}

func (u *AccountProvider) WithLogger(l Logger) *AccountProvider {
	u.provider, u.logger = ResolveLogger("identity.account_provider", u.provider, l)
	return u
}

// WithLoggerProvider overrides the logger provider used by the account provider.
func (u *AccountProvider) WithLoggerProvider(provider LoggerProvider) *AccountProvider {
	u.provider, u.logger = ResolveLogger("identity.account_provider", provider, u.logger)
	return u
}

func (u *AccountProvider) validate(account *Account) error {
	if u.Validator != nil {
		return u.Validator(account)
	}
	return defaultAccountValidator(account)
}

// VerifyIdentity will find the account, compare the password, and return identity.
// An unknown email and a wrong password produce the same error so the login
// surface cannot be used as an account oracle.
func (u AccountProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	account, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) || IsNotFoundError(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	if err := u.validate(account); err != nil {
		return nil, err
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		u.logger.Warn("VerifyIdentity password mismatch for account %s", account.ID)
		return nil, ErrMismatchedHashAndPassword
	}

	return u.identityFor(ctx, account)
}

func (u AccountProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := ensureAuthenticatableAccount(account); err != nil {
		return nil, err
	}

	if err := u.validate(account); err != nil {
		return nil, err
	}

	return u.identityFor(ctx, account)
}

func (u AccountProvider) identityFor(ctx context.Context, account *Account) (Identity, error) {
	profileID := ""
	if u.profiles != nil {
		pid, err := u.profiles.ProfileIDFor(ctx, account)
		if err != nil && !IsNotFoundError(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve profile for account")
		}
		profileID = pid
	}

	return accountIdentity{
		email:     account.Email,
		id:        account.ID.String(),
		username:  account.Username,
		role:      account.Role,
		profileID: profileID,
		status:    account.Status(),
	}, nil
}

func defaultAccountValidator(a *Account) error {
	switch a.Role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return nil
	default:
		return errors.New("account has an unknown or invalid role", errors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": a.Role, "account_id": a.ID.String()})
	}
}

func ensureAuthenticatableAccount(account *Account) error {
	if account == nil {
		return ErrAccountNotFound
	}

	if account.IsSuspended {
		return ErrAccountSuspended.WithMetadata(map[string]any{
			"account_id": account.ID.String(),
			"reason":     account.SuspensionReason,
		})
	}

	return nil
}

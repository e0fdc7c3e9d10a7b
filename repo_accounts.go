package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var StoreResetCodeSQL = `UPDATE "accounts" AS "acc"
SET
	"reset_password_code" = ?,
	"reset_password_expires" = ?
WHERE
	"acc"."email" = ?
RETURNING *;`

// UpdatePasswordSQL clears both reset fields alongside the credential so a
// consumed code is never replayable.
var UpdatePasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"reset_password_code" = NULL,
	"reset_password_expires" = NULL
WHERE
	"acc"."email" = ?
RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	Search(ctx context.Context, namePattern string) ([]*Account, error)

	StoreResetCode(ctx context.Context, email, code string, expires time.Time) error
	StoreResetCodeTx(ctx context.Context, tx bun.IDB, email, code string, expires time.Time) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, email, passwordHash string) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	Suspend(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error)
	Unsuspend(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db                  *bun.DB
	stateMachine        AccountStateMachine
	stateMachineOptions []StateMachineOption
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

type AccountsOption func(*accounts)

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	repoAccounts := &accounts{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoAccounts)
		}
	}

	return repoAccounts
}

func WithAccountsStateMachineOptions(options ...StateMachineOption) AccountsOption {
	return func(a *accounts) {
		if len(options) == 0 {
			return
		}
		a.stateMachineOptions = append(a.stateMachineOptions, options...)
		a.stateMachine = nil
	}
}

func WithAccountsStateMachine(sm AccountStateMachine) AccountsOption {
	return func(a *accounts) {
		a.stateMachine = sm
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.WithMetadata(map[string]any{
				"email": email,
			})
		}
		return nil, err
	}

	return record, nil
}

// Search matches accounts by case insensitive substring over username and
// email. An empty result is a valid outcome, not an error.
func (a *accounts) Search(ctx context.Context, namePattern string) ([]*Account, error) {
	pattern := "%" + strings.TrimSpace(namePattern) + "%"

	var records []*Account
	err := a.db.NewSelect().
		Model(&records).
		Where("LOWER(?TableAlias.username) LIKE LOWER(?)", pattern).
		WhereOr("LOWER(?TableAlias.email) LIKE LOWER(?)", pattern).
		Order("username ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *accounts) StoreResetCode(ctx context.Context, email, code string, expires time.Time) error {
	return a.StoreResetCodeTx(ctx, a.db, email, code, expires)
}

func (a *accounts) StoreResetCodeTx(ctx context.Context, tx bun.IDB, email, code string, expires time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, StoreResetCodeSQL, code, expires, email)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrAccountNotFound.WithMetadata(map[string]any{
			"email": email,
		})
	}

	return nil
}

func (a *accounts) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, email, passwordHash)
}

func (a *accounts) UpdatePasswordTx(ctx context.Context, tx bun.IDB, email, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, UpdatePasswordSQL, passwordHash, email)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrAccountNotFound.WithMetadata(map[string]any{
			"email": email,
		})
	}

	return nil
}

func (a *accounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *accounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	record := &Account{
		ID:          id,
		IsSuspended: status == AccountStatusSuspended,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	// The ORM skips zero values on update, so clearing the suspension
	// fields has to be explicit.
	q := tx.NewUpdate().
		Model(record).
		Column("is_suspended", "suspension_reason", "suspended_at").
		Where("?TableAlias.id = ?", id)

	if _, err := q.Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *accounts) Suspend(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error) {
	return a.lifecycleMachine().Transition(ctx, actor, account, AccountStatusSuspended, opts...)
}

func (a *accounts) Unsuspend(ctx context.Context, actor ActorRef, account *Account, opts ...TransitionOption) (*Account, error) {
	return a.lifecycleMachine().Transition(ctx, actor, account, AccountStatusActive, opts...)
}

// StatusUpdateOption allows callers to mutate the account record before persisting status changes.
type StatusUpdateOption func(*Account)

// WithSuspendedAt sets the SuspendedAt timestamp during a status transition.
func WithSuspendedAt(at *time.Time) StatusUpdateOption {
	return func(a *Account) {
		a.SuspendedAt = at
	}
}

// WithSuspensionReason records why the account was suspended.
func WithSuspensionReason(reason string) StatusUpdateOption {
	return func(a *Account) {
		a.SuspensionReason = reason
	}
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RolePatient
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}

func (a *accounts) lifecycleMachine() AccountStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewAccountStateMachine(a, a.stateMachineOptions...)
	}
	return a.stateMachine
}

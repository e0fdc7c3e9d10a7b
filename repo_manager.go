package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Doctors() repository.Repository[*Doctor]
	Patients() repository.Repository[*Patient]
	Admins() repository.Repository[*Admin]

	ProfileIDFor(ctx context.Context, account *Account) (string, error)
}

func NewDoctorsRepository(db *bun.DB) repository.Repository[*Doctor] {
	handlers := repository.ModelHandlers[*Doctor]{
		NewRecord: func() *Doctor {
			return &Doctor{}
		},
		GetID: func(record *Doctor) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Doctor, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewPatientsRepository(db *bun.DB) repository.Repository[*Patient] {
	handlers := repository.ModelHandlers[*Patient]{
		NewRecord: func() *Patient {
			return &Patient{}
		},
		GetID: func(record *Patient) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Patient, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewAdminsRepository(db *bun.DB) repository.Repository[*Admin] {
	handlers := repository.ModelHandlers[*Admin]{
		NewRecord: func() *Admin {
			return &Admin{}
		},
		GetID: func(record *Admin) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Admin, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	doctors  repository.Repository[*Doctor]
	patients repository.Repository[*Patient]
	admins   repository.Repository[*Admin]
}

func NewRepositoryManager(db *bun.DB, opts ...AccountsOption) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db, opts...),
		doctors:  NewDoctorsRepository(db),
		patients: NewPatientsRepository(db),
		admins:   NewAdminsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.doctors == nil {
		return errors.New("repository doctors should be initialized")
	}

	if m.patients == nil {
		return errors.New("repository patients should be initialized")
	}

	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Doctors() repository.Repository[*Doctor] {
	return m.doctors
}

func (m mngr) Patients() repository.Repository[*Patient] {
	return m.patients
}

func (m mngr) Admins() repository.Repository[*Admin] {
	return m.admins
}

// ProfileIDFor resolves the satellite row id for the account's role. Admin
// accounts carry no profile id in their token claims.
func (m mngr) ProfileIDFor(ctx context.Context, account *Account) (string, error) {
	if account == nil {
		return "", ErrAccountNotFound
	}

	switch account.Role {
	case RoleDoctor:
		doctor, err := m.doctors.GetByIdentifier(ctx, account.ID.String())
		if err != nil {
			return "", err
		}
		return doctor.ID.String(), nil
	case RolePatient:
		patient, err := m.patients.GetByIdentifier(ctx, account.ID.String())
		if err != nil {
			return "", err
		}
		return patient.ID.String(), nil
	default:
		return "", nil
	}
}

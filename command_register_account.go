package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage carries the signup payload. Role selects which
// satellite profile row is created alongside the account, in the same
// transaction.
type RegisterAccountMessage struct {
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Password           string     `json:"password"`
	Role               string     `json:"account_type"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Phone              string     `json:"phone,omitempty"`
	DateOfBirth        *time.Time `json:"date_of_birth,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	RegistrationNumber string     `json:"registration_number,omitempty"`
	SpecialtyID        string     `json:"specialty_id,omitempty"`
	AdminRole          string     `json:"role,omitempty"`
	UseHashid          bool       `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountHandler struct {
	repo RepositoryManager
}

func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{repo: repo}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	if !IsValidRole(event.Role) {
		return nil, ErrUnsupportedRole.WithMetadata(map[string]any{
			"account_type": event.Role,
		})
	}

	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = event.Email
		account.Username = getUsername(event.Username, event.Email)
		account.Role = event.Role
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account").
				WithTextCode(TextCodeDuplicateAccount).
				WithMetadata(map[string]any{
					"email":    event.Email,
					"username": event.Username,
				})
		}

		return h.createProfileRow(ctx, tx, account, event)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	return account, nil
}

// createProfileRow inserts exactly one satellite row matching the role.
func (h *RegisterAccountHandler) createProfileRow(ctx context.Context, tx bun.Tx, account *Account, event RegisterAccountMessage) error {
	switch account.Role {
	case RoleDoctor:
		doctor := &Doctor{
			ID:                 uuid.New(),
			AccountID:          account.ID,
			FirstName:          event.FirstName,
			LastName:           event.LastName,
			Phone:              event.Phone,
			RegistrationNumber: event.RegistrationNumber,
		}
		if event.SpecialtyID != "" {
			if sid, err := uuid.Parse(event.SpecialtyID); err == nil {
				doctor.SpecialtyID = sid
			}
		}
		if _, err := h.repo.Doctors().CreateTx(ctx, tx, doctor); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create doctor profile")
		}
	case RolePatient:
		patient := &Patient{
			ID:          uuid.New(),
			AccountID:   account.ID,
			FirstName:   event.FirstName,
			LastName:    event.LastName,
			Phone:       event.Phone,
			DateOfBirth: event.DateOfBirth,
			Gender:      event.Gender,
		}
		if _, err := h.repo.Patients().CreateTx(ctx, tx, patient); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create patient profile")
		}
	case RoleAdmin:
		adminRole := event.AdminRole
		if adminRole == "" {
			adminRole = DefaultAdminRole
		}
		admin := &Admin{
			ID:        uuid.New(),
			AccountID: account.ID,
			FirstName: event.FirstName,
			LastName:  event.LastName,
			AdminRole: adminRole,
		}
		if _, err := h.repo.Admins().CreateTx(ctx, tx, admin); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create admin profile")
		}
	default:
		return ErrUnsupportedRole.WithMetadata(map[string]any{
			"account_type": account.Role,
		})
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

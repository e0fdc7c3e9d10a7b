package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AddressUpdate targets one shared address row plus the doctor-specific
// primary flag on the link row.
type AddressUpdate struct {
	ID                string `json:"id"`
	StreetAddress     string `json:"street_address"`
	AdditionalDetails string `json:"additional_details,omitempty"`
	CommuneID         string `json:"commune_id,omitempty"`
	IsPrimary         bool   `json:"is_primary"`
}

// WorkingHourUpdate targets one weekly interval scoped to the doctor.
type WorkingHourUpdate struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// UpdateProfileMessage carries a profile mutation. Nil pointers mean the
// field is untouched. Languages and Mutuelles are authoritative replacements:
// a non-nil empty set deletes every link the doctor had.
type UpdateProfileMessage struct {
	AccountID string `json:"account_id"`

	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`

	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`

	RegistrationNumber    *string `json:"registration_number,omitempty"`
	SpecialtyID           *string `json:"specialty_id,omitempty"`
	ExperienceYears       *int    `json:"experience_years,omitempty"`
	EducationBackground   *string `json:"education_background,omitempty"`
	ProfessionalStatement *string `json:"professional_statement,omitempty"`

	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty"`

	ProfileImageURL *string `json:"profile_image_url,omitempty"`

	Addresses    []AddressUpdate     `json:"addresses,omitempty"`
	WorkingHours []WorkingHourUpdate `json:"working_hours,omitempty"`
	Languages    *[]string           `json:"languages,omitempty"`
	Mutuelles    *[]string           `json:"mutuelles,omitempty"`
}

func (e UpdateProfileMessage) Type() string { return "account.profile.update" }

type UpdateProfileHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{repo: repo, logger: defLogger{}}
}

func (h *UpdateProfileHandler) WithLogger(l Logger) *UpdateProfileHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

// Execute applies the whole mutation in a single transaction. Any failure
// at any step rolls everything back; no partial application is observable.
func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) (int64, error) {
	var affected int64

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByIdentifierTx(ctx, tx, event.AccountID)
		if err != nil {
			if IsNotFoundError(err) {
				return ErrAccountNotFound.WithMetadata(map[string]any{
					"account_id": event.AccountID,
				})
			}
			return err
		}

		n, err := h.applyAccountFields(ctx, tx, account, event)
		if err != nil {
			return err
		}
		affected += n

		switch account.Role {
		case RoleDoctor:
			n, err = h.applyDoctorFields(ctx, tx, account, event)
		case RolePatient:
			n, err = h.applyPatientFields(ctx, tx, account, event)
		default:
			return ErrUnsupportedRole.WithMetadata(map[string]any{
				"account_id":   account.ID.String(),
				"account_type": account.Role,
			})
		}
		if err != nil {
			return err
		}
		affected += n

		return nil
	})

	if err != nil {
		affected = 0
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return 0, richErr
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	return affected, nil
}

func (h *UpdateProfileHandler) applyAccountFields(ctx context.Context, tx bun.Tx, account *Account, event UpdateProfileMessage) (int64, error) {
	columns := []string{}
	if event.Email != nil {
		account.Email = *event.Email
		columns = append(columns, "email")
	}
	if event.Username != nil {
		account.Username = *event.Username
		columns = append(columns, "username")
	}

	if len(columns) == 0 {
		return 0, nil
	}

	res, err := tx.NewUpdate().
		Model(account).
		Column(columns...).
		Where("?TableAlias.id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to update account fields")
	}

	return rowsAffected(res), nil
}

func (h *UpdateProfileHandler) applyDoctorFields(ctx context.Context, tx bun.Tx, account *Account, event UpdateProfileMessage) (int64, error) {
	doctor := &Doctor{}
	err := tx.NewSelect().
		Model(doctor).
		Where("?TableAlias.account_id = ?", account.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": account.ID.String(),
				"missing":    "doctor profile",
			})
		}
		return 0, wrapStorageError(err, "failed to load doctor profile")
	}

	var affected int64

	n, err := h.updateDoctorScalars(ctx, tx, doctor, event)
	if err != nil {
		return 0, err
	}
	affected += n

	for _, addr := range event.Addresses {
		n, err = h.updateDoctorAddress(ctx, tx, doctor.ID, addr)
		if err != nil {
			return 0, err
		}
		affected += n
	}

	for _, wh := range event.WorkingHours {
		n, err = h.updateWorkingHour(ctx, tx, doctor.ID, wh)
		if err != nil {
			return 0, err
		}
		affected += n
	}

	if event.Languages != nil {
		n, err = h.replaceLanguages(ctx, tx, doctor.ID, *event.Languages)
		if err != nil {
			return 0, err
		}
		affected += n
	}

	if event.Mutuelles != nil {
		n, err = h.replaceMutuelles(ctx, tx, doctor.ID, *event.Mutuelles)
		if err != nil {
			return 0, err
		}
		affected += n
	}

	return affected, nil
}

func (h *UpdateProfileHandler) updateDoctorScalars(ctx context.Context, tx bun.Tx, doctor *Doctor, event UpdateProfileMessage) (int64, error) {
	columns := []string{}

	if event.FirstName != nil {
		doctor.FirstName = *event.FirstName
		columns = append(columns, "first_name")
	}
	if event.LastName != nil {
		doctor.LastName = *event.LastName
		columns = append(columns, "last_name")
	}
	if event.Phone != nil {
		doctor.Phone = *event.Phone
		columns = append(columns, "phone")
	}
	if event.RegistrationNumber != nil {
		doctor.RegistrationNumber = *event.RegistrationNumber
		columns = append(columns, "registration_number")
	}
	if event.SpecialtyID != nil {
		sid, err := uuid.Parse(*event.SpecialtyID)
		if err != nil {
			return 0, goerrors.New("invalid specialty id", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"specialty_id": *event.SpecialtyID})
		}
		doctor.SpecialtyID = sid
		columns = append(columns, "specialty_id")
	}
	if event.ExperienceYears != nil {
		doctor.ExperienceYears = *event.ExperienceYears
		columns = append(columns, "experience_years")
	}
	if event.EducationBackground != nil {
		doctor.EducationBackground = *event.EducationBackground
		columns = append(columns, "education_background")
	}
	if event.ProfessionalStatement != nil {
		doctor.ProfessionalStatement = *event.ProfessionalStatement
		columns = append(columns, "professional_statement")
	}
	if event.ProfileImageURL != nil {
		doctor.ProfileImageURL = *event.ProfileImageURL
		columns = append(columns, "profile_image_url")
	}

	if len(columns) == 0 {
		return 0, nil
	}

	res, err := tx.NewUpdate().
		Model(doctor).
		Column(columns...).
		Where("?TableAlias.id = ?", doctor.ID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to update doctor profile")
	}

	return rowsAffected(res), nil
}

func (h *UpdateProfileHandler) updateDoctorAddress(ctx context.Context, tx bun.Tx, doctorID uuid.UUID, addr AddressUpdate) (int64, error) {
	addressID, err := uuid.Parse(addr.ID)
	if err != nil {
		return 0, goerrors.New("invalid address id", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"address_id": addr.ID})
	}

	address := &Address{
		ID:                addressID,
		StreetAddress:     addr.StreetAddress,
		AdditionalDetails: addr.AdditionalDetails,
	}
	columns := []string{"street_address", "additional_details"}
	if addr.CommuneID != "" {
		cid, err := uuid.Parse(addr.CommuneID)
		if err != nil {
			return 0, goerrors.New("invalid commune id", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"commune_id": addr.CommuneID})
		}
		address.CommuneID = cid
		columns = append(columns, "commune_id")
	}

	res, err := tx.NewUpdate().
		Model(address).
		Column(columns...).
		Where("?TableAlias.id = ?", addressID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to update address")
	}
	affected := rowsAffected(res)

	link := &DoctorAddress{
		DoctorID:  doctorID,
		AddressID: addressID,
		IsPrimary: addr.IsPrimary,
	}
	res, err = tx.NewUpdate().
		Model(link).
		Column("is_primary").
		Where("?TableAlias.doctor_id = ? AND ?TableAlias.address_id = ?", doctorID, addressID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to update address primary flag")
	}

	return affected + rowsAffected(res), nil
}

func (h *UpdateProfileHandler) updateWorkingHour(ctx context.Context, tx bun.Tx, doctorID uuid.UUID, wh WorkingHourUpdate) (int64, error) {
	hourID, err := uuid.Parse(wh.ID)
	if err != nil {
		return 0, goerrors.New("invalid working hour id", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"working_hour_id": wh.ID})
	}

	record := &WorkingHour{
		ID:        hourID,
		DoctorID:  doctorID,
		DayOfWeek: wh.DayOfWeek,
		StartTime: wh.StartTime,
		EndTime:   wh.EndTime,
	}

	// scoped to the doctor so one doctor cannot rewrite another's schedule
	res, err := tx.NewUpdate().
		Model(record).
		Column("day_of_week", "start_time", "end_time").
		Where("?TableAlias.id = ? AND ?TableAlias.doctor_id = ?", hourID, doctorID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to update working hour")
	}

	return rowsAffected(res), nil
}

// replaceLanguages applies authoritative-replace semantics: the supplied set
// is the complete new set, delete-then-reinsert, never diffed.
func (h *UpdateProfileHandler) replaceLanguages(ctx context.Context, tx bun.Tx, doctorID uuid.UUID, languageIDs []string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*DoctorLanguage)(nil)).
		Where("doctor_id = ?", doctorID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to clear doctor languages")
	}
	affected := rowsAffected(res)

	if len(languageIDs) == 0 {
		return affected, nil
	}

	links := make([]*DoctorLanguage, 0, len(languageIDs))
	for _, raw := range languageIDs {
		lid, err := uuid.Parse(raw)
		if err != nil {
			return 0, goerrors.New("invalid language id", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"language_id": raw})
		}
		links = append(links, &DoctorLanguage{DoctorID: doctorID, LanguageID: lid})
	}

	res, err = tx.NewInsert().Model(&links).Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to insert doctor languages")
	}

	return affected + rowsAffected(res), nil
}

// replaceMutuelles mirrors replaceLanguages for insurance links.
func (h *UpdateProfileHandler) replaceMutuelles(ctx context.Context, tx bun.Tx, doctorID uuid.UUID, mutuelleIDs []string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*DoctorMutuelle)(nil)).
		Where("doctor_id = ?", doctorID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to clear doctor mutuelles")
	}
	affected := rowsAffected(res)

	if len(mutuelleIDs) == 0 {
		return affected, nil
	}

	links := make([]*DoctorMutuelle, 0, len(mutuelleIDs))
	for _, raw := range mutuelleIDs {
		mid, err := uuid.Parse(raw)
		if err != nil {
			return 0, goerrors.New("invalid mutuelle id", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"mutuelle_id": raw})
		}
		links = append(links, &DoctorMutuelle{DoctorID: doctorID, MutuelleID: mid})
	}

	res, err = tx.NewInsert().Model(&links).Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to insert doctor mutuelles")
	}

	return affected + rowsAffected(res), nil
}

func (h *UpdateProfileHandler) applyPatientFields(ctx context.Context, tx bun.Tx, account *Account, event UpdateProfileMessage) (int64, error) {
	patient := &Patient{}
	err := tx.NewSelect().
		Model(patient).
		Where("?TableAlias.account_id = ?", account.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": account.ID.String(),
				"missing":    "patient profile",
			})
		}
		return 0, wrapStorageError(err, "failed to load patient profile")
	}

	columns := []string{}
	if event.FirstName != nil {
		patient.FirstName = *event.FirstName
		columns = append(columns, "first_name")
	}
	if event.LastName != nil {
		patient.LastName = *event.LastName
		columns = append(columns, "last_name")
	}
	if event.Phone != nil {
		patient.Phone = *event.Phone
		columns = append(columns, "phone")
	}
	if event.DateOfBirth != nil {
		patient.DateOfBirth = event.DateOfBirth
		columns = append(columns, "date_of_birth")
	}
	if event.Gender != nil {
		patient.Gender = *event.Gender
		columns = append(columns, "gender")
	}
	if event.ProfileImageURL != nil {
		patient.ProfileImageURL = *event.ProfileImageURL
		columns = append(columns, "profile_image_url")
	}

	if len(columns) == 0 {
		return 0, nil
	}

	res, err := tx.NewUpdate().
		Model(patient).
		Column(columns...).
		Where("?TableAlias.id = ?", patient.ID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStorageError(err, "failed to update patient profile")
	}

	return rowsAffected(res), nil
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

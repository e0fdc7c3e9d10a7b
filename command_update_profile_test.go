package identity

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func seedDoctorAddress(t *testing.T, db *bun.DB, doctorID uuid.UUID, street string, primary bool) *Address {
	t.Helper()

	address := &Address{ID: uuid.New(), StreetAddress: street}
	_, err := db.NewInsert().Model(address).Exec(context.Background())
	require.NoError(t, err)

	link := &DoctorAddress{DoctorID: doctorID, AddressID: address.ID, IsPrimary: primary}
	_, err = db.NewInsert().Model(link).Exec(context.Background())
	require.NoError(t, err)

	return address
}

func seedWorkingHour(t *testing.T, db *bun.DB, doctorID uuid.UUID, day int) *WorkingHour {
	t.Helper()

	wh := &WorkingHour{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		DayOfWeek: day,
		StartTime: "09:00",
		EndTime:   "17:00",
	}
	_, err := db.NewInsert().Model(wh).Exec(context.Background())
	require.NoError(t, err)

	return wh
}

func seedLanguages(t *testing.T, db *bun.DB, doctorID uuid.UUID, ids ...uuid.UUID) {
	t.Helper()

	for _, id := range ids {
		link := &DoctorLanguage{DoctorID: doctorID, LanguageID: id}
		_, err := db.NewInsert().Model(link).Exec(context.Background())
		require.NoError(t, err)
	}
}

func TestUpdateProfileDoctorScalars(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleDoctor, "yacine", "yacine@example.com")
	seedDoctor(t, repo, account.ID)

	affected, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID:             account.ID.String(),
		Email:                 strPtr("dr.yacine@example.com"),
		FirstName:             strPtr("Yacine"),
		ExperienceYears:       intPtr(12),
		ProfessionalStatement: strPtr("Cardiologist in Algiers since 2013."),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	stored, err := repo.Accounts().FindByEmail(context.Background(), "dr.yacine@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID)

	doctor, err := repo.Doctors().GetByIdentifier(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 12, doctor.ExperienceYears)
	assert.Equal(t, "Cardiologist in Algiers since 2013.", doctor.ProfessionalStatement)
}

func TestUpdateProfilePatientFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RolePatient, "lina", "lina@example.com")
	seedPatient(t, repo, account.ID)

	dob := time.Date(1992, 3, 8, 0, 0, 0, 0, time.UTC)
	affected, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID:   account.ID.String(),
		Phone:       strPtr("+213551112233"),
		DateOfBirth: &dob,
		Gender:      strPtr("female"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	patient, err := repo.Patients().GetByIdentifier(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "+213551112233", patient.Phone)
	assert.Equal(t, "female", patient.Gender)
	require.NotNil(t, patient.DateOfBirth)
}

func TestUpdateProfileAddresses(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleDoctor, "yacine", "yacine@example.com")
	doctor := seedDoctor(t, repo, account.ID)
	address := seedDoctorAddress(t, db, doctor.ID, "12 Rue Didouche Mourad", false)

	affected, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		Addresses: []AddressUpdate{{
			ID:            address.ID.String(),
			StreetAddress: "45 Boulevard Zighout Youcef",
			IsPrimary:     true,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	stored := &Address{}
	err = db.NewSelect().Model(stored).Where("?TableAlias.id = ?", address.ID).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "45 Boulevard Zighout Youcef", stored.StreetAddress)

	link := &DoctorAddress{}
	err = db.NewSelect().Model(link).
		Where("?TableAlias.doctor_id = ? AND ?TableAlias.address_id = ?", doctor.ID, address.ID).
		Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, link.IsPrimary)
}

func TestUpdateProfileWorkingHourScopedToDoctor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleDoctor, "yacine", "yacine@example.com")
	doctor := seedDoctor(t, repo, account.ID)
	mine := seedWorkingHour(t, db, doctor.ID, 1)

	otherAccount := seedAccount(t, repo, RoleDoctor, "nadia", "nadia@example.com")
	other := seedDoctor(t, repo, otherAccount.ID)
	theirs := seedWorkingHour(t, db, other.ID, 2)

	affected, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		WorkingHours: []WorkingHourUpdate{{
			ID:        mine.ID.String(),
			DayOfWeek: 3,
			StartTime: "08:00",
			EndTime:   "12:00",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// targeting another doctor's interval updates nothing
	affected, err = handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		WorkingHours: []WorkingHourUpdate{{
			ID:        theirs.ID.String(),
			DayOfWeek: 5,
			StartTime: "10:00",
			EndTime:   "14:00",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	assert.Equal(t, 1, countRows(t, db, "doctor_working_hours", "doctor_id = ? AND day_of_week = 2", other.ID))
}

func TestUpdateProfileLanguagesReplace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleDoctor, "yacine", "yacine@example.com")
	doctor := seedDoctor(t, repo, account.ID)
	seedLanguages(t, db, doctor.ID, uuid.New(), uuid.New())

	t.Run("supplied set replaces the previous set", func(t *testing.T) {
		arabic := uuid.New()
		languages := []string{arabic.String()}

		_, err := handler.Execute(context.Background(), UpdateProfileMessage{
			AccountID: account.ID.String(),
			Languages: &languages,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, countRows(t, db, "doctor_languages", "doctor_id = ?", doctor.ID))
		assert.Equal(t, 1, countRows(t, db, "doctor_languages", "language_id = ?", arabic))
	})

	t.Run("non nil empty set clears every link", func(t *testing.T) {
		empty := []string{}
		_, err := handler.Execute(context.Background(), UpdateProfileMessage{
			AccountID: account.ID.String(),
			Languages: &empty,
		})
		require.NoError(t, err)

		assert.Equal(t, 0, countRows(t, db, "doctor_languages", "doctor_id = ?", doctor.ID))
	})

	t.Run("nil set is untouched", func(t *testing.T) {
		seedLanguages(t, db, doctor.ID, uuid.New())

		_, err := handler.Execute(context.Background(), UpdateProfileMessage{
			AccountID: account.ID.String(),
			FirstName: strPtr("Yacine"),
		})
		require.NoError(t, err)

		assert.Equal(t, 1, countRows(t, db, "doctor_languages", "doctor_id = ?", doctor.ID))
	})
}

func TestUpdateProfileMutuellesReplace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleDoctor, "yacine", "yacine@example.com")
	doctor := seedDoctor(t, repo, account.ID)

	first := uuid.New()
	second := uuid.New()
	mutuelles := []string{first.String(), second.String()}

	_, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		Mutuelles: &mutuelles,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, db, "doctor_mutuelles", "doctor_id = ?", doctor.ID))

	replacement := []string{second.String()}
	_, err = handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		Mutuelles: &replacement,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, "doctor_mutuelles", "doctor_id = ?", doctor.ID))
	assert.Equal(t, 1, countRows(t, db, "doctor_mutuelles", "mutuelle_id = ?", second))
}

func TestUpdateProfileRollsBackOnFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleDoctor, "yacine", "yacine@example.com")
	doctor := seedDoctor(t, repo, account.ID)
	wh := seedWorkingHour(t, db, doctor.ID, 1)

	// day 9 violates the schedule constraint; the email change in the same
	// message must roll back with it
	affected, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		Email:     strPtr("changed@example.com"),
		WorkingHours: []WorkingHourUpdate{{
			ID:        wh.ID.String(),
			DayOfWeek: 9,
			StartTime: "08:00",
			EndTime:   "12:00",
		}},
	})
	require.Error(t, err)
	assert.Equal(t, int64(0), affected)

	assert.Equal(t, 1, countRows(t, db, "accounts", "email = ?", "yacine@example.com"))
	assert.Equal(t, 0, countRows(t, db, "accounts", "email = ?", "changed@example.com"))
	assert.Equal(t, 1, countRows(t, db, "doctor_working_hours", "day_of_week = 1"))
}

func TestUpdateProfileUnknownAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	_, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: uuid.NewString(),
		FirstName: strPtr("Nobody"),
	})
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestUpdateProfileAdminUnsupported(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	handler := NewUpdateProfileHandler(repo)

	account := seedAccount(t, repo, RoleAdmin, "root", "root@example.com")

	_, err := handler.Execute(context.Background(), UpdateProfileMessage{
		AccountID: account.ID.String(),
		FirstName: strPtr("Nadia"),
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, TextCodeUnsupportedRole, richErr.TextCode)
}

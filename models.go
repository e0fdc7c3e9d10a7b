package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role tag. It determines which satellite
// profile row the account owns.
type AccountRole = string

const (
	// RolePatient is a patient account (owns a Patient row)
	RolePatient AccountRole = "patient"
	// RoleDoctor is a doctor account (owns a Doctor row plus its collections)
	RoleDoctor AccountRole = "doctor"
	// RoleAdmin is an administrator account (owns an Admin row)
	RoleAdmin AccountRole = "admin"
)

// Account is the identity row shared by all roles.
type Account struct {
	bun.BaseModel    `bun:"table:accounts,alias:acc"`
	ID               uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username         string      `bun:"username,notnull,unique" json:"username,omitempty"`
	Email            string      `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash     string      `bun:"password_hash" json:"-"`
	Role             AccountRole `bun:"account_type,notnull" json:"account_type,omitempty"`
	IsSuspended      bool        `bun:"is_suspended" json:"is_suspended,omitempty"`
	SuspensionReason string      `bun:"suspension_reason,nullzero" json:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time  `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	ResetCode        string      `bun:"reset_password_code,nullzero" json:"-"`
	ResetCodeExpires *time.Time  `bun:"reset_password_expires,nullzero" json:"-"`
	CreatedAt        *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Status reports the account's lifecycle state.
func (a *Account) Status() AccountStatus {
	if a.IsSuspended {
		return AccountStatusSuspended
	}
	return AccountStatusActive
}

// Doctor is the doctor satellite profile.
type Doctor struct {
	bun.BaseModel         `bun:"table:doctors,alias:doc"`
	ID                    uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID             uuid.UUID `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	FirstName             string    `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName              string    `bun:"last_name,notnull" json:"last_name,omitempty"`
	RegistrationNumber    string    `bun:"registration_number" json:"registration_number,omitempty"`
	SpecialtyID           uuid.UUID `bun:"specialty_id,nullzero,type:uuid" json:"specialty_id,omitempty"`
	Phone                 string    `bun:"phone" json:"phone,omitempty"`
	ExperienceYears       int       `bun:"experience_years" json:"experience_years,omitempty"`
	EducationBackground   string    `bun:"education_background" json:"education_background,omitempty"`
	ProfessionalStatement string    `bun:"professional_statement" json:"professional_statement,omitempty"`
	ProfileImageURL       string    `bun:"profile_image_url" json:"profile_image_url,omitempty"`
}

// Patient is the patient satellite profile.
type Patient struct {
	bun.BaseModel   `bun:"table:patients,alias:pat"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID       uuid.UUID  `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	FirstName       string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName        string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone           string     `bun:"phone" json:"phone,omitempty"`
	DateOfBirth     *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	Gender          string     `bun:"gender" json:"gender,omitempty"`
	ProfileImageURL string     `bun:"profile_image_url" json:"profile_image_url,omitempty"`
}

// Admin is the administrator satellite profile.
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	FirstName     string    `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name,notnull" json:"last_name,omitempty"`
	AdminRole     string    `bun:"role,notnull" json:"role,omitempty"`
}

// DefaultAdminRole is assigned when a signup payload omits the admin role tag.
const DefaultAdminRole = "UserManager"

// Address is a street address shared across the directory. Doctors link to
// addresses through DoctorAddress, which carries the primary flag.
type Address struct {
	bun.BaseModel     `bun:"table:addresses,alias:addr"`
	ID                uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	StreetAddress     string    `bun:"street_address,notnull" json:"street_address,omitempty"`
	AdditionalDetails string    `bun:"additional_details" json:"additional_details,omitempty"`
	CommuneID         uuid.UUID `bun:"commune_id,nullzero,type:uuid" json:"commune_id,omitempty"`
}

// DoctorAddress links a doctor to an address and flags the primary practice.
type DoctorAddress struct {
	bun.BaseModel `bun:"table:doctor_addresses,alias:dadr"`
	DoctorID      uuid.UUID `bun:"doctor_id,pk,type:uuid" json:"doctor_id,omitempty"`
	AddressID     uuid.UUID `bun:"address_id,pk,type:uuid" json:"address_id,omitempty"`
	IsPrimary     bool      `bun:"is_primary" json:"is_primary,omitempty"`
}

// WorkingHour is a weekly consultation interval owned by a doctor.
type WorkingHour struct {
	bun.BaseModel `bun:"table:doctor_working_hours,alias:dwh"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	DoctorID      uuid.UUID `bun:"doctor_id,notnull,type:uuid" json:"doctor_id,omitempty"`
	DayOfWeek     int       `bun:"day_of_week,notnull" json:"day_of_week"`
	StartTime     string    `bun:"start_time,notnull" json:"start_time,omitempty"`
	EndTime       string    `bun:"end_time,notnull" json:"end_time,omitempty"`
}

// DoctorLanguage links a doctor to a spoken language.
type DoctorLanguage struct {
	bun.BaseModel `bun:"table:doctor_languages,alias:dlang"`
	DoctorID      uuid.UUID `bun:"doctor_id,pk,type:uuid" json:"doctor_id,omitempty"`
	LanguageID    uuid.UUID `bun:"language_id,pk,type:uuid" json:"language_id,omitempty"`
}

// DoctorMutuelle links a doctor to an accepted insurance provider.
type DoctorMutuelle struct {
	bun.BaseModel `bun:"table:doctor_mutuelles,alias:dmut"`
	DoctorID      uuid.UUID `bun:"doctor_id,pk,type:uuid" json:"doctor_id,omitempty"`
	MutuelleID    uuid.UUID `bun:"mutuelle_id,pk,type:uuid" json:"mutuelle_id,omitempty"`
}

// DoctorConsultationType links a doctor to an offered consultation type.
type DoctorConsultationType struct {
	bun.BaseModel      `bun:"table:doctor_consultation_types,alias:dct"`
	DoctorID           uuid.UUID `bun:"doctor_id,pk,type:uuid" json:"doctor_id,omitempty"`
	ConsultationTypeID uuid.UUID `bun:"consultation_type_id,pk,type:uuid" json:"consultation_type_id,omitempty"`
}

// Appointment is the booking row; the engine only touches it during cascades.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:appt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PatientID     uuid.UUID  `bun:"patient_id,notnull,type:uuid" json:"patient_id,omitempty"`
	DoctorID      uuid.UUID  `bun:"doctor_id,notnull,type:uuid" json:"doctor_id,omitempty"`
	ScheduledAt   *time.Time `bun:"scheduled_at,nullzero" json:"scheduled_at,omitempty"`
	Status        string     `bun:"status" json:"status,omitempty"`
}

// Review is a patient review of a doctor; cascade-only, like Appointment.
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rev"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PatientID     uuid.UUID  `bun:"patient_id,notnull,type:uuid" json:"patient_id,omitempty"`
	DoctorID      uuid.UUID  `bun:"doctor_id,notnull,type:uuid" json:"doctor_id,omitempty"`
	Rating        int        `bun:"rating,notnull" json:"rating"`
	Comment       string     `bun:"comment" json:"comment,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

package identity_test

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"

	identity "github.com/dztabib/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSignup() identity.RegistrationCreatePayload {
	return identity.RegistrationCreatePayload{
		Username:        "karim",
		Email:           "karim@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
		AccountType:     identity.RolePatient,
		FirstName:       "Karim",
		LastName:        "Benali",
	}
}

func TestRegistrationCreatePayloadValidate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, validSignup().Validate())
	})

	t.Run("gender is free-form and short passwords over six chars pass", func(t *testing.T) {
		payload := identity.RegistrationCreatePayload{
			Username:        "alice",
			Email:           "a@x.com",
			Password:        "secret1",
			ConfirmPassword: "secret1",
			AccountType:     identity.RolePatient,
			FirstName:       "A",
			LastName:        "L",
			DateOfBirth:     "1990-01-01",
			Gender:          "F",
		}
		assert.NoError(t, payload.Validate())
	})

	t.Run("password confirmation must match", func(t *testing.T) {
		payload := validSignup()
		payload.ConfirmPassword = "different123"

		err := payload.Validate()
		require.Error(t, err)
		assert.Contains(t, identity.FormatValidationErrorToMap(err), "confirm_password")
	})

	t.Run("short password", func(t *testing.T) {
		payload := validSignup()
		payload.Password = "short"
		payload.ConfirmPassword = "short"
		assert.Error(t, payload.Validate())
	})

	t.Run("bad email", func(t *testing.T) {
		payload := validSignup()
		payload.Email = "not-an-email"
		assert.Error(t, payload.Validate())
	})

	t.Run("unknown account type", func(t *testing.T) {
		payload := validSignup()
		payload.AccountType = "superuser"
		assert.Error(t, payload.Validate())
	})

	t.Run("doctor and admin types accepted", func(t *testing.T) {
		payload := validSignup()
		payload.AccountType = identity.RoleDoctor
		assert.NoError(t, payload.Validate())

		payload.AccountType = identity.RoleAdmin
		assert.NoError(t, payload.Validate())
	})

	t.Run("malformed date of birth", func(t *testing.T) {
		payload := validSignup()
		payload.DateOfBirth = "12/05/1994"
		assert.Error(t, payload.Validate())

		payload.DateOfBirth = "1994-05-12"
		assert.NoError(t, payload.Validate())
	})

	t.Run("missing names", func(t *testing.T) {
		payload := validSignup()
		payload.FirstName = ""
		assert.Error(t, payload.Validate())
	})
}

func TestLoginRequestValidate(t *testing.T) {
	valid := identity.LoginRequest{Identifier: "karim@example.com", Password: "password123"}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "karim@example.com", valid.GetIdentifier())
	assert.Equal(t, "password123", valid.GetPassword())

	assert.Error(t, identity.LoginRequest{Password: "password123"}.Validate())
	assert.Error(t, identity.LoginRequest{Identifier: "karim@example.com"}.Validate())
}

func TestPasswordResetPayloads(t *testing.T) {
	t.Run("request requires valid email", func(t *testing.T) {
		assert.NoError(t, identity.PasswordResetRequestPayload{Email: "karim@example.com"}.Validate())
		assert.Error(t, identity.PasswordResetRequestPayload{}.Validate())
		assert.Error(t, identity.PasswordResetRequestPayload{Email: "nope"}.Validate())
	})

	t.Run("verify requires a six digit code", func(t *testing.T) {
		valid := identity.PasswordResetVerifyPayload{Email: "karim@example.com", Code: "123456"}
		assert.NoError(t, valid.Validate())

		valid.Code = "12345"
		assert.Error(t, valid.Validate())

		valid.Code = "12345a"
		assert.Error(t, valid.Validate())
	})

	t.Run("execute requires matching passwords", func(t *testing.T) {
		valid := identity.PasswordResetExecutePayload{
			Email:           "karim@example.com",
			Code:            "123456",
			Password:        "new-password-123",
			ConfirmPassword: "new-password-123",
		}
		assert.NoError(t, valid.Validate())

		valid.ConfirmPassword = "other-password"
		assert.Error(t, valid.Validate())
	})
}

func TestSuspendAccountPayloadValidate(t *testing.T) {
	assert.NoError(t, identity.SuspendAccountPayload{Reason: "spam reports"}.Validate())
	assert.Error(t, identity.SuspendAccountPayload{}.Validate())
	assert.Error(t, identity.SuspendAccountPayload{Reason: "ab"}.Validate())
}

func TestValidatePhoneNumber(t *testing.T) {
	assert.NoError(t, identity.ValidatePhoneNumber(""))
	assert.NoError(t, identity.ValidatePhoneNumber("+213661234567"))
	assert.NoError(t, identity.ValidatePhoneNumber("0661234567"))
	assert.Error(t, identity.ValidatePhoneNumber("12345"))
}

func TestValidateStringEquals(t *testing.T) {
	rule := identity.ValidateStringEquals("password123")
	assert.NoError(t, rule("password123"))
	assert.Error(t, rule("different"))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("field errors keyed by field", func(t *testing.T) {
		err := validation.Errors{
			"email":    errors.New("must be a valid email address"),
			"password": errors.New("the length must be between 8 and 72"),
		}

		m := identity.FormatValidationErrorToMap(err)
		assert.Equal(t, "must be a valid email address", m["email"])
		assert.Contains(t, m["password"], "length")
	})

	t.Run("non validation error", func(t *testing.T) {
		m := identity.FormatValidationErrorToMap(errors.New("boom"))
		assert.Equal(t, "boom", m["error"])
	})
}

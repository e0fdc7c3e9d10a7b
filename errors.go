package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeAccountNotFound tags lookups that matched no account
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	// TextCodeDuplicateAccount tags signup collisions on email or username
	TextCodeDuplicateAccount = "DUPLICATE_ACCOUNT"
	// TextCodeTokenExpired tags expired access or refresh tokens
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenInvalid tags malformed or badly signed tokens
	TextCodeTokenInvalid = "TOKEN_INVALID"
	// TextCodeResetCodeInvalid tags reset codes that failed verification
	TextCodeResetCodeInvalid = "RESET_CODE_INVALID_OR_EXPIRED"
	// TextCodeUnsupportedRole tags profile mutations on a role without a
	// mutable profile table
	TextCodeUnsupportedRole = "UNSUPPORTED_ACCOUNT_ROLE"
)

// ErrAccountNotFound is returned when no account matches the given identifier.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateAccount is returned when a signup collides with an existing
// email or username.
var ErrDuplicateAccount = goerrors.New("email or username already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword is returned when the password does not match
// the stored credential. Deliberately indistinguishable from an unknown
// identifier at the login surface.
var ErrMismatchedHashAndPassword = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty secrets before they reach the hashing
// primitive.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMissing is returned when a request carries no token at all.
var ErrTokenMissing = goerrors.New("missing authentication token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeForbidden)

// ErrTokenMalformed is returned for tokens that fail signature or structural
// validation.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeForbidden)

// ErrUnauthorizedRole is returned when the verified token's role is not a
// member of the allowed set for the route.
var ErrUnauthorizedRole = goerrors.New("not authorized to perform this operation", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountSuspended is returned when an otherwise valid login hits a
// suspended account.
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden)

// ErrResetCodeInvalid is returned when a reset code does not match or the
// reset window has elapsed.
var ErrResetCodeInvalid = goerrors.New("invalid or expired reset code", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetCodeInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrUnsupportedRole is returned when the profile engine is asked to mutate
// a role that has no mutable profile table (admin, or a corrupt role value).
var ErrUnsupportedRole = goerrors.New("account role has no updatable profile", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnsupportedRole).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens. The raw jwt library
// error is matched by string so failures crossing the middleware boundary
// are still recognized.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for structurally invalid tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsNotFoundError will check for missing accounts or profile rows
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.IsNotFound(err) || goerrors.Is(err, ErrAccountNotFound)
}

// wrapStorageError normalizes storage failures crossing the transaction
// boundary. Rich errors pass through unchanged so categories survive; raw
// driver errors are wrapped as internal, never leaked verbatim to callers.
func wrapStorageError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

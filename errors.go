package onboard

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Machine readable error kinds. These travel to the boundary in the "error"
// field of the JSON error response.
const (
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeUsernameMismatch   = "USERNAME_MISMATCH"
	TextCodeMissingToken       = "MISSING_TOKEN"
	TextCodeTokenMalformed     = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeCodeExpired        = "CODE_EXPIRED"
	TextCodeCodeMismatch       = "CODE_MISMATCH"
	TextCodeAlreadyVerified    = "ALREADY_VERIFIED"
	TextCodeNotVerified        = "NOT_VERIFIED"
	TextCodeCooldownActive     = "COOLDOWN_ACTIVE"
	TextCodeNotificationFailed = "NOTIFICATION_FAILED"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
)

// ErrEmailAlreadyTaken is returned when a registration email already exists.
var ErrEmailAlreadyTaken = goerrors.New("the email you provided is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when the target account does not exist.
var ErrAccountNotFound = goerrors.New("the user does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUsernameTaken signals the store rejected an insert on the username
// unique key; the register loop treats it as a cue to reallocate.
var ErrUsernameTaken = goerrors.New("username already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrUsernameMismatch is returned when the token subject does not match the
// target username. Surfaces as forbidden.
var ErrUsernameMismatch = goerrors.New("username mismatch", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUsernameMismatch).
	WithCode(goerrors.CodeForbidden)

// ErrMissingToken is returned when the token cookie is absent or empty.
var ErrMissingToken = goerrors.New("missing authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers bad signatures and garbage tokens.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is kept distinct from ErrTokenMalformed for logs and tests;
// both surface as unauthorized.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrCodeExpired is returned when a verification code is submitted past its
// expiry, or no expiry was ever recorded.
var ErrCodeExpired = goerrors.New("the code provided has expired, please ask for a new one", goerrors.CategoryConflict).
	WithTextCode(TextCodeCodeExpired).
	WithCode(goerrors.CodeConflict)

// ErrCodeMismatch is returned when the submitted code does not match.
var ErrCodeMismatch = goerrors.New("the code provided is incorrect, please try again", goerrors.CategoryConflict).
	WithTextCode(TextCodeCodeMismatch).
	WithCode(goerrors.CodeConflict)

// ErrAlreadyVerified is returned when verifying an account that is enabled.
var ErrAlreadyVerified = goerrors.New("account is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotVerified is returned when an action that requires a confirmed
// email, setting the password included, is attempted on a disabled account.
var ErrAccountNotVerified = goerrors.New("account email is not verified", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrCooldownActive is returned when a code is requested before the resend
// cooldown elapses.
var ErrCooldownActive = goerrors.New("email verification on cooldown", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeCooldownActive)

// ErrNotificationFailed is returned when the notifier cannot deliver. The
// issued code stays persisted; resends remain cooldown gated.
var ErrNotificationFailed = goerrors.New("email failed to send, try again in a moment", goerrors.CategoryInternal).
	WithTextCode(TextCodeNotificationFailed)

// ErrStoreUnavailable wraps unexpected store failures.
var ErrStoreUnavailable = goerrors.New("user store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// Password hashing sentinels.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// StatusForError maps a domain error to its HTTP status. Token errors are
// always unauthorized, identity mismatch forbidden, dependency failures
// server-side; everything else is a client error.
func StatusForError(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError
	}

	switch rich.TextCode {
	case TextCodeMissingToken, TextCodeTokenMalformed, TextCodeTokenExpired:
		return http.StatusUnauthorized
	case TextCodeUsernameMismatch, TextCodeNotVerified:
		return http.StatusForbidden
	case TextCodeAccountNotFound:
		return http.StatusNotFound
	case TextCodeEmailTaken, TextCodeUsernameTaken, TextCodeCodeExpired,
		TextCodeCodeMismatch, TextCodeAlreadyVerified:
		return http.StatusConflict
	case TextCodeCooldownActive:
		return http.StatusTooManyRequests
	case TextCodeNotificationFailed:
		return http.StatusBadGateway
	case TextCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	}

	switch rich.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the structured body returned for every domain error.
type ErrorResponse struct {
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds the boundary error payload. Plain constructor, no
// builder: the kind comes from the rich error's TextCode.
func NewErrorResponse(err error, path string, now time.Time) ErrorResponse {
	message := "unexpected error"
	kind := "INTERNAL"

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Message != "" {
			message = rich.Message
		}
		if rich.TextCode != "" {
			kind = rich.TextCode
		} else if rich.Category != "" {
			kind = strings.ToUpper(string(rich.Category))
		}
	} else if err != nil {
		message = err.Error()
	}

	return ErrorResponse{
		Message:   message,
		Error:     kind,
		Path:      path,
		Timestamp: now,
	}
}

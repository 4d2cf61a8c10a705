// Package apperr defines the tagged error kinds returned by the service layer.
// The HTTP boundary maps a Kind to a status code; anything untagged is an internal error.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	CredentialsInUse
	InvalidCredentials
	PasswordMismatch
	InvalidRefreshToken
	UserNotFound
	DeviceNotFound
	Unauthenticated
	TokenExpired
	InvalidToken
	TokenRevoked
	DeviceLoggedOut
)

var kindNames = map[Kind]string{
	Internal:            "internal",
	Validation:          "validation",
	CredentialsInUse:    "credentials_in_use",
	InvalidCredentials:  "invalid_credentials",
	PasswordMismatch:    "password_mismatch",
	InvalidRefreshToken: "invalid_refresh_token",
	UserNotFound:        "user_not_found",
	DeviceNotFound:      "device_not_found",
	Unauthenticated:     "unauthenticated",
	TokenExpired:        "token_expired",
	InvalidToken:        "invalid_token",
	TokenRevoked:        "token_revoked",
	DeviceLoggedOut:     "device_logged_out",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation, PasswordMismatch:
		return http.StatusBadRequest
	case CredentialsInUse:
		return http.StatusConflict
	case InvalidCredentials, InvalidRefreshToken,
		Unauthenticated, TokenExpired, InvalidToken, TokenRevoked, DeviceLoggedOut:
		return http.StatusUnauthorized
	case UserNotFound, DeviceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinel values below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Sentinel errors with the caller-facing messages.
var (
	ErrCredentialsInUse    = New(CredentialsInUse, "Credentials already in use")
	ErrInvalidCredentials  = New(InvalidCredentials, "Invalid credentials")
	ErrPasswordMismatch    = New(PasswordMismatch, "Passwords do not match")
	ErrInvalidRefreshToken = New(InvalidRefreshToken, "Invalid refresh token")
	ErrUserNotFound        = New(UserNotFound, "User not found")
	ErrDeviceNotFound      = New(DeviceNotFound, "Device not found")
	ErrUnauthenticated     = New(Unauthenticated, "Authentication required. No token provided.")
	ErrTokenExpired        = New(TokenExpired, "Access token has expired.")
	ErrInvalidToken        = New(InvalidToken, "Invalid token provided.")
	ErrTokenRevoked        = New(TokenRevoked, "Token has been revoked.")
	ErrDeviceLoggedOut     = New(DeviceLoggedOut, "Device has been logged out.")
)

package service

import "errors"

// Error kinds. Handlers map these to HTTP statuses.
var (
	ErrUnauthenticated    = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrAccountInactive    = errors.New("account inactive")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrSecretInvalid      = errors.New("secret invalid")
	ErrSecretExpired      = errors.New("secret expired")
	ErrSecretUsed         = errors.New("secret already used")
	ErrCooldown           = errors.New("too many requests")
)

// Error carries a kind plus a message that is safe to show the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

var (
	errAccountDeactivated = newError(ErrAccountInactive, "Your account has been deactivated. Please contact the administrator.")
	errPasswordTooShort   = newError(ErrValidation, "Password must be at least 8 characters")
	errSamePassword       = newError(ErrValidation, "New password must differ from the current password")
	errCooldown           = newError(ErrCooldown, "Please wait before requesting another code")
)

const minPasswordLength = 8

func validateNewPassword(current, next string) error {
	if len(next) < minPasswordLength {
		return errPasswordTooShort
	}
	if current != "" && current == next {
		return errSamePassword
	}
	return nil
}

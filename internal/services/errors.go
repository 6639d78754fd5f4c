package services

import (
	"errors"

	"github.com/netsync/apiserver/internal/credentials"
)

var (
	ErrDuplicateAccount   = errors.New("email already registered")
	ErrNotFound           = errors.New("account not found")
	ErrCodeExpired        = errors.New("code expired")
	ErrInvalidCode        = errors.New("invalid code")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrWeakPassword is matched by every *credentials.PolicyError.
	ErrWeakPassword = credentials.ErrWeakPassword
)

// InputError describes a rejected request field. It matches ErrInvalidInput.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string { return e.Field + ": " + e.Reason }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

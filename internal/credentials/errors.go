package credentials

import "errors"

var (
	ErrWeakPassword = errors.New("weak password")
	ErrInvalidHash  = errors.New("invalid hash")
)

// PolicyError describes why a password was rejected. It unwraps to
// ErrWeakPassword.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

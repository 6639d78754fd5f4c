// Package access decides whether a bearer token grants a capability.
package access

import (
	"errors"
	"fmt"

	"github.com/netsync/apiserver/internal/token"
	"github.com/netsync/apiserver/types"
)

var (
	// ErrUnauthorized means the token is missing, malformed, forged or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the token is valid but its role is not permitted.
	ErrForbidden = errors.New("forbidden")
)

// RoleSet is the set of roles permitted for a capability.
type RoleSet map[types.Role]struct{}

// Roles builds a RoleSet from the given roles.
func Roles(roles ...types.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is permitted.
func (s RoleSet) Contains(r types.Role) bool {
	_, ok := s[r]
	return ok
}

// TokenVerifier decodes and validates a signed token.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Guard applies role-based access decisions to bearer tokens.
type Guard struct {
	verifier TokenVerifier
}

func NewGuard(verifier TokenVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Authorize verifies tokenString and checks its role against required.
// Verification failures (including expiry) yield ErrUnauthorized; a valid
// token with a role outside required yields ErrForbidden.
func (g *Guard) Authorize(tokenString string, required RoleSet) (*token.Claims, error) {
	claims, err := g.verifier.Verify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !required.Contains(claims.Role) {
		return nil, ErrForbidden
	}
	return claims, nil
}

package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/types"
)

// ErrTokenInvalid covers every verification failure: bad signature,
// malformed payload, unknown role and expiry.
var ErrTokenInvalid = errors.New("invalid token")

// Claims is the signed payload carried by access tokens. Subject is the
// account email.
type Claims struct {
	jwt.RegisteredClaims
	Role     types.Role `json:"role"`
	TenantID string     `json:"tenant_id,omitempty"`
}

// Codec issues and verifies HMAC-signed access tokens. The key and
// algorithm are fixed at construction; changing the key invalidates every
// token issued before.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec from the auth configuration.
func NewCodec(cfg config.AuthConfig, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}

	alg := cfg.JWTAlgorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("token: unsupported signing algorithm %q", alg)
	}

	c := &Codec{
		secret: []byte(cfg.JWTSecret),
		method: method,
		ttl:    cfg.AccessTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject that expires after the configured TTL.
func (c *Codec) Issue(subject string, role types.Role, tenantID string) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("token: subject is required")
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("token: invalid role %q", role)
	}

	now := c.now()
	exp := now.Add(c.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:     role,
		TenantID: tenantID,
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry of tokenString and returns its
// claims. Any failure is reported as ErrTokenInvalid.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrTokenInvalid)
	}
	return claims, nil
}

package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/netsync/apiserver/config"
	"golang.org/x/crypto/argon2"
)

// Params controls Argon2id hashing cost. MemoryKiB is in KiB as required by
// argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the interactive-login baseline (64 MiB, t=3).
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// ParamsFromConfig converts the configured Argon2 settings, falling back to
// defaults for zero values.
func ParamsFromConfig(cfg config.Argon2Config) Params {
	p := DefaultParams()
	if cfg.MemoryKiB > 0 {
		p.MemoryKiB = cfg.MemoryKiB
	}
	if cfg.Iterations > 0 {
		p.Iterations = cfg.Iterations
	}
	if cfg.Parallelism > 0 {
		p.Parallelism = cfg.Parallelism
	}
	if cfg.SaltLength > 0 {
		p.SaltLength = cfg.SaltLength
	}
	if cfg.KeyLength > 0 {
		p.KeyLength = cfg.KeyLength
	}
	return p
}

// Hasher hashes and verifies secrets with Argon2id. It is used for both
// account passwords and verification codes and is safe for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash returns the encoded hash of secret with a fresh random salt, so
// hashing the same secret twice yields different strings.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches encoded. Malformed or out-of-bounds
// hashes never match; Verify does not return errors.
func (h *Hasher) Verify(secret, encoded string) bool {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false
	}
	if !withinBounds(params, h.params) {
		return false
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- bounded by withinBounds.
	)
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// withinBounds refuses hashes whose cost is far above the configured one, so
// a tampered record cannot pin the CPU or exhaust memory.
func withinBounds(got, limits Params) bool {
	if uint64(got.MemoryKiB) > uint64(limits.MemoryKiB)*2 {
		return false
	}
	if uint64(got.Iterations) > uint64(limits.Iterations)*2 {
		return false
	}
	if uint32(got.Parallelism) > uint32(limits.Parallelism)*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}

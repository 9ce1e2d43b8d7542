// Package password hashes and verifies account secrets with bcrypt.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest secret bcrypt accepts, in bytes.
const MaxLength = 72

var (
	// ErrEmptyPassword is returned when asked to hash an empty secret.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrTooLong is returned for secrets longer than MaxLength bytes.
	ErrTooLong = errors.New("password must be at most 72 bytes")
)

// Hasher turns plaintext secrets into one-way hashes and checks them back.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Bcrypt is a Hasher backed by golang.org/x/crypto/bcrypt. The salt is
// embedded in every hash it produces.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. Costs outside bcrypt's accepted range
// fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Cost reports the work factor used for new hashes.
func (b *Bcrypt) Cost() int { return b.cost }

func (b *Bcrypt) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if len(plain) > MaxLength {
		return "", ErrTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plain matches hash. Malformed hashes never match.
func (b *Bcrypt) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

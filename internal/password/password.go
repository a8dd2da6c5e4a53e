// Package password hashes and checks user secrets with bcrypt.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrTooLong is returned by Bcrypt.Hash for inputs over 72 bytes.
var ErrTooLong = bcrypt.ErrPasswordTooLong

// Hasher is the credential hashing collaborator used by the user service.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, digest string) bool
}

// Bcrypt implements Hasher with a fixed cost.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a Bcrypt hasher; out-of-range costs use bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{Cost: cost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (b *Bcrypt) Compare(plain, digest string) bool {
	return Matches([]byte(plain), []byte(digest))
}

// Matches reports whether plain hashes to digest. A malformed digest never matches.
func Matches(plain, digest []byte) bool {
	return bcrypt.CompareHashAndPassword(digest, plain) == nil
}

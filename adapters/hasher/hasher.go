// Package hasher provides bcrypt password hashing.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/pkkmi/andikar-gate/ports"
)

// Bcrypt hashes passwords with bcrypt.
type Bcrypt struct {
	cost int
}

// New creates a bcrypt hasher. Cost 0 selects bcrypt's default.
func New(cost int) Bcrypt {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return Bcrypt{cost: cost}
}

// Hash generates a bcrypt hash of the plaintext.
func (b Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
}

// Compare checks if plaintext matches the hash.
func (b Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

var _ ports.Hasher = Bcrypt{}

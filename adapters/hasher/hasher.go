// Package hasher implements the ports.Hasher seam over bcrypt.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/recordbase/ports"
)

// Bcrypt hashes passwords with bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. Costs outside bcrypt's valid range,
// including zero, fall back to the library default.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Fake stores the plaintext as the digest. Tests only; bcrypt's work
// factor makes real hashing too slow for tight fixture loops.
type Fake struct{}

func (Fake) Hash(plaintext string) ([]byte, error) { return []byte(plaintext), nil }

func (Fake) Compare(hash []byte, plaintext string) bool { return string(hash) == plaintext }

var (
	_ ports.Hasher = (*Bcrypt)(nil)
	_ ports.Hasher = Fake{}
)

package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// missPassword is hashed once per Hasher so that lookups for unknown users spend the same
// bcrypt time as a real comparison.
const missPassword = "truledgr-unknown-user"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int

	missOnce sync.Once
	missHash []byte
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of password suitable for storage.
// Every path that sets a credential must go through Hash.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches the stored hash. A malformed or empty
// hash is a mismatch; Verify never returns an error.
func (h *Hasher) Verify(password, hash string) bool {
	if hash == "" {
		h.VerifyMiss(password)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyMiss burns one bcrypt comparison against a throwaway hash. Login calls it when the
// username does not exist so response time does not reveal which usernames are registered.
func (h *Hasher) VerifyMiss(password string) {
	h.missOnce.Do(func() {
		h.missHash, _ = bcrypt.GenerateFromPassword([]byte(missPassword), h.Cost)
	})
	if len(h.missHash) == 0 {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.missHash, []byte(password))
}

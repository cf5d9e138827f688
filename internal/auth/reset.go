package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const resetTokenBytes = 20

// ResetManager produces single-use password-reset tokens. The raw token is
// handed to the caller exactly once (for delivery); only its SHA-256 hash and
// an absolute expiry are ever persisted.
type ResetManager struct {
	ttl time.Duration

	// overridable clock for tests
	now func() time.Time
}

func NewResetManager(ttl time.Duration) *ResetManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &ResetManager{
		ttl: ttl,
		now: time.Now,
	}
}

func (m *ResetManager) Generate() (raw string, hash string, expiry time.Time, err error) {
	buf := make([]byte, resetTokenBytes)

	_, err = rand.Read(buf)

	if err != nil {
		return
	}

	raw = hex.EncodeToString(buf)
	hash = m.HashToken(raw)
	expiry = m.now().UTC().Add(m.ttl)

	return
}

// HashToken maps a presented raw token to its stored form for lookup.
func (m *ResetManager) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))

	return hex.EncodeToString(sum[:])
}

// Expired reports whether a stored expiry has elapsed.
func (m *ResetManager) Expired(expiry time.Time) bool {
	return m.now().UTC().After(expiry)
}

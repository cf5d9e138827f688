package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShape(t *testing.T) {
	m := NewResetManager(10 * time.Minute)

	raw, hash, expiry, err := m.Generate()
	require.NoError(t, err)

	// 20 random bytes, hex encoded
	assert.Len(t, raw, 40)
	// sha-256, hex encoded
	assert.Len(t, hash, 64)
	assert.NotEqual(t, raw, hash)
	assert.Equal(t, m.HashToken(raw), hash)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiry, time.Minute)
}

func TestGenerateIsUnpredictable(t *testing.T) {
	m := NewResetManager(10 * time.Minute)

	seen := map[string]bool{}

	for i := 0; i < 32; i++ {
		raw, _, _, err := m.Generate()
		require.NoError(t, err)
		require.False(t, seen[raw], "duplicate token generated")
		seen[raw] = true
	}
}

func TestHashTokenIsDeterministic(t *testing.T) {
	m := NewResetManager(10 * time.Minute)

	a := m.HashToken("sometoken")
	b := m.HashToken("sometoken")
	c := m.HashToken("othertoken")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestExpired(t *testing.T) {
	m := NewResetManager(10 * time.Minute)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	assert.False(t, m.Expired(base.Add(time.Second)))
	assert.True(t, m.Expired(base.Add(-time.Second)))

	// boundary: an expiry exactly now has not elapsed yet
	assert.False(t, m.Expired(base))
}

func TestNewResetManagerDefaultTTL(t *testing.T) {
	m := NewResetManager(0)

	_, _, expiry, err := m.Generate()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiry, time.Minute)
}

package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("sekret1")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NotEqual(t, "sekret1", hash)
	assert.True(t, strings.HasPrefix(hash, "$2"), "not a bcrypt hash: %s", hash)

	assert.NoError(t, h.Verify(hash, "sekret1"))
	assert.Error(t, h.Verify(hash, "wrong"))
	assert.Error(t, h.Verify("not-a-hash", "sekret1"))
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("sekret1")
	require.NoError(t, err)
	b, err := h.Hash("sekret1")
	require.NoError(t, err)

	// same input, different salt, different hash
	assert.NotEqual(t, a, b)

	assert.NoError(t, h.Verify(a, "sekret1"))
	assert.NoError(t, h.Verify(b, "sekret1"))
}

func TestNewHasherClampsCost(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{name: "below_min", cost: bcrypt.MinCost - 1, want: bcrypt.DefaultCost},
		{name: "above_max", cost: bcrypt.MaxCost + 1, want: bcrypt.DefaultCost},
		{name: "in_range", cost: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHasher(tt.cost)

			hash, err := h.Hash("sekret1")
			require.NoError(t, err)

			got, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

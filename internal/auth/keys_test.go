package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(key, KeyPrefix))
		assert.Len(t, key, len(KeyPrefix)+48)
		assert.NoError(t, ValidateKeyFormat(key))
		assert.False(t, seen[key], "duplicate key generated")
		seen[key] = true
	}
}

func TestValidateKeyFormat(t *testing.T) {
	valid := KeyPrefix + strings.Repeat("a1", 24)

	tests := []struct {
		name   string
		secret string
		ok     bool
	}{
		{"valid", valid, true},
		{"empty", "", false},
		{"missing prefix", strings.Repeat("a1", 24), false},
		{"wrong prefix", "sk_" + strings.Repeat("a1", 24), false},
		{"too short", KeyPrefix + "abc", false},
		{"too long", valid + "0", false},
		{"uppercase hex", KeyPrefix + strings.Repeat("A1", 24), false},
		{"non hex", KeyPrefix + strings.Repeat("zz", 24), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeyFormat(tt.secret)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformedKey)
			}
		})
	}
}

func TestHashKey(t *testing.T) {
	h1 := HashKey("dcp_abc")
	h2 := HashKey("dcp_abc")
	h3 := HashKey("dcp_abd")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.Equal(t, "dcp_12345678", DisplayPrefix("dcp_1234567890abcdef"))
}

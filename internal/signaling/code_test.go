package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSessionCode(t *testing.T) {
	t.Run("produces valid codes", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code := GenerateSessionCode()
			assert.Regexp(t, `^\d{3}-\d{3}$`, code)
			assert.True(t, ValidateSessionCode(code))
		}
	})
}

func TestValidateSessionCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"482913", true},
		{"482-913", true},
		{"000-000", true},
		{"", false},
		{"12345", false},
		{"1234567", false},
		{"48-2913", false},
		{"482_913", false},
		{"abc-def", false},
		{" 482-913", false},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateSessionCode(tc.code))
		})
	}
}

func TestNewIdentity(t *testing.T) {
	t.Run("identities are unique and non-empty", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewIdentity()
			assert.Len(t, id, identityBytes*2)
			assert.False(t, seen[id], "identity %s generated twice", id)
			seen[id] = true
		}
	})
}

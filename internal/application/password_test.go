package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := CreatePasswordHash("correct horse", DefaultArgon2idParams)
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword(hash, "correct horse"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrInvalidCredentials)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	first, err := CreatePasswordHash("correct horse", DefaultArgon2idParams)
	require.NoError(t, err)
	second, err := CreatePasswordHash("correct horse", DefaultArgon2idParams)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"wrong section count", "$argon2id$v=19$m=65536,t=3,p=2$salt"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, VerifyPassword(tt.hash, "anything"), ErrInvalidPasswordHash)
		})
	}
}

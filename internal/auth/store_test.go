package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestNewStore_RejectsEmptyUsername(t *testing.T) {
	_, err := NewStore([]Credential{{Username: "", PasswordHash: mustHash(t, "x"), Role: "admin"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty username")
}

func TestNewStore_RejectsMalformedHash(t *testing.T) {
	_, err := NewStore([]Credential{{Username: "alice", PasswordHash: "not-a-bcrypt-hash", Role: "admin"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed bcrypt hash")
}

func TestAuthenticate(t *testing.T) {
	store, err := NewStore([]Credential{
		{Username: "admin", PasswordHash: mustHash(t, "admin123"), Role: "admin"},
		{Username: "reader", PasswordHash: mustHash(t, "readonly"), Role: "viewer"},
	})
	require.NoError(t, err)

	role, err := store.Authenticate("admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	role, err = store.Authenticate("reader", "readonly")
	require.NoError(t, err)
	assert.Equal(t, "viewer", role)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	store, err := NewStore([]Credential{
		{Username: "admin", PasswordHash: mustHash(t, "admin123"), Role: "admin"},
	})
	require.NoError(t, err)

	_, err = store.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUserSameError(t *testing.T) {
	store, err := NewStore([]Credential{
		{Username: "admin", PasswordHash: mustHash(t, "admin123"), Role: "admin"},
	})
	require.NoError(t, err)

	_, unknownErr := store.Authenticate("nobody", "admin123")
	_, wrongErr := store.Authenticate("admin", "wrong")

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.Equal(t, wrongErr, unknownErr)
}

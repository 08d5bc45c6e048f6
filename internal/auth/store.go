// Package auth provides the credential store, session token service, and
// bearer-token middleware for the gateway.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Errors returned by the credential store and token service.
var (
	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike; callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrInvalidToken is returned when a token fails signature or claim
	// verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Credential is one entry in the fixed credential store.
type Credential struct {
	Username     string
	PasswordHash string // bcrypt
	Role         string
}

// Store is the read-only in-memory credential store. It is immutable after
// construction; replace it with an external identity provider without
// touching the token service.
type Store struct {
	users map[string]Credential

	// dummyHash is compared when the username is unknown so lookups cost
	// one bcrypt verification either way.
	dummyHash []byte
}

// NewStore builds a store from the configured credentials.
func NewStore(creds []Credential) (*Store, error) {
	users := make(map[string]Credential, len(creds))
	for _, c := range creds {
		if c.Username == "" {
			return nil, errors.New("credential with empty username")
		}
		if c.PasswordHash == "" {
			return nil, errors.New("credential for " + c.Username + " has no password hash")
		}
		if _, err := bcrypt.Cost([]byte(c.PasswordHash)); err != nil {
			return nil, errors.New("credential for " + c.Username + " has a malformed bcrypt hash")
		}
		users[c.Username] = c
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("vdbgate-dummy"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &Store{users: users, dummyHash: dummy}, nil
}

// Authenticate verifies the password against the stored bcrypt hash and
// returns the user's role. Unknown username and wrong password produce the
// same ErrInvalidCredentials.
func (s *Store) Authenticate(username, password string) (string, error) {
	cred, ok := s.users[username]
	if !ok {
		// Burn a comparison so the miss is not observably faster.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return cred.Role, nil
}

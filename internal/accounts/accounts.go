// Package accounts maps credentials to identities. Passwords are only
// ever stored as bcrypt hashes; authentication failures are uniform so
// callers cannot tell a missing user from a wrong password.
package accounts

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidUsername   = errors.New("invalid username")
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrAuthFailed covers both unknown username and wrong password.
	ErrAuthFailed = errors.New("authentication failed")
)

// Identity is an authenticated user. Ledger records are scoped by the
// username.
type Identity struct {
	Username string
}

// Store creates and authenticates accounts.
type Store interface {
	Create(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}

// dummyHash is a valid bcrypt hash compared against on the unknown-user
// path so both failure arms cost a hash verification.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidUsername
	}
	return username, nil
}

package accounts

import (
	"context"
	"errors"
	"fmt"

	"sumal/internal/storage"
)

// SQLiteStore backs accounts with the shared SQLite repository.
type SQLiteStore struct {
	repo *storage.Repository
}

func NewSQLiteStore(repo *storage.Repository) *SQLiteStore {
	return &SQLiteStore{repo: repo}
}

func (s *SQLiteStore) Create(ctx context.Context, username, password string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.CreateAccount(ctx, username, hash); err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return Identity{}, ErrAuthFailed
	}

	hash, err := s.repo.AccountHash(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			checkPassword(dummyHash, password)
		}
		return Identity{}, ErrAuthFailed
	}
	if !checkPassword(hash, password) {
		return Identity{}, ErrAuthFailed
	}
	return Identity{Username: username}, nil
}

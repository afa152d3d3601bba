package accounts

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps accounts in process memory. Dev and test use only.
type MemoryStore struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]string)}
}

func (s *MemoryStore) Create(_ context.Context, username, password string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hashes[username]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.hashes[username] = hash
	return nil
}

func (s *MemoryStore) Authenticate(_ context.Context, username, password string) (Identity, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return Identity{}, ErrAuthFailed
	}

	s.mu.Lock()
	hash, exists := s.hashes[username]
	s.mu.Unlock()

	if !exists {
		checkPassword(dummyHash, password)
		return Identity{}, ErrAuthFailed
	}
	if !checkPassword(hash, password) {
		return Identity{}, ErrAuthFailed
	}
	return Identity{Username: username}, nil
}

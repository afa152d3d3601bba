package accounts

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var fileHeader = []string{"username", "password_hash"}

// FileStore keeps accounts in a CSV file, one row per account under a
// header, created empty when absent. Rows are never updated or removed.
type FileStore struct {
	mu    sync.Mutex
	path  string
	users map[string]string // username -> password hash
}

func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create accounts directory: %w", err)
		}
	}

	s := &FileStore{path: path, users: make(map[string]string)}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) writeHeader() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create accounts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fileHeader); err != nil {
		return fmt.Errorf("write accounts header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush accounts header: %w", err)
	}
	return f.Sync()
}

func (s *FileStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = len(fileHeader)
	if _, err := rd.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read accounts header: %w", err)
	}
	for {
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read accounts row: %w", err)
		}
		s.users[row[0]] = row[1]
	}
	return nil
}

func (s *FileStore) Create(_ context.Context, username, password string) error {
	username, err := normalizeUsername(username)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{username, hash}); err != nil {
		return fmt.Errorf("write account: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush account: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync accounts file: %w", err)
	}

	s.users[username] = hash
	return nil
}

func (s *FileStore) Authenticate(_ context.Context, username, password string) (Identity, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return Identity{}, ErrAuthFailed
	}

	s.mu.Lock()
	hash, ok := s.users[username]
	s.mu.Unlock()

	if !ok {
		checkPassword(dummyHash, password)
		return Identity{}, ErrAuthFailed
	}
	if !checkPassword(hash, password) {
		return Identity{}, ErrAuthFailed
	}
	return Identity{Username: username}, nil
}

package ledger

import (
	"context"
	"fmt"
	"sync"

	"sumal/internal/core"
)

// MemoryStore keeps records in process memory. It backs tests and the
// dev backend; nothing survives a restart.
type MemoryStore struct {
	mu    sync.Mutex
	items []core.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, r core.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *MemoryStore) Records(_ context.Context, userID string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, 0, len(s.items))
	for _, r := range s.items {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

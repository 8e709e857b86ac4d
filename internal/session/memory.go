package session

import (
	"context"
	"sync"

	"github.com/zawrotmc/streamflow/internal/domain"
)

// MemoryStore is an in-memory Store. Sessions are lost on restart.
type MemoryStore struct {
	sessions map[string]*domain.AdminSession
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.AdminSession),
	}
}

func (s *MemoryStore) Create(ctx context.Context) (*domain.AdminSession, error) {
	sess := newSession()

	s.mu.Lock()
	stored := *sess
	s.sessions[sess.ID] = &stored
	s.mu.Unlock()

	return sess, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.AdminSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sess
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

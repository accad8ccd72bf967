package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a development-only implementation.
type InMemoryStore struct {
	mu   sync.RWMutex
	msgs []Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, m Message) (Message, error) {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	return m, nil
}

func (s *InMemoryStore) History(_ context.Context, a, b string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Message{}
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.msgs[i].Between(a, b) {
			out = append(out, s.msgs[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

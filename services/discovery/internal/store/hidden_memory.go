package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryHiddenStore is a development-only in-memory implementation.
type InMemoryHiddenStore struct {
	mu    sync.RWMutex
	items map[string]map[int64]time.Time // user -> movie -> hidden at
}

func NewInMemoryHiddenStore() *InMemoryHiddenStore {
	return &InMemoryHiddenStore{items: make(map[string]map[int64]time.Time)}
}

func (s *InMemoryHiddenStore) Hide(_ context.Context, userID string, movieID int64) (HiddenItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items[userID] == nil {
		s.items[userID] = make(map[int64]time.Time)
	}
	if _, ok := s.items[userID][movieID]; ok {
		return HiddenItem{}, ErrAlreadyHidden
	}
	now := time.Now().UTC()
	s.items[userID][movieID] = now
	return HiddenItem{UserID: userID, MovieID: movieID, CreatedAt: now}, nil
}

func (s *InMemoryHiddenStore) Unhide(_ context.Context, userID string, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items[userID], movieID)
	return nil
}

func (s *InMemoryHiddenStore) List(_ context.Context, userID string) ([]HiddenItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HiddenItem, 0, len(s.items[userID]))
	for id, at := range s.items[userID] {
		out = append(out, HiddenItem{UserID: userID, MovieID: id, CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}

func (s *InMemoryHiddenStore) HiddenMovieIDs(_ context.Context, userID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.items[userID]))
	for id := range s.items[userID] {
		out = append(out, id)
	}
	return out, nil
}

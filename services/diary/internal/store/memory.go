package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type watchKey struct {
	userID  string
	movieID int64
}

// InMemoryStore is a development-only implementation.
type InMemoryStore struct {
	mu        sync.RWMutex
	movies    map[int64]Movie
	logs      map[string]Log
	watchlist map[watchKey]time.Time
	badges    map[string]map[string]time.Time
	now       func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		movies:    make(map[int64]Movie),
		logs:      make(map[string]Log),
		watchlist: make(map[watchKey]time.Time),
		badges:    make(map[string]map[string]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) UpsertMovie(_ context.Context, m Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
	return nil
}

func (s *InMemoryStore) GetMovie(_ context.Context, id int64) (Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return Movie{}, ErrMovieNotFound
	}
	return m, nil
}

func (s *InMemoryStore) CreateLog(_ context.Context, l Log) (Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = uuid.NewString()
	l.CreatedAt = s.now()
	l.Companions = slices.Clone(l.Companions)
	if l.Companions == nil {
		l.Companions = []string{}
	}
	s.logs[l.ID] = l
	return l, nil
}

func (s *InMemoryStore) UpdateLog(_ context.Context, l Log) (Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.logs[l.ID]
	if !ok || old.UserID != l.UserID {
		return Log{}, ErrLogNotFound
	}
	l.MovieID = old.MovieID
	l.CreatedAt = old.CreatedAt
	if l.WatchedAt.IsZero() {
		l.WatchedAt = old.WatchedAt
	}
	l.Companions = slices.Clone(l.Companions)
	if l.Companions == nil {
		l.Companions = []string{}
	}
	s.logs[l.ID] = l
	return l, nil
}

func (s *InMemoryStore) GetLog(_ context.Context, id string) (Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[id]
	if !ok {
		return Log{}, ErrLogNotFound
	}
	return l, nil
}

func (s *InMemoryStore) ListLogs(_ context.Context, userID string) ([]LogWithMovie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []LogWithMovie{}
	for _, l := range s.logs {
		if l.UserID != userID {
			continue
		}
		out = append(out, LogWithMovie{Log: l, Movie: s.movieLocked(l.MovieID)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WatchedAt.Equal(out[j].WatchedAt) {
			return out[i].WatchedAt.After(out[j].WatchedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) movieLocked(id int64) *Movie {
	m, ok := s.movies[id]
	if !ok {
		return nil
	}
	return &m
}

func (s *InMemoryStore) AddToWatchlist(_ context.Context, userID string, movieID int64) (WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := watchKey{userID, movieID}
	if _, ok := s.watchlist[k]; ok {
		return WatchlistEntry{}, ErrAlreadyInWatchlist
	}
	at := s.now()
	s.watchlist[k] = at
	return WatchlistEntry{UserID: userID, MovieID: movieID, AddedAt: at, Movie: s.movieLocked(movieID)}, nil
}

func (s *InMemoryStore) RemoveFromWatchlist(_ context.Context, userID string, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchlist, watchKey{userID, movieID})
	return nil
}

func (s *InMemoryStore) ListWatchlist(_ context.Context, userID string) ([]WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []WatchlistEntry{}
	for k, at := range s.watchlist {
		if k.userID == userID {
			out = append(out, WatchlistEntry{UserID: userID, MovieID: k.movieID, AddedAt: at, Movie: s.movieLocked(k.movieID)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}

func (s *InMemoryStore) UserBadges(_ context.Context, userID string) ([]UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []UserBadge{}
	for code, at := range s.badges[userID] {
		out = append(out, UserBadge{UserID: userID, Code: code, EarnedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemoryStore) AwardBadges(_ context.Context, userID string, codes []string) ([]UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.badges[userID]
	if owned == nil {
		owned = make(map[string]time.Time)
		s.badges[userID] = owned
	}
	out := []UserBadge{}
	at := s.now()
	for _, code := range codes {
		if _, ok := owned[code]; ok {
			continue
		}
		owned[code] = at
		out = append(out, UserBadge{UserID: userID, Code: code, EarnedAt: at})
	}
	return out, nil
}

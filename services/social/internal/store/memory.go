package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogEntry is the slice of a diary log the in-memory store indexes.
type LogEntry struct {
	ID         string
	UserID     string
	MovieID    int64
	Title      string
	PosterPath string
	Rating     *int
	Review     string
	WatchedAt  time.Time
}

type edge struct{ from, to string }

// InMemoryStore is a development-only implementation. In production the logs
// table is written by the diary service; here logs arrive through RecordLog.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	edges    map[edge]time.Time
	logs     []LogEntry // insertion order
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]Profile),
		edges:    make(map[edge]time.Time),
	}
}

// RecordLog indexes a diary log; a log with a known id replaces the old one.
func (s *InMemoryStore) RecordLog(_ context.Context, l LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.logs {
		if l.ID != "" && s.logs[i].ID == l.ID {
			s.logs[i] = l
			return nil
		}
	}
	s.logs = append(s.logs, l)
	return nil
}

func (s *InMemoryStore) TopRated(_ context.Context, userID string, minRating, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []int64{}
	seen := map[int64]bool{}
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		l := s.logs[i]
		if l.UserID != userID || l.Rating == nil || *l.Rating < minRating || seen[l.MovieID] {
			continue
		}
		seen[l.MovieID] = true
		out = append(out, l.MovieID)
	}
	return out, nil
}

func (s *InMemoryStore) CoRaters(_ context.Context, movieIDs []int64, minRating int, excludeUser string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]bool, len(movieIDs))
	for _, id := range movieIDs {
		want[id] = true
	}
	out := []string{}
	for _, l := range s.logs {
		if len(out) >= limit {
			break
		}
		if l.UserID == excludeUser || !want[l.MovieID] || l.Rating == nil || *l.Rating < minRating {
			continue
		}
		out = append(out, l.UserID)
	}
	return out, nil
}

func (s *InMemoryStore) Follow(_ context.Context, follower, following string) error {
	if follower == following {
		return ErrSelfFollow
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := edge{follower, following}
	if _, ok := s.edges[e]; !ok {
		s.edges[e] = time.Now().UTC()
	}
	return nil
}

func (s *InMemoryStore) Unfollow(_ context.Context, follower, following string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, edge{follower, following})
	return nil
}

func (s *InMemoryStore) IsFollowing(_ context.Context, follower, following string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[edge{follower, following}]
	return ok, nil
}

func (s *InMemoryStore) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	return s.neighbours(func(e edge) (string, bool) { return e.to, e.from == userID }), nil
}

func (s *InMemoryStore) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	return s.neighbours(func(e edge) (string, bool) { return e.from, e.to == userID }), nil
}

func (s *InMemoryStore) neighbours(match func(edge) (string, bool)) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for e := range s.edges {
		if id, ok := match(e); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (s *InMemoryStore) Counts(ctx context.Context, userID string) (Counts, error) {
	followers, _ := s.FollowerIDs(ctx, userID)
	following, _ := s.FollowingIDs(ctx, userID)
	return Counts{Followers: len(followers), Following: len(following)}, nil
}

func (s *InMemoryStore) UpsertProfile(_ context.Context, p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) GetProfile(_ context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *InMemoryStore) ProfilesByIDs(_ context.Context, ids []string) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Profile{}
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SampleProfiles(_ context.Context, excludeID string, limit int) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Profile{}
	for id, p := range s.profiles {
		if len(out) >= limit {
			break
		}
		if id != excludeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SearchProfiles(_ context.Context, query string, limit int) ([]Profile, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Profile{}
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.Username), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Activity(_ context.Context, userIDs []string, limit int) ([]ActivityItem, error) {
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []ActivityItem{}
	for _, l := range s.logs {
		if !want[l.UserID] {
			continue
		}
		p := s.profiles[l.UserID]
		out = append(out, ActivityItem{
			LogID:      l.ID,
			UserID:     l.UserID,
			Username:   p.Username,
			AvatarURL:  p.AvatarURL,
			MovieID:    l.MovieID,
			Title:      l.Title,
			PosterPath: l.PosterPath,
			Rating:     l.Rating,
			Review:     l.Review,
			WatchedAt:  l.WatchedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WatchedAt.After(out[j].WatchedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

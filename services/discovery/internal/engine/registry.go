package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/metrics"
)

const (
	DefaultSessionTTL         = 30 * time.Minute
	DefaultMaxSessionsPerUser = 8
)

// Registry owns the open sessions. A session lives from Open (view mount) to
// Close (view unmount) or until it has been idle for longer than the TTL.
// Opening past the per-user cap evicts that user's least recently used session.
type Registry struct {
	cfg        Config
	ttl        time.Duration
	maxPerUser int
	log        *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	opened   map[string]uint64 // session id -> open order
	seq      uint64
}

func NewRegistry(cfg Config, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	maxPerUser := cfg.MaxSessionsPerUser
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxSessionsPerUser
	}
	return &Registry{
		cfg:        cfg,
		ttl:        ttl,
		maxPerUser: maxPerUser,
		log:        cfg.Logger,
		sessions:   make(map[string]*Session),
		opened:     make(map[string]uint64),
	}
}

// Open creates a session owned by userID.
func (r *Registry) Open(userID string) *Session {
	s := NewSession(uuid.NewString(), userID, r.cfg)
	r.mu.Lock()
	evicted := r.evictLocked(userID)
	r.seq++
	r.sessions[s.ID] = s
	r.opened[s.ID] = r.seq
	n := len(r.sessions)
	r.mu.Unlock()

	for _, old := range evicted {
		old.Close()
		r.log.Debug("evicted discovery session", zap.String("user_id", userID), zap.String("session_id", old.ID))
	}
	metrics.DiscoverySessions.Set(float64(n))
	return s
}

// evictLocked removes userID's least recently used sessions until one more fits.
// Ties on last use go to the earliest opened.
func (r *Registry) evictLocked(userID string) []*Session {
	var owned []*Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			owned = append(owned, s)
		}
	}
	var evicted []*Session
	for len(owned) >= r.maxPerUser {
		victim := 0
		for i, s := range owned[1:] {
			v := owned[victim]
			lu, lv := s.LastUsed(), v.LastUsed()
			if lu.Before(lv) || (lu.Equal(lv) && r.opened[s.ID] < r.opened[v.ID]) {
				victim = i + 1
			}
		}
		s := owned[victim]
		delete(r.sessions, s.ID)
		delete(r.opened, s.ID)
		evicted = append(evicted, s)
		owned = append(owned[:victim], owned[victim+1:]...)
	}
	return evicted
}

// Get returns the session only when it belongs to userID.
func (r *Registry) Get(id, userID string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, false
	}
	return s, true
}

// Close removes and closes the session. It reports false when the session is
// unknown or owned by someone else.
func (r *Registry) Close(id, userID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	delete(r.opened, id)
	n := len(r.sessions)
	r.mu.Unlock()

	s.Close()
	metrics.DiscoverySessions.Set(float64(n))
	return true
}

// MarkHidden propagates a newly hidden movie to every open session of userID.
func (r *Registry) MarkHidden(userID string, movieID int64) {
	r.mu.RLock()
	var owned []*Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			owned = append(owned, s)
		}
	}
	r.mu.RUnlock()
	for _, s := range owned {
		s.MarkHidden(movieID)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now-ttl and returns how many.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
			delete(r.opened, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	metrics.DiscoverySessions.Set(float64(n))
	return len(expired)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.log.Info("swept idle discovery sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.opened = make(map[string]uint64)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
	metrics.DiscoverySessions.Set(0)
}

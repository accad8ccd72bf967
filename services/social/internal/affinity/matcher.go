// Package affinity ranks other users by shared taste and resolves the follow
// relationship between two users.
package affinity

import (
	"context"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/metrics"
	"github.com/example/movie-diary/services/social/internal/store"
)

const (
	DefaultK          = 5
	DefaultMinRating  = 8
	DefaultFavorites  = 30
	DefaultWindow     = 200
	DefaultRandomPool = 20
)

// Candidate is one suggested user.
type Candidate struct {
	store.Profile
	MatchCount       int  `json:"match_count"`
	IsRandomFallback bool `json:"is_random_fallback"`
}

// MatcherStore is the read surface the matcher needs.
type MatcherStore interface {
	store.RatingReader
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]store.Profile, error)
	SampleProfiles(ctx context.Context, excludeID string, limit int) ([]store.Profile, error)
}

type MatcherOptions struct {
	K          int
	MinRating  int
	Favorites  int
	Window     int
	RandomPool int
	// Shuffle reorders the backfill pool; nil uses math/rand.
	Shuffle func(n int, swap func(i, j int))
	Logger  *zap.Logger
}

type Matcher struct {
	store MatcherStore
	opts  MatcherOptions
	log   *zap.Logger
}

func NewMatcher(s MatcherStore, opts MatcherOptions) *Matcher {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.MinRating <= 0 {
		opts.MinRating = DefaultMinRating
	}
	if opts.Favorites <= 0 {
		opts.Favorites = DefaultFavorites
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.RandomPool <= 0 {
		opts.RandomPool = DefaultRandomPool
	}
	if opts.Shuffle == nil {
		opts.Shuffle = rand.Shuffle
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{store: s, opts: opts, log: log}
}

type scored struct {
	id    string
	count int
}

// Suggest returns at most K users ranked by how many of userID's favourite
// movies they also rated highly. Store failures read as empty results.
//
// A user with favourites but no co-raters still gets random backfill; only a
// user with no favourites at all gets an empty list.
func (m *Matcher) Suggest(ctx context.Context, userID string) []Candidate {
	favorites, err := m.store.TopRated(ctx, userID, m.opts.MinRating, m.opts.Favorites)
	if err != nil {
		m.log.Warn("affinity: load favourites", zap.String("user_id", userID), zap.Error(err))
		return []Candidate{}
	}
	if len(favorites) == 0 {
		return []Candidate{}
	}

	raters, err := m.store.CoRaters(ctx, favorites, m.opts.MinRating, userID, m.opts.Window)
	if err != nil {
		m.log.Warn("affinity: load co-raters", zap.String("user_id", userID), zap.Error(err))
		raters = nil
	}

	counts := make(map[string]int)
	for _, id := range raters {
		if id != userID {
			counts[id]++
		}
	}
	ranked := make([]scored, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, scored{id: id, count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > m.opts.K {
		ranked = ranked[:m.opts.K]
	}

	followedIDs, err := m.store.FollowingIDs(ctx, userID)
	if err != nil {
		m.log.Warn("affinity: load following", zap.String("user_id", userID), zap.Error(err))
	}
	followed := make(map[string]bool, len(followedIDs))
	for _, id := range followedIDs {
		followed[id] = true
	}

	chosen := make(map[string]bool, m.opts.K)
	matches := make(map[string]int, m.opts.K)
	ids := make([]string, 0, m.opts.K)
	for _, c := range ranked {
		if followed[c.id] {
			continue
		}
		chosen[c.id] = true
		matches[c.id] = c.count
		ids = append(ids, c.id)
	}

	var backfill []store.Profile
	if len(ids) < m.opts.K {
		backfill = m.backfill(ctx, userID, followed, chosen)
	}

	out := make([]Candidate, 0, m.opts.K)
	if len(ids) > 0 {
		profiles, err := m.store.ProfilesByIDs(ctx, ids)
		if err != nil {
			m.log.Warn("affinity: resolve profiles", zap.Error(err))
		}
		byID := make(map[string]store.Profile, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				out = append(out, Candidate{Profile: p, MatchCount: matches[id]})
			}
		}
	}
	taste := len(out)
	for _, p := range backfill {
		if len(out) >= m.opts.K {
			break
		}
		out = append(out, Candidate{Profile: p, IsRandomFallback: true})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchCount > out[j].MatchCount })

	metrics.SuggestionsServed.WithLabelValues("taste").Observe(float64(taste))
	metrics.SuggestionsServed.WithLabelValues("backfill").Observe(float64(len(out) - taste))
	return out
}

func (m *Matcher) backfill(ctx context.Context, userID string, followed, chosen map[string]bool) []store.Profile {
	sample, err := m.store.SampleProfiles(ctx, userID, m.opts.RandomPool)
	if err != nil {
		m.log.Warn("affinity: sample profiles", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	pool := make([]store.Profile, 0, len(sample))
	for _, p := range sample {
		if p.ID == userID || followed[p.ID] || chosen[p.ID] {
			continue
		}
		chosen[p.ID] = true
		pool = append(pool, p)
	}
	m.opts.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool
}

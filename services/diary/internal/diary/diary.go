// Package diary implements the watch log, watchlist and badge workflows.
package diary

import (
	"context"
	"errors"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/services/diary/internal/badges"
	"github.com/example/movie-diary/services/diary/internal/store"
)

const (
	// RuntimeUnlimited and above disables the runtime ceiling.
	RuntimeUnlimited = 240
	// UnknownRuntime stands in for movies without runtime metadata.
	UnknownRuntime = 999
)

var ErrWatchlistEmpty = errors.New("no watchlist movie matches")

type Service struct {
	store store.Store
	pub   *analytics.Publisher
	log   *zap.Logger
	pick  func(n int) int
}

type Options struct {
	Publisher *analytics.Publisher
	Logger    *zap.Logger
	// Pick returns an index in [0,n); nil uses math/rand.
	Pick func(n int) int
}

func New(s store.Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	pick := opts.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return &Service{store: s, pub: opts.Publisher, log: log, pick: pick}
}

// LogResult is a saved log plus the badges it unlocked.
type LogResult struct {
	Log      store.Log      `json:"log"`
	Unlocked []badges.Badge `json:"unlocked_badges"`
}

// CreateLog caches movie, stores the log and evaluates badges.
func (s *Service) CreateLog(ctx context.Context, movie store.Movie, l store.Log) (LogResult, error) {
	s.cacheMovie(ctx, movie)
	l.MovieID = movie.ID
	saved, err := s.store.CreateLog(ctx, l)
	if err != nil {
		return LogResult{}, err
	}
	return s.afterSave(ctx, saved, movie), nil
}

// UpdateLog rewrites an existing log of l.UserID and replaces its companions.
func (s *Service) UpdateLog(ctx context.Context, l store.Log) (LogResult, error) {
	saved, err := s.store.UpdateLog(ctx, l)
	if err != nil {
		return LogResult{}, err
	}
	movie, err := s.store.GetMovie(ctx, saved.MovieID)
	if err != nil && !errors.Is(err, store.ErrMovieNotFound) {
		s.log.Warn("diary: load cached movie", zap.Int64("tmdb_id", saved.MovieID), zap.Error(err))
	}
	if movie.ID == 0 {
		movie.ID = saved.MovieID
	}
	return s.afterSave(ctx, saved, movie), nil
}

func (s *Service) afterSave(ctx context.Context, l store.Log, movie store.Movie) LogResult {
	s.pub.Publish(analytics.SubjectMovieLogged, "diary.logged", l.UserID, map[string]any{
		"log_id":      l.ID,
		"tmdb_id":     l.MovieID,
		"title":       movie.Title,
		"poster_path": movie.PosterPath,
		"rating":      l.Rating,
		"review":      l.Review,
		"watched_at":  l.WatchedAt,
		"is_rewatch":  l.IsRewatch,
	})

	unlocked, err := badges.Check(ctx, s.store, l.UserID)
	if err != nil {
		s.log.Warn("diary: badge check", zap.String("user_id", l.UserID), zap.Error(err))
		unlocked = []badges.Badge{}
	}
	for _, b := range unlocked {
		s.pub.Publish(analytics.SubjectBadgeUnlocked, "diary.badge_unlocked", l.UserID, map[string]any{"code": b.Code})
	}
	return LogResult{Log: l, Unlocked: unlocked}
}

func (s *Service) cacheMovie(ctx context.Context, m store.Movie) {
	if err := s.store.UpsertMovie(ctx, m); err != nil {
		s.log.Warn("diary: cache movie", zap.Int64("tmdb_id", m.ID), zap.Error(err))
	}
}

func (s *Service) Logs(ctx context.Context, userID string) ([]store.LogWithMovie, error) {
	return s.store.ListLogs(ctx, userID)
}

func (s *Service) AddToWatchlist(ctx context.Context, userID string, movie store.Movie) (store.WatchlistEntry, error) {
	s.cacheMovie(ctx, movie)
	e, err := s.store.AddToWatchlist(ctx, userID, movie.ID)
	if err != nil {
		return store.WatchlistEntry{}, err
	}
	s.pub.Publish(analytics.SubjectWatchlistAdded, "diary.watchlist_added", userID, map[string]any{"tmdb_id": movie.ID})
	return e, nil
}

func (s *Service) RemoveFromWatchlist(ctx context.Context, userID string, movieID int64) error {
	return s.store.RemoveFromWatchlist(ctx, userID, movieID)
}

// Watchlist lists entries that fit in maxRuntime minutes. Values <= 0 or
// >= RuntimeUnlimited return everything.
func (s *Service) Watchlist(ctx context.Context, userID string, maxRuntime int) ([]store.WatchlistEntry, error) {
	all, err := s.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	if maxRuntime <= 0 || maxRuntime >= RuntimeUnlimited {
		return all, nil
	}
	out := make([]store.WatchlistEntry, 0, len(all))
	for _, e := range all {
		if runtimeOf(e) <= maxRuntime {
			out = append(out, e)
		}
	}
	return out, nil
}

func runtimeOf(e store.WatchlistEntry) int {
	if e.Movie == nil || e.Movie.Runtime == nil || *e.Movie.Runtime <= 0 {
		return UnknownRuntime
	}
	return *e.Movie.Runtime
}

// PickRandom chooses uniformly among the entries Watchlist would return.
func (s *Service) PickRandom(ctx context.Context, userID string, maxRuntime int) (store.WatchlistEntry, error) {
	list, err := s.Watchlist(ctx, userID, maxRuntime)
	if err != nil {
		return store.WatchlistEntry{}, err
	}
	if len(list) == 0 {
		return store.WatchlistEntry{}, ErrWatchlistEmpty
	}
	return list[s.pick(len(list))], nil
}

func (s *Service) Badges(ctx context.Context, userID string) ([]badges.Status, error) {
	return badges.StatusFor(ctx, s.store, userID)
}

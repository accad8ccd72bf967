// Package store persists watch logs, the watchlist, the movie cache and badges.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyInWatchlist = errors.New("movie already in watchlist")
	ErrLogNotFound        = errors.New("log not found")
	ErrMovieNotFound      = errors.New("movie not cached")
)

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// Movie is the local snapshot of a TMDB title.
type Movie struct {
	ID                  int64        `json:"tmdb_id"`
	Title               string       `json:"title"`
	PosterPath          string       `json:"poster_path,omitempty"`
	BackdropPath        string       `json:"backdrop_path,omitempty"`
	ReleaseDate         string       `json:"release_date,omitempty"`
	Runtime             *int         `json:"runtime,omitempty"`
	Genres              []Genre      `json:"genres"`
	ProductionCountries []string     `json:"production_countries"`
	VoteAverage         float64      `json:"vote_average"`
	Cast                []CastMember `json:"cast"`
}

type Log struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	MovieID          int64     `json:"tmdb_id"`
	Rating           *int      `json:"rating,omitempty"`
	Review           string    `json:"review,omitempty"`
	WatchedAt        time.Time `json:"watched_at"`
	IsRewatch        bool      `json:"is_rewatch"`
	CustomPosterPath string    `json:"custom_poster_path,omitempty"`
	Companions       []string  `json:"companions"`
	CreatedAt        time.Time `json:"created_at"`
}

// LogWithMovie joins a log with its cached movie; Movie is nil when the cache
// has no row for it.
type LogWithMovie struct {
	Log
	Movie *Movie `json:"movie,omitempty"`
}

type WatchlistEntry struct {
	UserID  string    `json:"user_id"`
	MovieID int64     `json:"tmdb_id"`
	AddedAt time.Time `json:"added_at"`
	Movie   *Movie    `json:"movie,omitempty"`
}

type UserBadge struct {
	UserID   string    `json:"user_id"`
	Code     string    `json:"code"`
	EarnedAt time.Time `json:"earned_at"`
}

type MovieStore interface {
	UpsertMovie(ctx context.Context, m Movie) error
	GetMovie(ctx context.Context, id int64) (Movie, error)
}

type LogStore interface {
	CreateLog(ctx context.Context, l Log) (Log, error)
	// UpdateLog rewrites a log owned by l.UserID and replaces its companions.
	// A zero WatchedAt keeps the stored date.
	UpdateLog(ctx context.Context, l Log) (Log, error)
	GetLog(ctx context.Context, id string) (Log, error)
	// ListLogs returns the user's logs newest first.
	ListLogs(ctx context.Context, userID string) ([]LogWithMovie, error)
}

type WatchlistStore interface {
	AddToWatchlist(ctx context.Context, userID string, movieID int64) (WatchlistEntry, error)
	RemoveFromWatchlist(ctx context.Context, userID string, movieID int64) error
	// ListWatchlist returns entries newest first.
	ListWatchlist(ctx context.Context, userID string) ([]WatchlistEntry, error)
}

type BadgeStore interface {
	UserBadges(ctx context.Context, userID string) ([]UserBadge, error)
	// AwardBadges records codes not yet owned and returns only the new ones.
	AwardBadges(ctx context.Context, userID string, codes []string) ([]UserBadge, error)
}

type Store interface {
	MovieStore
	LogStore
	WatchlistStore
	BadgeStore
}

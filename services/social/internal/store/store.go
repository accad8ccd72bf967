// Package store holds the social graph, profiles and the rating reads the
// affinity matcher needs.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSelfFollow      = errors.New("cannot follow yourself")
	ErrProfileNotFound = errors.New("profile not found")
)

type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Counts is the size of a user's network.
type Counts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// ActivityItem is one diary entry in the friends feed.
type ActivityItem struct {
	LogID      string    `json:"log_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	MovieID    int64     `json:"tmdb_id"`
	Title      string    `json:"title"`
	PosterPath string    `json:"poster_path,omitempty"`
	Rating     *int      `json:"rating,omitempty"`
	Review     string    `json:"review,omitempty"`
	WatchedAt  time.Time `json:"watched_at"`
}

// RatingReader exposes the high-rating reads used for taste matching.
type RatingReader interface {
	// TopRated returns up to limit movie ids the user rated at least minRating.
	TopRated(ctx context.Context, userID string, minRating, limit int) ([]int64, error)
	// CoRaters returns one user id per matching log row, excluding excludeUser,
	// capped at limit rows.
	CoRaters(ctx context.Context, movieIDs []int64, minRating int, excludeUser string, limit int) ([]string, error)
}

// Graph is the follower -> following edge set.
type Graph interface {
	Follow(ctx context.Context, follower, following string) error
	Unfollow(ctx context.Context, follower, following string) error
	IsFollowing(ctx context.Context, follower, following string) (bool, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	Counts(ctx context.Context, userID string) (Counts, error)
}

type ProfileStore interface {
	UpsertProfile(ctx context.Context, p Profile) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error)
	// SampleProfiles returns up to limit profiles other than excludeID, in no
	// particular order.
	SampleProfiles(ctx context.Context, excludeID string, limit int) ([]Profile, error)
	// SearchProfiles matches username case-insensitively by substring.
	SearchProfiles(ctx context.Context, query string, limit int) ([]Profile, error)
}

type FeedReader interface {
	// Activity returns the latest logs of userIDs, newest first.
	Activity(ctx context.Context, userIDs []string, limit int) ([]ActivityItem, error)
}

// Store is everything the social service persists or reads.
type Store interface {
	RatingReader
	Graph
	ProfileStore
	FeedReader
}

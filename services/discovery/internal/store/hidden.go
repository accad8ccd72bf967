// Package store persists the movies a user has hidden from discovery.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyHidden = errors.New("movie already hidden")

type HiddenItem struct {
	UserID    string    `json:"user_id"`
	MovieID   int64     `json:"tmdb_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HiddenStore defines the contract for hidden item persistence.
type HiddenStore interface {
	Hide(ctx context.Context, userID string, movieID int64) (HiddenItem, error)
	Unhide(ctx context.Context, userID string, movieID int64) error
	List(ctx context.Context, userID string) ([]HiddenItem, error)
	HiddenMovieIDs(ctx context.Context, userID string) ([]int64, error)
}

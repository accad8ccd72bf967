// Package graph implements follow-graph operations on top of the social store.
package graph

import (
	"context"
	"strings"

	"github.com/example/movie-diary/services/social/internal/store"
)

const (
	FeedLimit   = 20
	SearchLimit = 10
)

type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

// ToggleFollow follows target when the edge is absent and unfollows it when
// present. It reports whether me follows target afterwards.
func (s *Service) ToggleFollow(ctx context.Context, me, target string) (bool, error) {
	if me == target {
		return false, store.ErrSelfFollow
	}
	following, err := s.store.IsFollowing(ctx, me, target)
	if err != nil {
		return false, err
	}
	if following {
		return false, s.store.Unfollow(ctx, me, target)
	}
	if _, err := s.store.GetProfile(ctx, target); err != nil {
		return false, err
	}
	return true, s.store.Follow(ctx, me, target)
}

func (s *Service) Counts(ctx context.Context, userID string) (store.Counts, error) {
	return s.store.Counts(ctx, userID)
}

func (s *Service) Followers(ctx context.Context, userID string) ([]store.Profile, error) {
	ids, err := s.store.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids)
}

func (s *Service) Following(ctx context.Context, userID string) ([]store.Profile, error) {
	ids, err := s.store.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids)
}

func (s *Service) profiles(ctx context.Context, ids []string) ([]store.Profile, error) {
	if len(ids) == 0 {
		return []store.Profile{}, nil
	}
	return s.store.ProfilesByIDs(ctx, ids)
}

// FriendsActivity returns the latest logs of everyone userID follows, newest first.
func (s *Service) FriendsActivity(ctx context.Context, userID string) ([]store.ActivityItem, error) {
	ids, err := s.store.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []store.ActivityItem{}, nil
	}
	return s.store.Activity(ctx, ids, FeedLimit)
}

func (s *Service) Search(ctx context.Context, query string) ([]store.Profile, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []store.Profile{}, nil
	}
	return s.store.SearchProfiles(ctx, q, SearchLimit)
}

package affinity

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Relationship describes how the viewer relates to another user.
type Relationship struct {
	IsMe        bool `json:"is_me"`
	IsFollowing bool `json:"is_following"`
	IsFollower  bool `json:"is_follower"`
	IsFriend    bool `json:"is_friend"`
}

type EdgeChecker interface {
	IsFollowing(ctx context.Context, follower, following string) (bool, error)
}

type Resolver struct {
	edges EdgeChecker
	log   *zap.Logger
}

func NewResolver(edges EdgeChecker, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{edges: edges, log: log}
}

// Status is recomputed on every call. A failed edge lookup reads as false.
func (r *Resolver) Status(ctx context.Context, me, target string) Relationship {
	if me == target {
		return Relationship{IsMe: true}
	}

	var (
		following, follower bool
		g                   errgroup.Group
	)
	g.Go(func() error {
		following = r.check(ctx, me, target)
		return nil
	})
	g.Go(func() error {
		follower = r.check(ctx, target, me)
		return nil
	})
	g.Wait()

	return Relationship{
		IsFollowing: following,
		IsFollower:  follower,
		IsFriend:    following && follower,
	}
}

func (r *Resolver) check(ctx context.Context, from, to string) bool {
	ok, err := r.edges.IsFollowing(ctx, from, to)
	if err != nil {
		r.log.Warn("relationship check failed", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return false
	}
	return ok
}

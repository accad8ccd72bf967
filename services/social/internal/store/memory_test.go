package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func rating(n int) *int { return &n }

func TestInMemory_TopRatedAndCoRaters(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.RecordLog(ctx, LogEntry{ID: "1", UserID: "me", MovieID: 10, Rating: rating(9)})
	_ = s.RecordLog(ctx, LogEntry{ID: "2", UserID: "me", MovieID: 11, Rating: rating(7)})
	_ = s.RecordLog(ctx, LogEntry{ID: "3", UserID: "me", MovieID: 12})
	_ = s.RecordLog(ctx, LogEntry{ID: "4", UserID: "ana", MovieID: 10, Rating: rating(8)})
	_ = s.RecordLog(ctx, LogEntry{ID: "5", UserID: "bob", MovieID: 10, Rating: rating(5)})

	top, _ := s.TopRated(ctx, "me", 8, 30)
	if len(top) != 1 || top[0] != 10 {
		t.Fatalf("unexpected favourites: %v", top)
	}

	co, _ := s.CoRaters(ctx, top, 8, "me", 200)
	if len(co) != 1 || co[0] != "ana" {
		t.Fatalf("unexpected co-raters: %v", co)
	}
}

func TestInMemory_RecordLogReplacesByID(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.RecordLog(ctx, LogEntry{ID: "1", UserID: "me", MovieID: 10, Rating: rating(4)})
	_ = s.RecordLog(ctx, LogEntry{ID: "1", UserID: "me", MovieID: 10, Rating: rating(10)})

	top, _ := s.TopRated(ctx, "me", 8, 30)
	if len(top) != 1 {
		t.Fatalf("expected updated log to count, got %v", top)
	}
}

func TestInMemory_FollowGraph(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Follow(ctx, "a", "a"); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
	_ = s.Follow(ctx, "a", "b")
	_ = s.Follow(ctx, "a", "b")
	_ = s.Follow(ctx, "c", "b")

	c, _ := s.Counts(ctx, "b")
	if c.Followers != 2 || c.Following != 0 {
		t.Fatalf("unexpected counts: %+v", c)
	}
	ids, _ := s.FollowerIDs(ctx, "b")
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Fatalf("unexpected followers: %v", ids)
	}

	_ = s.Unfollow(ctx, "a", "b")
	if ok, _ := s.IsFollowing(ctx, "a", "b"); ok {
		t.Fatal("expected edge removed")
	}
}

func TestInMemory_SearchProfiles(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"CineFan", "cinephile", "Director", "cine_club"} {
		_, _ = s.UpsertProfile(ctx, Profile{ID: name, Username: name})
	}

	got, _ := s.SearchProfiles(ctx, "CINE", 2)
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
	got, _ = s.SearchProfiles(ctx, "rect", 10)
	if len(got) != 1 || got[0].Username != "Director" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestInMemory_ActivityNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()
	_, _ = s.UpsertProfile(ctx, Profile{ID: "f1", Username: "friend"})
	_ = s.RecordLog(ctx, LogEntry{ID: "old", UserID: "f1", MovieID: 1, WatchedAt: now.Add(-time.Hour)})
	_ = s.RecordLog(ctx, LogEntry{ID: "new", UserID: "f1", MovieID: 2, WatchedAt: now})
	_ = s.RecordLog(ctx, LogEntry{ID: "x", UserID: "stranger", MovieID: 3, WatchedAt: now})

	items, _ := s.Activity(ctx, []string{"f1"}, 20)
	if len(items) != 2 || items[0].LogID != "new" || items[0].Username != "friend" {
		t.Fatalf("unexpected feed: %+v", items)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escape: %q", got)
	}
}

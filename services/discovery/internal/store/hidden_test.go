package store

import (
	"context"
	"errors"
	"testing"
)

var (
	_ HiddenStore = (*InMemoryHiddenStore)(nil)
	_ HiddenStore = (*PostgresHiddenStore)(nil)
)

func TestInMemoryHidden_DuplicateRejected(t *testing.T) {
	s := NewInMemoryHiddenStore()
	ctx := context.Background()

	if _, err := s.Hide(ctx, "u1", 550); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if _, err := s.Hide(ctx, "u1", 550); !errors.Is(err, ErrAlreadyHidden) {
		t.Fatalf("expected ErrAlreadyHidden, got %v", err)
	}
	if _, err := s.Hide(ctx, "u2", 550); err != nil {
		t.Fatalf("other user should be able to hide the same movie: %v", err)
	}
}

func TestInMemoryHidden_ListAndUnhide(t *testing.T) {
	s := NewInMemoryHiddenStore()
	ctx := context.Background()
	_, _ = s.Hide(ctx, "u1", 1)
	_, _ = s.Hide(ctx, "u1", 2)

	ids, _ := s.HiddenMovieIDs(ctx, "u1")
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	if err := s.Unhide(ctx, "u1", 1); err != nil {
		t.Fatal(err)
	}
	items, _ := s.List(ctx, "u1")
	if len(items) != 1 || items[0].MovieID != 2 {
		t.Fatalf("unexpected items: %+v", items)
	}

	empty, _ := s.List(ctx, "nobody")
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}
}

func TestInMemoryHidden_UnhideUnknownIsNoop(t *testing.T) {
	s := NewInMemoryHiddenStore()
	if err := s.Unhide(context.Background(), "ghost", 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package diary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/movie-diary/services/diary/internal/badges"
	"github.com/example/movie-diary/services/diary/internal/store"
)

func minutes(n int) *int { return &n }

func movie(id int64, runtime *int) store.Movie {
	return store.Movie{ID: id, Title: "Movie", Runtime: runtime}
}

func TestCreateLog_CachesMovieAndUnlocksNewbie(t *testing.T) {
	s := store.NewInMemoryStore()
	svc := New(s, Options{})
	ctx := context.Background()

	res, err := svc.CreateLog(ctx, store.Movie{ID: 603, Title: "The Matrix", ProductionCountries: []string{"US"}},
		store.Log{UserID: "me", WatchedAt: time.Now(), Companions: []string{"ana"}})
	require.NoError(t, err)
	assert.Equal(t, int64(603), res.Log.MovieID)
	assert.Equal(t, []string{"ana"}, res.Log.Companions)
	require.Len(t, res.Unlocked, 1)
	assert.Equal(t, badges.Newbie, res.Unlocked[0].Code)

	cached, err := s.GetMovie(ctx, 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", cached.Title)

	logs, err := svc.Logs(ctx, "me")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Movie)
}

func TestUpdateLog_ReplacesCompanionsAndChecksOwner(t *testing.T) {
	s := store.NewInMemoryStore()
	svc := New(s, Options{})
	ctx := context.Background()
	res, err := svc.CreateLog(ctx, movie(1, nil), store.Log{UserID: "me", Companions: []string{"ana", "bob"}})
	require.NoError(t, err)

	rating := 9
	upd, err := svc.UpdateLog(ctx, store.Log{ID: res.Log.ID, UserID: "me", Rating: &rating, Companions: []string{"carla"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"carla"}, upd.Log.Companions)
	assert.Equal(t, int64(1), upd.Log.MovieID)
	assert.Empty(t, upd.Unlocked)

	_, err = svc.UpdateLog(ctx, store.Log{ID: res.Log.ID, UserID: "intruder"})
	assert.ErrorIs(t, err, store.ErrLogNotFound)
}

func TestAddToWatchlist_Duplicate(t *testing.T) {
	svc := New(store.NewInMemoryStore(), Options{})
	ctx := context.Background()

	_, err := svc.AddToWatchlist(ctx, "me", movie(1, minutes(90)))
	require.NoError(t, err)
	_, err = svc.AddToWatchlist(ctx, "me", movie(1, minutes(90)))
	assert.True(t, errors.Is(err, store.ErrAlreadyInWatchlist))

	_, err = svc.AddToWatchlist(ctx, "other", movie(1, minutes(90)))
	assert.NoError(t, err)
}

func TestWatchlist_RuntimeCeiling(t *testing.T) {
	svc := New(store.NewInMemoryStore(), Options{})
	ctx := context.Background()
	for _, m := range []store.Movie{movie(1, minutes(90)), movie(2, minutes(150)), movie(3, nil)} {
		_, err := svc.AddToWatchlist(ctx, "me", m)
		require.NoError(t, err)
	}

	ids := func(es []store.WatchlistEntry) []int64 {
		out := []int64{}
		for _, e := range es {
			out = append(out, e.MovieID)
		}
		return out
	}

	short, err := svc.Watchlist(ctx, "me", 120)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(short))

	all, err := svc.Watchlist(ctx, "me", RuntimeUnlimited)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := svc.Watchlist(ctx, "me", 60)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPickRandom(t *testing.T) {
	var seen int
	svc := New(store.NewInMemoryStore(), Options{Pick: func(n int) int { seen = n; return n - 1 }})
	ctx := context.Background()

	_, err := svc.PickRandom(ctx, "me", 0)
	assert.ErrorIs(t, err, ErrWatchlistEmpty)

	for _, m := range []store.Movie{movie(1, minutes(90)), movie(2, minutes(100)), movie(3, minutes(200))} {
		_, err := svc.AddToWatchlist(ctx, "me", m)
		require.NoError(t, err)
	}
	got, err := svc.PickRandom(ctx, "me", 120)
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Contains(t, []int64{1, 2}, got.MovieID)
}

func TestRemoveFromWatchlist(t *testing.T) {
	svc := New(store.NewInMemoryStore(), Options{})
	ctx := context.Background()
	_, err := svc.AddToWatchlist(ctx, "me", movie(7, nil))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveFromWatchlist(ctx, "me", 7))

	list, err := svc.Watchlist(ctx, "me", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBadges_StatusAfterTenLogs(t *testing.T) {
	svc := New(store.NewInMemoryStore(), Options{})
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := svc.CreateLog(ctx, movie(int64(i+1), nil), store.Log{UserID: "me", WatchedAt: base.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	st, err := svc.Badges(ctx, "me")
	require.NoError(t, err)
	unlocked := map[string]bool{}
	for _, b := range st {
		unlocked[b.Code] = b.Unlocked
	}
	assert.True(t, unlocked[badges.Newbie])
	assert.True(t, unlocked[badges.Fan])
	assert.False(t, unlocked[badges.Marathon])
}

package badges

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/movie-diary/services/diary/internal/store"
)

var day = time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)

func logs(n int, at func(i int) time.Time) []store.LogWithMovie {
	out := make([]store.LogWithMovie, n)
	for i := range out {
		out[i] = store.LogWithMovie{Log: store.Log{ID: strconv.Itoa(i), MovieID: int64(i + 1), WatchedAt: at(i)}}
	}
	return out
}

func distinctDays(i int) time.Time { return day.AddDate(0, 0, i) }

func TestEarned_Counts(t *testing.T) {
	assert.Empty(t, Earned(nil))
	assert.Equal(t, []string{Newbie}, Earned(logs(1, distinctDays)))
	assert.Equal(t, []string{Newbie, Fan}, Earned(logs(10, distinctDays)))
}

func TestEarned_Critic(t *testing.T) {
	ls := logs(3, distinctDays)
	ls[0].Review = "Una obra maestra absoluta"
	ls[1].Review = "Muy buena, la recomiendo"
	ls[2].Review = "corta"
	assert.NotContains(t, Earned(ls), Critic)

	ls[2].Review = "Demasiado larga pero vale la pena"
	assert.Contains(t, Earned(ls), Critic)
}

func TestEarned_Marathon(t *testing.T) {
	sameDay := func(i int) time.Time { return day.Add(time.Duration(i) * time.Hour) }
	assert.Contains(t, Earned(logs(3, sameDay)), Marathon)
	assert.NotContains(t, Earned(logs(3, distinctDays)), Marathon)
}

func TestEarned_Globetrotter(t *testing.T) {
	ls := logs(3, distinctDays)
	ls[0].Movie = &store.Movie{ProductionCountries: []string{"US", "GB"}}
	ls[1].Movie = &store.Movie{ProductionCountries: []string{"mx", "US"}}
	assert.NotContains(t, Earned(ls), Globetrotter)

	ls[2].Movie = &store.Movie{ProductionCountries: []string{"JP", "FR"}}
	assert.Contains(t, Earned(ls), Globetrotter)
}

func TestCheck_OnlyReturnsNewBadges(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	_, err := s.CreateLog(ctx, store.Log{UserID: "me", MovieID: 1, WatchedAt: day})
	require.NoError(t, err)

	got, err := Check(ctx, s, "me")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Newbie, got[0].Code)

	got, err = Check(ctx, s, "me")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatusFor(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	_, err := s.AwardBadges(ctx, "me", []string{Fan})
	require.NoError(t, err)

	st, err := StatusFor(ctx, s, "me")
	require.NoError(t, err)
	require.Len(t, st, len(Catalog))
	for _, b := range st {
		assert.Equal(t, b.Code == Fan, b.Unlocked, b.Code)
		assert.Equal(t, b.Code == Fan, b.EarnedAt != nil, b.Code)
	}
}

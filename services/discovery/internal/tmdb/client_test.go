package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Provider = (*Client)(nil)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, ReadToken: "tok"})
}

func TestDiscover_SendsParamsAndDefaults(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover/movie", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":603,"title":"Matrix","release_date":"1999-03-31"}]}`))
	})

	params := url.Values{}
	params.Set("with_genres", "35")
	params.Set("page", "2")
	movies, err := c.Discover(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, int64(603), movies[0].ID)
	assert.Equal(t, "1999", movies[0].Year())

	assert.Equal(t, "35", got.Get("with_genres"))
	assert.Equal(t, "2", got.Get("page"))
	assert.Equal(t, "false", got.Get("include_adult"))
	assert.Equal(t, DefaultLanguage, got.Get("language"))
}

func TestSearchMovies_FirstPageOnly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "alien", r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"results":null}`))
	})

	movies, err := c.SearchMovies(context.Background(), "alien")
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)
}

func TestGetMovie_AppendsSubResources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/27205", r.URL.Path)
		assert.Equal(t, "credits,watch/providers,keywords", r.URL.Query().Get("append_to_response"))
		_, _ = w.Write([]byte(`{
			"id":27205,"title":"Inception","runtime":148,
			"production_countries":[{"iso_3166_1":"US","name":"United States of America"}],
			"credits":{"cast":[{"id":6193,"name":"Leonardo DiCaprio","character":"Cobb"}]},
			"watch/providers":{"results":{"MX":{"flatrate":[{"provider_id":8,"provider_name":"Netflix"}]}}}
		}`))
	})

	m, err := c.GetMovie(context.Background(), 27205)
	require.NoError(t, err)
	require.NotNil(t, m.Runtime)
	assert.Equal(t, 148, *m.Runtime)
	assert.Len(t, m.ProductionCountries, 1)
	require.Len(t, m.Credits.Cast, 1)
	assert.Equal(t, "Cobb", m.Credits.Cast[0].Character)
	assert.Equal(t, 8, m.WatchProviders.Results["MX"].Flatrate[0].ProviderID)
}

func TestGetMovie_RejectsZeroID(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.GetMovie(context.Background(), 0)
	require.Error(t, err)
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_message":"not found"}`))
	})

	_, err := c.Trending(context.Background(), "week", 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestTrending_NormalizesWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trending/movie/week", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	_, err := c.Trending(context.Background(), "month", 0)
	require.NoError(t, err)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 15; i++ {
		_, _ = c.Recommendations(context.Background(), 1, 1)
	}
	assert.Equal(t, int32(10), calls.Load(), "breaker should stop forwarding after tripping")
}

func TestBreakerIgnoresAbandonedRequests(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
		_, _ = w.Write([]byte(`{"results":[{"id":1,"title":"Heat"}]}`))
	})

	for i := 0; i < 12; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := c.Discover(ctx, nil)
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Discover(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	}

	slow.Store(false)
	movies, err := c.Discover(context.Background(), nil)
	require.NoError(t, err, "cancelled fetches must not open the breaker")
	assert.Len(t, movies, 1)
}

func TestBreakerIgnoresLimiterDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(srv.Close)
	c := New(Options{BaseURL: srv.URL, RPS: 0.1})

	// The burst token goes first; later waits would outlive the deadline.
	_, err := c.Discover(context.Background(), nil)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := c.Discover(ctx, nil)
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, PlaceholderImage, ImageURL("", "w500"))
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/abc.jpg", ImageURL("/abc.jpg", "w500"))
}

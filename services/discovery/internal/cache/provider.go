package cache

import (
	"context"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/example/movie-diary/services/discovery/internal/tmdb"
)

// Provider serves tmdb.Provider reads from a Cache, falling through to next
// on a miss. Errors are never cached.
type Provider struct {
	next  tmdb.Provider
	cache Cache
	log   *zap.Logger
}

var _ tmdb.Provider = (*Provider)(nil)

func NewProvider(next tmdb.Provider, c Cache, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{next: next, cache: c, log: log}
}

func (p *Provider) SearchMovies(ctx context.Context, query string) ([]tmdb.Movie, error) {
	return cached(ctx, p, "search:"+query, func() ([]tmdb.Movie, error) {
		return p.next.SearchMovies(ctx, query)
	})
}

func (p *Provider) GetMovie(ctx context.Context, id int64) (*tmdb.MovieDetail, error) {
	return cached(ctx, p, "movie:"+strconv.FormatInt(id, 10), func() (*tmdb.MovieDetail, error) {
		return p.next.GetMovie(ctx, id)
	})
}

func (p *Provider) Trending(ctx context.Context, window string, page int) ([]tmdb.Movie, error) {
	key := "trending:" + window + ":" + strconv.Itoa(page)
	return cached(ctx, p, key, func() ([]tmdb.Movie, error) {
		return p.next.Trending(ctx, window, page)
	})
}

// Discover keys on the encoded params; url.Values.Encode sorts by key.
func (p *Provider) Discover(ctx context.Context, params url.Values) ([]tmdb.Movie, error) {
	return cached(ctx, p, "discover:"+params.Encode(), func() ([]tmdb.Movie, error) {
		return p.next.Discover(ctx, params)
	})
}

func (p *Provider) Recommendations(ctx context.Context, id int64, page int) ([]tmdb.Movie, error) {
	key := "recommendations:" + strconv.FormatInt(id, 10) + ":" + strconv.Itoa(page)
	return cached(ctx, p, key, func() ([]tmdb.Movie, error) {
		return p.next.Recommendations(ctx, id, page)
	})
}

func (p *Provider) Images(ctx context.Context, id int64) (*tmdb.Images, error) {
	return cached(ctx, p, "images:"+strconv.FormatInt(id, 10), func() (*tmdb.Images, error) {
		return p.next.Images(ctx, id)
	})
}

func cached[T any](ctx context.Context, p *Provider, key string, load func() (T, error)) (T, error) {
	if b, ok := p.cache.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		p.log.Warn("dropping undecodable cache entry", zap.String("key", key))
		_ = p.cache.Delete(ctx, key)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		p.cache.Set(ctx, key, b)
	}
	return v, nil
}

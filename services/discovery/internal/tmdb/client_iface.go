package tmdb

import (
	"context"
	"net/url"
)

// Provider is the port for fetching movie metadata from TMDB.
type Provider interface {
	SearchMovies(ctx context.Context, query string) ([]Movie, error)
	GetMovie(ctx context.Context, id int64) (*MovieDetail, error)
	Trending(ctx context.Context, window string, page int) ([]Movie, error)
	Discover(ctx context.Context, params url.Values) ([]Movie, error)
	Recommendations(ctx context.Context, id int64, page int) ([]Movie, error)
	Images(ctx context.Context, id int64) (*Images, error)
}

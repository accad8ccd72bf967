package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/movie-diary/internal/platform/metrics"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "es-MX"
	breakerName     = "tmdb-api"
)

// StatusError is a non-200 answer from TMDB.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: status %d body=%q", e.Code, e.Body)
}

// callerError marks a request abandoned by its own context, so TMDB was not at fault.
type callerError struct{ err error }

func (e *callerError) Error() string { return e.err.Error() }
func (e *callerError) Unwrap() error { return e.err }

type Options struct {
	BaseURL    string
	ReadToken  string
	Language   string
	RPS        float64 // 0 disables client-side throttling
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL  string
	token    string
	language string
	http     *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[[]byte]
	log      *zap.Logger
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.ReadToken,
		language: opts.Language,
		http:     opts.HTTPClient,
		log:      opts.Logger,
	}
	if opts.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), int(opts.RPS)+1)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// Client errors and abandoned requests are the caller's fault, not an outage.
		IsSuccessful: func(err error) bool {
			var ce *callerError
			if errors.As(err, &ce) {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500 && se.Code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Info("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return c
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// SearchMovies runs a title search; only the first result page is requested.
func (c *Client) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", "1")
	return c.list(ctx, "search", "/search/movie", q)
}

// GetMovie returns a movie with credits, watch providers and keywords.
func (c *Client) GetMovie(ctx context.Context, id int64) (*MovieDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("tmdb: movie id required")
	}
	q := url.Values{}
	q.Set("append_to_response", "credits,watch/providers,keywords")
	var out MovieDetail
	if err := c.getJSON(ctx, "movie", "/movie/"+strconv.FormatInt(id, 10), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trending returns trending movies for window ("day" or "week").
func (c *Client) Trending(ctx context.Context, window string, page int) ([]Movie, error) {
	if window != "day" {
		window = "week"
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	return c.list(ctx, "trending", "/trending/movie/"+window, q)
}

// Discover queries /discover/movie. params is sent as-is on top of the
// language and include_adult defaults.
func (c *Client) Discover(ctx context.Context, params url.Values) ([]Movie, error) {
	q := url.Values{}
	q.Set("include_adult", "false")
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	return c.list(ctx, "discover", "/discover/movie", q)
}

func (c *Client) Recommendations(ctx context.Context, id int64, page int) ([]Movie, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	return c.list(ctx, "recommendations", "/movie/"+strconv.FormatInt(id, 10)+"/recommendations", q)
}

// Images returns alternate posters and backdrops, including untagged ones.
func (c *Client) Images(ctx context.Context, id int64) (*Images, error) {
	q := url.Values{}
	q.Set("include_image_language", "es,en,null")
	var out Images
	if err := c.getJSON(ctx, "images", "/movie/"+strconv.FormatInt(id, 10)+"/images", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) list(ctx context.Context, endpoint, path string, q url.Values) ([]Movie, error) {
	var page Page
	if err := c.getJSON(ctx, endpoint, path, q, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return []Movie{}, nil
	}
	return page.Results, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, dst any) error {
	if q == nil {
		q = url.Values{}
	}
	if q.Get("language") == "" {
		q.Set("language", c.language)
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) { return c.get(ctx, u) })
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
	}
	metrics.TMDBRequestDuration.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("tmdb: decode error: %w body=%q", err, string(body[:min(len(body), 200)]))
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &callerError{err: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("tmdb request", zap.String("url", rawURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}
	return b, nil
}

// classify wraps err as a caller error when ctx ended first. The client's own
// HTTP timeout leaves ctx alive and still counts against the breaker.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &callerError{err: err}
	}
	return err
}

// IsNotFound reports whether err is a TMDB 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Package engine implements discovery sessions: paginated, filterable,
// mode-switchable movie listings backed by a tmdb.Provider.
//
// A Session owns its state exclusively. At most one fetch is in flight per
// session; the loading flag is set under the session mutex before any I/O,
// and every fetch is tagged with the generation it was issued for so a result
// arriving after a reset is dropped instead of being appended.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/metrics"
	"github.com/example/movie-diary/services/discovery/internal/tmdb"
)

type Mode string

const (
	ModeTrending           Mode = "trending"
	ModeSmart              Mode = "smart"
	ModeRecommendationsLog Mode = "recommendations_log"
	ModeRecommendationsWL  Mode = "recommendations_wl"
	ModeGenre              Mode = "genre"
	ModeRandom             Mode = "random"
	ModeSearch             Mode = "search"
)

// Modes lists every mode accepted by SwitchMode.
var Modes = []Mode{
	ModeTrending, ModeSmart, ModeRecommendationsLog, ModeRecommendationsWL,
	ModeGenre, ModeRandom, ModeSearch,
}

func (m Mode) Valid() bool {
	for _, v := range Modes {
		if m == v {
			return true
		}
	}
	return false
}

// Discover query keys held in the session params.
const (
	ParamGenres     = "with_genres"
	ParamRuntimeMax = "with_runtime.lte"
	ParamProviders  = "with_watch_providers"
	ParamRegion     = "watch_region"
	ParamSort       = "sort_by"
	ParamYear       = "primary_release_year"
	ParamQuery      = "query"
)

const (
	// RuntimeUnlimited is the slider position meaning "any length".
	RuntimeUnlimited = 240
	randomPageMax    = 50
	DefaultRegion    = "MX"
)

type Outcome string

const (
	OutcomeAppended  Outcome = "appended"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeStale     Outcome = "stale"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// SwitchContext carries the optional inputs of a mode switch.
type SwitchContext struct {
	Genre       string
	Query       string
	Title       string
	SeedMovieID int64
	SeedGenres  []int
}

// Filters is the structured filter panel selection.
type Filters struct {
	Sort      string
	Year      string
	Genre     string
	Providers []string
}

// State is a point-in-time copy of a session.
type State struct {
	Page       int               `json:"page"`
	Mode       Mode              `json:"mode"`
	Params     map[string]string `json:"params"`
	SeedTitle  string            `json:"seed_title"`
	IsLoading  bool              `json:"is_loading"`
	HasMore    bool              `json:"has_more"`
	Generation uint64            `json:"generation"`
	Loaded     int               `json:"loaded"`
}

// FetchResult reports what a fetch did. Batch holds the movies appended to the
// session by this call, already stripped of hidden items.
type FetchResult struct {
	Outcome Outcome      `json:"outcome"`
	Batch   []tmdb.Movie `json:"batch"`
	State   State        `json:"state"`
}

// HiddenLister returns the movie ids a user never wants to see.
type HiddenLister interface {
	HiddenMovieIDs(ctx context.Context, userID string) ([]int64, error)
}

type Config struct {
	Provider tmdb.Provider
	Hidden   HiddenLister // optional
	Region   string
	Logger   *zap.Logger
	// RandomPage picks the page for random mode; defaults to uniform [1,50].
	RandomPage func() int
	// MaxSessionsPerUser caps a user's open sessions in a Registry.
	// Zero means DefaultMaxSessionsPerUser.
	MaxSessionsPerUser int
}

type Session struct {
	ID     string
	UserID string

	provider   tmdb.Provider
	hidden     HiddenLister
	region     string
	randomPage func() int
	log        *zap.Logger
	lastUsed   atomic.Int64

	mu           sync.Mutex
	mode         Mode
	params       map[string]string
	seedTitle    string
	seedMovieID  int64
	page         int
	loading      bool
	hasMore      bool
	generation   uint64
	cancel       context.CancelFunc
	results      []tmdb.Movie
	hiddenIDs    map[int64]struct{}
	hiddenLoaded bool
	closed       bool
}

// NewSession returns a session in trending mode at page 1. No fetch is issued.
func NewSession(id, userID string, cfg Config) *Session {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RandomPage == nil {
		cfg.RandomPage = func() int { return rand.IntN(randomPageMax) + 1 }
	}
	s := &Session{
		ID:         id,
		UserID:     userID,
		provider:   cfg.Provider,
		hidden:     cfg.Hidden,
		region:     cfg.Region,
		randomPage: cfg.RandomPage,
		log:        cfg.Logger.With(zap.String("session_id", id)),
		mode:       ModeTrending,
		params:     map[string]string{},
		page:       1,
		hasMore:    true,
	}
	s.touch()
	return s
}

func (s *Session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

// LastUsed is the time of the most recent operation on the session.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// SwitchMode replaces the active mode, recomputes params, resets the grid and
// fetches the first page. The runtime ceiling survives every switch except
// into search, which keeps only the query.
func (s *Session) SwitchMode(ctx context.Context, mode Mode, sc SwitchContext) FetchResult {
	s.mu.Lock()
	runtime, hasRuntime := s.params[ParamRuntimeMax]
	params := map[string]string{}
	switch mode {
	case ModeSearch:
		params[ParamQuery] = sc.Query
		s.seedTitle = sc.Query
	case ModeGenre:
		if sc.Genre != "" {
			params[ParamGenres] = sc.Genre
		}
		s.seedTitle = sc.Title
	case ModeSmart:
		if len(sc.SeedGenres) > 0 {
			ids := make([]string, 0, len(sc.SeedGenres))
			for _, g := range sc.SeedGenres {
				ids = append(ids, strconv.Itoa(g))
			}
			params[ParamGenres] = strings.Join(ids, "|")
		}
		s.seedTitle = sc.Title
	default:
		s.seedTitle = sc.Title
	}
	if hasRuntime && mode != ModeSearch {
		params[ParamRuntimeMax] = runtime
	}
	s.params = params
	s.seedMovieID = sc.SeedMovieID
	s.mode = mode
	s.resetLocked()
	s.mu.Unlock()

	return s.FetchNextPage(ctx)
}

// ApplyFilters merges a filter panel selection into params, keeps the mode,
// resets the grid and fetches.
func (s *Session) ApplyFilters(ctx context.Context, f Filters) FetchResult {
	s.mu.Lock()
	if f.Sort != "" {
		s.params[ParamSort] = f.Sort
	}
	if f.Year != "" {
		s.params[ParamYear] = f.Year
	} else {
		delete(s.params, ParamYear)
	}
	if f.Genre != "" {
		s.params[ParamGenres] = f.Genre
	}
	if len(f.Providers) > 0 {
		s.params[ParamProviders] = strings.Join(f.Providers, "|")
		s.params[ParamRegion] = s.region
	} else {
		delete(s.params, ParamProviders)
		delete(s.params, ParamRegion)
	}
	s.resetLocked()
	s.mu.Unlock()

	return s.FetchNextPage(ctx)
}

// SetRuntimeLimit sets the runtime ceiling in minutes; values at or past
// RuntimeUnlimited, or non-positive, remove it.
func (s *Session) SetRuntimeLimit(ctx context.Context, minutes int) FetchResult {
	s.mu.Lock()
	if minutes <= 0 || minutes >= RuntimeUnlimited {
		delete(s.params, ParamRuntimeMax)
	} else {
		s.params[ParamRuntimeMax] = strconv.Itoa(minutes)
	}
	s.resetLocked()
	s.mu.Unlock()

	return s.FetchNextPage(ctx)
}

// resetLocked returns the session to IDLE at page 1 and invalidates any fetch
// still in flight.
func (s *Session) resetLocked() {
	s.touch()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.page = 1
	s.loading = false
	s.hasMore = true
	s.results = nil
}

type fetchRequest struct {
	generation  uint64
	mode        Mode
	page        int
	params      map[string]string
	seedTitle   string
	seedMovieID int64
}

// FetchNextPage loads the next batch. It is a no-op while another fetch is in
// flight or once the listing is exhausted. Provider errors are logged and
// end pagination as an empty batch would.
func (s *Session) FetchNextPage(ctx context.Context) FetchResult {
	s.mu.Lock()
	s.touch()
	if s.closed || s.loading || !s.hasMore {
		res := FetchResult{Outcome: OutcomeSkipped, State: s.stateLocked()}
		s.mu.Unlock()
		metrics.DiscoveryFetches.WithLabelValues(string(res.State.Mode), string(OutcomeSkipped)).Inc()
		return res
	}
	s.loading = true
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	req := fetchRequest{
		generation:  s.generation,
		mode:        s.mode,
		page:        s.page,
		params:      cloneParams(s.params),
		seedTitle:   s.seedTitle,
		seedMovieID: s.seedMovieID,
	}
	s.mu.Unlock()
	defer cancel()

	batch, err := s.query(fetchCtx, req)
	var visible []tmdb.Movie
	if err == nil {
		visible = s.withoutHidden(fetchCtx, batch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := s.applyLocked(req, batch, visible, err, ctx.Err() != nil)
	res := FetchResult{Outcome: outcome, State: s.stateLocked()}
	if outcome == OutcomeAppended {
		res.Batch = visible
	}
	metrics.DiscoveryFetches.WithLabelValues(string(req.mode), string(outcome)).Inc()
	return res
}

func (s *Session) applyLocked(req fetchRequest, batch, visible []tmdb.Movie, err error, callerGone bool) Outcome {
	if req.generation != s.generation || s.closed {
		return OutcomeStale
	}
	s.loading = false
	s.cancel = nil

	if err != nil {
		if callerGone && errors.Is(err, context.Canceled) {
			return OutcomeCanceled
		}
		s.log.Warn("discovery fetch failed",
			zap.String("mode", string(req.mode)), zap.Int("page", req.page), zap.Error(err))
		s.hasMore = false
		return OutcomeFailed
	}

	if req.mode == ModeSearch {
		s.hasMore = false
	}
	if len(batch) == 0 {
		s.hasMore = false
		return OutcomeExhausted
	}
	s.results = append(s.results, visible...)
	s.page++
	return OutcomeAppended
}

func (s *Session) query(ctx context.Context, req fetchRequest) ([]tmdb.Movie, error) {
	switch req.mode {
	case ModeSearch:
		return s.provider.SearchMovies(ctx, req.seedTitle)
	case ModeRecommendationsLog, ModeRecommendationsWL:
		if req.seedMovieID > 0 {
			return s.provider.Recommendations(ctx, req.seedMovieID, req.page)
		}
		q := url.Values{}
		q.Set(ParamSort, "vote_average.desc")
		q.Set("vote_count.gte", "500")
		q.Set("page", strconv.Itoa(req.page))
		return s.provider.Discover(ctx, merge(q, req.params))
	case ModeRandom:
		q := url.Values{}
		q.Set(ParamSort, "popularity.desc")
		q.Set("page", strconv.Itoa(s.randomPage()))
		return s.provider.Discover(ctx, merge(q, req.params))
	default:
		q := url.Values{}
		q.Set(ParamSort, "popularity.desc")
		q.Set("page", strconv.Itoa(req.page))
		return s.provider.Discover(ctx, merge(q, req.params))
	}
}

// merge lays params over the mode defaults; params win.
func merge(q url.Values, params map[string]string) url.Values {
	for k, v := range params {
		if k == ParamQuery {
			continue
		}
		q.Set(k, v)
	}
	return q
}

func (s *Session) withoutHidden(ctx context.Context, batch []tmdb.Movie) []tmdb.Movie {
	s.loadHidden(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hiddenIDs) == 0 {
		return batch
	}
	out := make([]tmdb.Movie, 0, len(batch))
	for _, m := range batch {
		if _, ok := s.hiddenIDs[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// loadHidden reads the owner's hidden ids once per session. A failed read is
// retried on the next fetch.
func (s *Session) loadHidden(ctx context.Context) {
	s.mu.Lock()
	done := s.hiddenLoaded || s.hidden == nil
	s.mu.Unlock()
	if done {
		return
	}

	ids, err := s.hidden.HiddenMovieIDs(ctx, s.UserID)
	if err != nil {
		s.log.Warn("load hidden items", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hiddenIDs == nil {
		s.hiddenIDs = make(map[int64]struct{}, len(ids))
	}
	for _, id := range ids {
		s.hiddenIDs[id] = struct{}{}
	}
	s.hiddenLoaded = true
}

// MarkHidden excludes movieID from future batches and drops it from the
// results already loaded.
func (s *Session) MarkHidden(movieID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hiddenIDs == nil {
		s.hiddenIDs = map[int64]struct{}{}
	}
	s.hiddenIDs[movieID] = struct{}{}
	kept := s.results[:0]
	for _, m := range s.results {
		if m.ID != movieID {
			kept = append(kept, m)
		}
	}
	s.results = kept
}

// Close cancels any fetch in flight; later operations are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Results returns a copy of every movie loaded since the last reset.
func (s *Session) Results() []tmdb.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tmdb.Movie, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Session) stateLocked() State {
	return State{
		Page:       s.page,
		Mode:       s.mode,
		Params:     cloneParams(s.params),
		SeedTitle:  s.seedTitle,
		IsLoading:  s.loading,
		HasMore:    s.hasMore,
		Generation: s.generation,
		Loaded:     len(s.results),
	}
}

func cloneParams(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/discovery/internal/tmdb"
)

type castView struct {
	Name       string `json:"name"`
	Character  string `json:"character"`
	ProfileURL string `json:"profile_url"`
}

type providerView struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url"`
}

type movieDetailView struct {
	movieView
	Overview  string         `json:"overview"`
	Genres    []tmdb.Genre   `json:"genres"`
	Countries []tmdb.Country `json:"production_countries"`
	Directors []string       `json:"directors"`
	Cast      []castView     `json:"cast"`
	Providers []providerView `json:"providers"`
	Keywords  []string       `json:"keywords"`
}

const maxCast = 10

// toDetailView keeps the top billed cast and the streaming providers of region.
func toDetailView(m *tmdb.MovieDetail, region string) movieDetailView {
	v := movieDetailView{
		movieView: toMovieView(m.Movie),
		Overview:  m.Overview,
		Genres:    m.Genres,
		Countries: m.ProductionCountries,
		Directors: []string{},
		Cast:      []castView{},
		Providers: []providerView{},
		Keywords:  []string{},
	}
	if v.Genres == nil {
		v.Genres = []tmdb.Genre{}
	}
	if v.Countries == nil {
		v.Countries = []tmdb.Country{}
	}
	for _, c := range m.Credits.Crew {
		if c.Job == "Director" {
			v.Directors = append(v.Directors, c.Name)
		}
	}
	for i, c := range m.Credits.Cast {
		if i == maxCast {
			break
		}
		v.Cast = append(v.Cast, castView{Name: c.Name, Character: c.Character, ProfileURL: tmdb.ImageURL(c.ProfilePath, "w185")})
	}
	if rp, ok := m.WatchProviders.Results[region]; ok {
		for _, p := range rp.Flatrate {
			v.Providers = append(v.Providers, providerView{ID: p.ProviderID, Name: p.ProviderName, LogoURL: tmdb.ImageURL(p.LogoPath, "w92")})
		}
	}
	for _, k := range m.Keywords.Keywords {
		v.Keywords = append(v.Keywords, k.Name)
	}
	return v
}

// GetMovie handles GET /v1/movies/{movie_id}
func GetMovie(p tmdb.Provider, region string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := movieIDParam(w, r)
		if !ok {
			return
		}
		m, err := p.GetMovie(r.Context(), id)
		if err != nil {
			writeProviderError(w, r, err, log)
			return
		}
		api.WriteJSON(w, http.StatusOK, toDetailView(m, region))
	}
}

type imagesResponse struct {
	MovieID   int64    `json:"movie_id"`
	Posters   []string `json:"posters"`
	Backdrops []string `json:"backdrops"`
}

// GetImages handles GET /v1/movies/{movie_id}/images, used to pick a custom
// poster for a diary entry.
func GetImages(p tmdb.Provider, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := movieIDParam(w, r)
		if !ok {
			return
		}
		imgs, err := p.Images(r.Context(), id)
		if err != nil {
			writeProviderError(w, r, err, log)
			return
		}
		resp := imagesResponse{MovieID: id, Posters: []string{}, Backdrops: []string{}}
		for _, im := range imgs.Posters {
			resp.Posters = append(resp.Posters, tmdb.ImageURL(im.FilePath, "w500"))
		}
		for _, im := range imgs.Backdrops {
			resp.Backdrops = append(resp.Backdrops, tmdb.ImageURL(im.FilePath, "w780"))
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

type trendingResponse struct {
	Window string      `json:"window"`
	Page   int         `json:"page"`
	Movies []movieView `json:"movies"`
}

// Trending handles GET /v1/movies/trending?window=day|week&page=N.
// Window defaults to week, page to 1.
func Trending(p tmdb.Provider, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := r.URL.Query().Get("window")
		switch window {
		case "":
			window = "week"
		case "day", "week":
		default:
			api.BadRequest(w, "INVALID_WINDOW", "window must be day or week", requestID(r), nil)
			return
		}
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 500 {
				api.BadRequest(w, "INVALID_PAGE", "page must be between 1 and 500", requestID(r), nil)
				return
			}
			page = n
		}
		movies, err := p.Trending(r.Context(), window, page)
		if err != nil {
			writeProviderError(w, r, err, log)
			return
		}
		api.WriteJSON(w, http.StatusOK, trendingResponse{Window: window, Page: page, Movies: toMovieViews(movies)})
	}
}

func writeProviderError(w http.ResponseWriter, r *http.Request, err error, log *zap.Logger) {
	if tmdb.IsNotFound(err) {
		api.NotFound(w, api.CodeNotFound, "Movie not found", requestID(r))
		return
	}
	log.Warn("tmdb lookup failed", zap.String("path", r.URL.Path), zap.Error(err))
	api.BadGateway(w, "Movie metadata is unavailable", requestID(r))
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/internal/platform/auth"
	"github.com/example/movie-diary/internal/platform/httpserver"
	"github.com/example/movie-diary/services/discovery/internal/engine"
	"github.com/example/movie-diary/services/discovery/internal/tmdb"
)

type movieView struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Year        string  `json:"year"`
	ReleaseDate string  `json:"release_date,omitempty"`
	VoteAverage float64 `json:"vote_average"`
	PosterURL   string  `json:"poster_url"`
	BackdropURL string  `json:"backdrop_url"`
	Runtime     *int    `json:"runtime,omitempty"`
}

func toMovieView(m tmdb.Movie) movieView {
	return movieView{
		ID:          m.ID,
		Title:       m.Title,
		Year:        m.Year(),
		ReleaseDate: m.ReleaseDate,
		VoteAverage: m.VoteAverage,
		PosterURL:   tmdb.ImageURL(m.PosterPath, "w500"),
		BackdropURL: tmdb.ImageURL(m.BackdropPath, "original"),
		Runtime:     m.Runtime,
	}
}

func toMovieViews(ms []tmdb.Movie) []movieView {
	out := make([]movieView, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMovieView(m))
	}
	return out
}

type fetchResponse struct {
	SessionID string       `json:"session_id"`
	Outcome   string       `json:"outcome"`
	Movies    []movieView  `json:"movies"`
	State     engine.State `json:"state"`
}

func toFetchResponse(id string, res engine.FetchResult) fetchResponse {
	return fetchResponse{
		SessionID: id,
		Outcome:   string(res.Outcome),
		Movies:    toMovieViews(res.Batch),
		State:     res.State,
	}
}

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, api.CodeAuthRequired, "Sign in to continue", requestID(r))
		return "", false
	}
	return userID, true
}

func movieIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "movie_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_MOVIE_ID", "movie_id must be a positive integer", requestID(r), nil)
		return 0, false
	}
	return id, true
}

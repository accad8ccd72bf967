package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/internal/platform/auth"
	"github.com/example/movie-diary/internal/platform/httpserver"
)

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

// maxRuntimeQuery reads ?max_runtime=; absent means no ceiling.
func maxRuntimeQuery(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("max_runtime"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		api.BadRequest(w, "INVALID_RUNTIME", "max_runtime must be a non-negative integer", requestID(r), nil)
		return 0, false
	}
	return n, true
}

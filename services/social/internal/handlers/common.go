package handlers

import (
	"net/http"
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

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if id == "" {
		api.BadRequest(w, "INVALID_USER_ID", "user_id is required", requestID(r), nil)
		return "", false
	}
	return id, true
}

package handlers

import (
	"net/http"

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

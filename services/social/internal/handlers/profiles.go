package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/social/internal/graph"
	"github.com/example/movie-diary/services/social/internal/store"
)

type profileRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=32"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// SearchProfiles handles GET /v1/profiles?q=
func SearchProfiles(g *graph.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := g.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, profilesResponse{Items: items})
	}
}

// GetProfile handles GET /v1/profiles/{user_id}
func GetProfile(ps store.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}
		p, err := ps.GetProfile(r.Context(), userID)
		if errors.Is(err, store.ErrProfileNotFound) {
			api.NotFound(w, "PROFILE_NOT_FOUND", "User not found", requestID(r))
			return
		}
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

// UpsertMyProfile handles PUT /v1/profiles/me
func UpsertMyProfile(ps store.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req profileRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		p, err := ps.UpsertProfile(r.Context(), store.Profile{
			ID:        userID,
			Username:  strings.TrimSpace(req.Username),
			AvatarURL: strings.TrimSpace(req.AvatarURL),
		})
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

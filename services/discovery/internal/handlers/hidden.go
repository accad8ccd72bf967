package handlers

import (
	"errors"
	"net/http"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/discovery/internal/engine"
	"github.com/example/movie-diary/services/discovery/internal/store"
)

type hideRequest struct {
	MovieID int64 `json:"tmdb_id" validate:"required,gt=0"`
}

type hiddenListResponse struct {
	Items []store.HiddenItem `json:"items"`
}

// ListHidden handles GET /v1/hidden
func ListHidden(hs store.HiddenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		items, err := hs.List(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, hiddenListResponse{Items: items})
	}
}

// HideMovie handles POST /v1/hidden. Open discovery sessions of the user stop
// showing the movie immediately.
func HideMovie(hs store.HiddenStore, reg *engine.Registry, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req hideRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		item, err := hs.Hide(r.Context(), userID, req.MovieID)
		if errors.Is(err, store.ErrAlreadyHidden) {
			api.Conflict(w, "ALREADY_HIDDEN", "Movie is already hidden", requestID(r), nil)
			return
		}
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		reg.MarkHidden(userID, req.MovieID)
		pub.Publish(analytics.SubjectMovieHidden, "discovery.movie_hidden", userID, map[string]any{
			"tmdb_id": req.MovieID,
		})
		api.WriteJSON(w, http.StatusCreated, item)
	}
}

// UnhideMovie handles DELETE /v1/hidden/{movie_id}. Sessions already open keep
// the movie filtered until they are recreated.
func UnhideMovie(hs store.HiddenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := movieIDParam(w, r)
		if !ok {
			return
		}
		if err := hs.Unhide(r.Context(), userID, id); err != nil {
			api.Internal(w, requestID(r))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

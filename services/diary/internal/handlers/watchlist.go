package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/diary/internal/diary"
	"github.com/example/movie-diary/services/diary/internal/store"
)

type watchlistRequest struct {
	Movie movieInput `json:"movie" validate:"required"`
}

type watchlistResponse struct {
	Items []store.WatchlistEntry `json:"items"`
}

// AddToWatchlist handles POST /v1/watchlist
func AddToWatchlist(svc *diary.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req watchlistRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		e, err := svc.AddToWatchlist(r.Context(), userID, req.Movie.toMovie())
		if errors.Is(err, store.ErrAlreadyInWatchlist) {
			api.Conflict(w, "ALREADY_IN_WATCHLIST", "Movie is already in your watchlist", requestID(r), nil)
			return
		}
		if err != nil {
			log.Error("add to watchlist", zap.String("user_id", userID), zap.Error(err))
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusCreated, e)
	}
}

// RemoveFromWatchlist handles DELETE /v1/watchlist/{movie_id}
func RemoveFromWatchlist(svc *diary.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := movieIDParam(w, r)
		if !ok {
			return
		}
		if err := svc.RemoveFromWatchlist(r.Context(), userID, id); err != nil {
			api.Internal(w, requestID(r))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListWatchlist handles GET /v1/watchlist?max_runtime=
func ListWatchlist(svc *diary.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		limit, ok := maxRuntimeQuery(w, r)
		if !ok {
			return
		}
		items, err := svc.Watchlist(r.Context(), userID, limit)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, watchlistResponse{Items: items})
	}
}

// PickRandom handles GET /v1/watchlist/random?max_runtime=
func PickRandom(svc *diary.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		limit, ok := maxRuntimeQuery(w, r)
		if !ok {
			return
		}
		e, err := svc.PickRandom(r.Context(), userID, limit)
		if errors.Is(err, diary.ErrWatchlistEmpty) {
			api.NotFound(w, "WATCHLIST_EMPTY", "No movies to choose from", requestID(r))
			return
		}
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, e)
	}
}

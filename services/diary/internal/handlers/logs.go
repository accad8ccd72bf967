package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/diary/internal/diary"
	"github.com/example/movie-diary/services/diary/internal/store"
)

type movieInput struct {
	ID                  int64              `json:"tmdb_id" validate:"required,gt=0"`
	Title               string             `json:"title" validate:"required,max=500"`
	PosterPath          string             `json:"poster_path"`
	BackdropPath        string             `json:"backdrop_path"`
	ReleaseDate         string             `json:"release_date" validate:"omitempty,datetime=2006-01-02"`
	Runtime             *int               `json:"runtime" validate:"omitempty,min=0"`
	Genres              []store.Genre      `json:"genres"`
	ProductionCountries []string           `json:"production_countries" validate:"dive,len=2"`
	VoteAverage         float64            `json:"vote_average" validate:"min=0,max=10"`
	Cast                []store.CastMember `json:"cast" validate:"max=10"`
}

func (m movieInput) toMovie() store.Movie {
	return store.Movie{
		ID:                  m.ID,
		Title:               strings.TrimSpace(m.Title),
		PosterPath:          m.PosterPath,
		BackdropPath:        m.BackdropPath,
		ReleaseDate:         m.ReleaseDate,
		Runtime:             m.Runtime,
		Genres:              m.Genres,
		ProductionCountries: m.ProductionCountries,
		VoteAverage:         m.VoteAverage,
		Cast:                m.Cast,
	}
}

type logFields struct {
	Rating           *int     `json:"rating" validate:"omitempty,min=0,max=10"`
	Review           string   `json:"review" validate:"max=5000"`
	WatchedAt        string   `json:"watched_at" validate:"omitempty,datetime=2006-01-02"`
	IsRewatch        bool     `json:"is_rewatch"`
	CustomPosterPath string   `json:"custom_poster_path"`
	Companions       []string `json:"companions" validate:"max=20,dive,required"`
}

// toLog fills WatchedAt with fallback when the request carries no date.
func (f logFields) toLog(userID string, fallback time.Time) store.Log {
	watched := fallback
	if f.WatchedAt != "" {
		// already validated
		watched, _ = time.Parse(time.DateOnly, f.WatchedAt)
	}
	return store.Log{
		UserID:           userID,
		Rating:           f.Rating,
		Review:           strings.TrimSpace(f.Review),
		WatchedAt:        watched,
		IsRewatch:        f.IsRewatch,
		CustomPosterPath: f.CustomPosterPath,
		Companions:       f.Companions,
	}
}

type createLogRequest struct {
	Movie movieInput `json:"movie" validate:"required"`
	logFields
}

type logsResponse struct {
	Items []store.LogWithMovie `json:"items"`
}

// CreateLog handles POST /v1/diary/logs
func CreateLog(svc *diary.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req createLogRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		today := time.Now().UTC().Truncate(24 * time.Hour)
		res, err := svc.CreateLog(r.Context(), req.Movie.toMovie(), req.toLog(userID, today))
		if err != nil {
			log.Error("create log", zap.String("user_id", userID), zap.Error(err))
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusCreated, res)
	}
}

// UpdateLog handles PUT /v1/diary/logs/{log_id}
func UpdateLog(svc *diary.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req logFields
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		l := req.toLog(userID, time.Time{})
		l.ID = chi.URLParam(r, "log_id")
		res, err := svc.UpdateLog(r.Context(), l)
		if errors.Is(err, store.ErrLogNotFound) {
			api.NotFound(w, "LOG_NOT_FOUND", "Log not found", requestID(r))
			return
		}
		if err != nil {
			log.Error("update log", zap.String("log_id", l.ID), zap.Error(err))
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// ListLogs handles GET /v1/diary/logs and GET /v1/diary/users/{user_id}/logs.
// Diaries are public.
func ListLogs(svc *diary.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			var ok bool
			if userID, ok = currentUser(w, r); !ok {
				return
			}
		}
		items, err := svc.Logs(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, logsResponse{Items: items})
	}
}

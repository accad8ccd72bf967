package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/discovery/internal/engine"
)

type modeRequest struct {
	Mode        string `json:"mode" validate:"required,oneof=trending smart recommendations_log recommendations_wl genre random search"`
	Genre       string `json:"genre,omitempty" validate:"omitempty,numeric"`
	Query       string `json:"query,omitempty" validate:"max=200"`
	Title       string `json:"title,omitempty" validate:"max=200"`
	SeedMovieID int64  `json:"seed_movie_id,omitempty" validate:"gte=0"`
	SeedGenres  []int  `json:"seed_genres,omitempty" validate:"max=10,dive,gt=0"`
}

func (m modeRequest) switchContext() engine.SwitchContext {
	return engine.SwitchContext{
		Genre:       m.Genre,
		Query:       m.Query,
		Title:       m.Title,
		SeedMovieID: m.SeedMovieID,
		SeedGenres:  m.SeedGenres,
	}
}

type filtersRequest struct {
	Sort      string   `json:"sort_by,omitempty" validate:"omitempty,max=64"`
	Year      string   `json:"year,omitempty" validate:"omitempty,numeric,len=4"`
	Genre     string   `json:"genre,omitempty" validate:"omitempty,numeric"`
	Providers []string `json:"providers,omitempty" validate:"max=20,dive,numeric"`
}

type runtimeRequest struct {
	Minutes int `json:"minutes" validate:"gte=0"`
}

type sessionResponse struct {
	SessionID string       `json:"session_id"`
	State     engine.State `json:"state"`
	Movies    []movieView  `json:"movies"`
}

func decodeMode(w http.ResponseWriter, r *http.Request, req *modeRequest) bool {
	if !api.DecodeJSON(w, r, req, requestID(r)) {
		return false
	}
	if req.Mode == string(engine.ModeSearch) && req.Query == "" {
		api.BadRequest(w, api.CodeValidation, "query is required for search", requestID(r),
			map[string]any{"fields": map[string]any{"query": "required"}})
		return false
	}
	return true
}

// CreateSession handles POST /v1/discovery/sessions. The body is optional and
// defaults to trending mode; the first page is fetched before responding.
func CreateSession(reg *engine.Registry, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		req := modeRequest{Mode: string(engine.ModeTrending)}
		if r.ContentLength != 0 && !decodeMode(w, r, &req) {
			return
		}

		s := reg.Open(userID)
		res := s.SwitchMode(r.Context(), engine.Mode(req.Mode), req.switchContext())
		publishSearch(pub, userID, req)
		api.WriteJSON(w, http.StatusCreated, toFetchResponse(s.ID, res))
	}
}

// GetSession handles GET /v1/discovery/sessions/{session_id}
func GetSession(reg *engine.Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
		api.WriteJSON(w, http.StatusOK, sessionResponse{
			SessionID: s.ID,
			State:     s.State(),
			Movies:    toMovieViews(s.Results()),
		})
	})
}

// SwitchMode handles POST /v1/discovery/sessions/{session_id}/mode
func SwitchMode(reg *engine.Registry, pub *analytics.Publisher) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
		var req modeRequest
		if !decodeMode(w, r, &req) {
			return
		}
		res := s.SwitchMode(r.Context(), engine.Mode(req.Mode), req.switchContext())
		publishSearch(pub, s.UserID, req)
		api.WriteJSON(w, http.StatusOK, toFetchResponse(s.ID, res))
	})
}

// ApplyFilters handles POST /v1/discovery/sessions/{session_id}/filters
func ApplyFilters(reg *engine.Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
		var req filtersRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		res := s.ApplyFilters(r.Context(), engine.Filters{
			Sort:      req.Sort,
			Year:      req.Year,
			Genre:     req.Genre,
			Providers: req.Providers,
		})
		api.WriteJSON(w, http.StatusOK, toFetchResponse(s.ID, res))
	})
}

// SetRuntime handles POST /v1/discovery/sessions/{session_id}/runtime
func SetRuntime(reg *engine.Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
		var req runtimeRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		res := s.SetRuntimeLimit(r.Context(), req.Minutes)
		api.WriteJSON(w, http.StatusOK, toFetchResponse(s.ID, res))
	})
}

// NextPage handles POST /v1/discovery/sessions/{session_id}/next
func NextPage(reg *engine.Registry) http.HandlerFunc {
	return withSession(reg, func(w http.ResponseWriter, r *http.Request, s *engine.Session) {
		res := s.FetchNextPage(r.Context())
		api.WriteJSON(w, http.StatusOK, toFetchResponse(s.ID, res))
	})
}

// CloseSession handles DELETE /v1/discovery/sessions/{session_id}
func CloseSession(reg *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		if !reg.Close(chi.URLParam(r, "session_id"), userID) {
			api.NotFound(w, api.CodeNotFound, "Discovery session not found", requestID(r))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func withSession(reg *engine.Registry, h func(http.ResponseWriter, *http.Request, *engine.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		s, ok := reg.Get(chi.URLParam(r, "session_id"), userID)
		if !ok {
			api.NotFound(w, api.CodeNotFound, "Discovery session not found", requestID(r))
			return
		}
		h(w, r, s)
	}
}

func publishSearch(pub *analytics.Publisher, userID string, req modeRequest) {
	if req.Mode != string(engine.ModeSearch) {
		return
	}
	pub.Publish(analytics.SubjectDiscoverySearched, "discovery.searched", userID, map[string]any{
		"query": req.Query,
	})
}

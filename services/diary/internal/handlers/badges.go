package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/diary/internal/badges"
	"github.com/example/movie-diary/services/diary/internal/diary"
)

type badgesResponse struct {
	Items []badges.Status `json:"items"`
}

// BadgeStatus handles GET /v1/badges and GET /v1/badges/users/{user_id}
func BadgeStatus(svc *diary.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			var ok bool
			if userID, ok = currentUser(w, r); !ok {
				return
			}
		}
		items, err := svc.Badges(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, badgesResponse{Items: items})
	}
}

package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/social/internal/affinity"
	"github.com/example/movie-diary/services/social/internal/graph"
	"github.com/example/movie-diary/services/social/internal/store"
)

type suggestionsResponse struct {
	Items []affinity.Candidate `json:"items"`
}

type profilesResponse struct {
	Items []store.Profile `json:"items"`
}

type activityResponse struct {
	Items []store.ActivityItem `json:"items"`
}

type followResponse struct {
	Following    bool                  `json:"following"`
	Relationship affinity.Relationship `json:"relationship"`
}

// Suggestions handles GET /v1/social/suggestions
func Suggestions(m *affinity.Matcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusOK, suggestionsResponse{Items: m.Suggest(r.Context(), userID)})
	}
}

// Relationship handles GET /v1/social/users/{user_id}/relationship
func Relationship(res *affinity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := currentUser(w, r)
		if !ok {
			return
		}
		target, ok := userIDParam(w, r)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusOK, res.Status(r.Context(), me, target))
	}
}

// ToggleFollow handles POST /v1/social/users/{user_id}/follow
func ToggleFollow(g *graph.Service, res *affinity.Resolver, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := currentUser(w, r)
		if !ok {
			return
		}
		target, ok := userIDParam(w, r)
		if !ok {
			return
		}
		following, err := g.ToggleFollow(r.Context(), me, target)
		switch {
		case errors.Is(err, store.ErrSelfFollow):
			api.BadRequest(w, "SELF_FOLLOW", "You cannot follow yourself", requestID(r), nil)
			return
		case errors.Is(err, store.ErrProfileNotFound):
			api.NotFound(w, "PROFILE_NOT_FOUND", "User not found", requestID(r))
			return
		case err != nil:
			log.Error("toggle follow", zap.String("user_id", me), zap.String("target", target), zap.Error(err))
			api.Internal(w, requestID(r))
			return
		}

		subject, name := analytics.SubjectUserUnfollowed, "social.unfollowed"
		if following {
			subject, name = analytics.SubjectUserFollowed, "social.followed"
		}
		pub.Publish(subject, name, me, map[string]any{"target_id": target})

		api.WriteJSON(w, http.StatusOK, followResponse{
			Following:    following,
			Relationship: res.Status(r.Context(), me, target),
		})
	}
}

// Counts handles GET /v1/social/users/{user_id}/counts
func Counts(g *graph.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}
		c, err := g.Counts(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// Followers handles GET /v1/social/users/{user_id}/followers
func Followers(g *graph.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}
		items, err := g.Followers(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, profilesResponse{Items: items})
	}
}

// Following handles GET /v1/social/users/{user_id}/following
func Following(g *graph.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}
		items, err := g.Following(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, profilesResponse{Items: items})
	}
}

// Feed handles GET /v1/social/feed
func Feed(g *graph.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		items, err := g.FriendsActivity(r.Context(), userID)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusOK, activityResponse{Items: items})
	}
}

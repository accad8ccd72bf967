package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/services/chat/internal/chat"
	"github.com/example/movie-diary/services/chat/internal/store"
)

type sendRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,max=64"`
	Body       string `json:"body" validate:"required,max=2000"`
}

type historyResponse struct {
	Items []store.Message `json:"items"`
}

// SendMessage handles POST /v1/chat/messages
func SendMessage(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req sendRequest
		if !api.DecodeJSON(w, r, &req, requestID(r)) {
			return
		}
		m, err := svc.Send(r.Context(), userID, req.ReceiverID, req.Body)
		switch {
		case errors.Is(err, chat.ErrSelfMessage):
			api.BadRequest(w, "SELF_MESSAGE", "You cannot message yourself", requestID(r), nil)
			return
		case errors.Is(err, chat.ErrEmptyBody):
			api.BadRequest(w, "EMPTY_MESSAGE", "Message body is empty", requestID(r), nil)
			return
		case errors.Is(err, chat.ErrInvalidPeer):
			api.BadRequest(w, "INVALID_USER_ID", "receiver_id is not a valid user id", requestID(r), nil)
			return
		case err != nil:
			log.Error("send message", zap.String("user_id", userID), zap.Error(err))
			api.Internal(w, requestID(r))
			return
		}
		api.WriteJSON(w, http.StatusCreated, m)
	}
}

// History handles GET /v1/chat/messages/{user_id}
func History(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		peer := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if !chat.ValidUserID(peer) {
			api.BadRequest(w, "INVALID_USER_ID", "user_id is not a valid user id", requestID(r), nil)
			return
		}
		items, err := svc.History(r.Context(), userID, peer)
		if err != nil {
			api.Internal(w, requestID(r))
			return
		}
		if items == nil {
			items = []store.Message{}
		}
		api.WriteJSON(w, http.StatusOK, historyResponse{Items: items})
	}
}

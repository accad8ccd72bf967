package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/internal/platform/signing"
	"github.com/example/movie-diary/services/chat/internal/hub"
)

const (
	TicketScope = "chat"
	TicketTTL   = 60 * time.Second
)

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// IssueTicket handles POST /v1/chat/tickets. Browsers cannot set headers on a
// websocket upgrade, so the socket authenticates with this ticket instead.
func IssueTicket(signer *signing.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusCreated, ticketResponse{
			Ticket:    signer.Issue(userID, TicketScope, TicketTTL),
			ExpiresIn: int(TicketTTL.Seconds()),
		})
	}
}

// Socket handles GET /v1/chat/ws?ticket=&with=
func Socket(signer *signing.Signer, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID, err := signer.Check(q.Get("ticket"), TicketScope)
		if err != nil {
			api.Unauthorized(w, "INVALID_TICKET", "Chat ticket is missing or expired", requestID(r))
			return
		}
		h.Serve(w, r, userID, strings.TrimSpace(q.Get("with")))
	}
}

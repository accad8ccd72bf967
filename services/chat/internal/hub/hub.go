// Package hub serves chat websockets. Each connection watches exactly one
// conversation at a time through its own NATS subscription.
package hub

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/services/chat/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 64
)

// Sender persists and fans out a message.
type Sender interface {
	Send(ctx context.Context, sender, receiver, body string) (store.Message, error)
}

type Hub struct {
	nc       *nats.Conn
	sender   Sender
	upgrader websocket.Upgrader
	log      *zap.Logger
	active   atomic.Int64
}

type Options struct {
	// AllowedOrigins is a comma separated list; empty or "*" accepts any origin.
	AllowedOrigins string
	Logger         *zap.Logger
}

func New(nc *nats.Conn, sender Sender, opts Options) *Hub {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{nc: nc, sender: sender, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(raw string) func(r *http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	if len(allowed) == 0 || allowed["*"] {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return allowed[r.Header.Get("Origin")]
	}
}

// Subscriptions is the number of conversation subscriptions currently open.
func (h *Hub) Subscriptions() int64 {
	return h.active.Load()
}

// Serve upgrades the request and blocks until the socket closes. peer, when
// not empty, opens that conversation right away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID, peer string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("chat: upgrade failed", zap.Error(err))
		return
	}
	c := newConnection(h, conn, userID)
	c.run(peer)
}

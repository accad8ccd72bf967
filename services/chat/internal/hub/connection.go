package hub

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/metrics"
	"github.com/example/movie-diary/services/chat/internal/chat"
	"github.com/example/movie-diary/services/chat/internal/store"
)

// Client frame types.
const (
	FrameOpen  = "open"
	FrameSend  = "send"
	FramePing  = "ping"
	FrameClose = "close"
)

// Server frame types.
const (
	FrameOpened  = "opened"
	FrameClosed  = "closed"
	FrameMessage = "message"
	FramePong    = "pong"
	FrameError   = "error"
)

type inbound struct {
	Type string `json:"type"`
	With string `json:"with,omitempty"`
	Body string `json:"body,omitempty"`
}

type outbound struct {
	Type    string         `json:"type"`
	With    string         `json:"with,omitempty"`
	Message *store.Message `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type connection struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan outbound
	done   chan struct{}
	log    *zap.Logger

	mu   sync.Mutex
	peer string
	sub  *nats.Subscription
}

func newConnection(h *Hub, conn *websocket.Conn, userID string) *connection {
	return &connection{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan outbound, sendBuffer),
		done:   make(chan struct{}),
		log:    h.log.With(zap.String("user_id", userID)),
	}
}

func (c *connection) run(peer string) {
	defer func() {
		c.closeConversation()
		close(c.done)
		_ = c.conn.Close()
	}()
	go c.writePump()

	if peer != "" {
		c.openConversation(peer)
	}
	c.readPump()
}

func (c *connection) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("chat: read", zap.Error(err))
			}
			return
		}
		switch in.Type {
		case FrameOpen:
			c.openConversation(in.With)
		case FrameClose:
			c.closeConversation()
			c.push(outbound{Type: FrameClosed})
		case FrameSend:
			c.sendMessage(in.Body)
		case FramePing:
			c.push(outbound{Type: FramePong})
		default:
			c.push(outbound{Type: FrameError, Error: "unknown frame type"})
		}
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case out := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(out); err != nil {
				c.log.Debug("chat: write", zap.Error(err))
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// push never blocks: a client that cannot keep up loses frames.
func (c *connection) push(out outbound) {
	select {
	case c.send <- out:
	case <-c.done:
	default:
		c.log.Warn("chat: send buffer full, dropping frame", zap.String("type", out.Type))
	}
}

// openConversation replaces the current subscription with one scoped to peer.
func (c *connection) openConversation(peer string) {
	if !chat.ValidUserID(peer) || peer == c.userID {
		c.push(outbound{Type: FrameError, Error: "invalid conversation"})
		return
	}
	if c.hub.nc == nil {
		c.push(outbound{Type: FrameError, Error: "realtime unavailable"})
		return
	}

	c.mu.Lock()
	c.unsubscribeLocked()
	sub, err := c.hub.nc.Subscribe(chat.Subject(c.userID, peer), func(m *nats.Msg) {
		c.deliver(peer, m)
	})
	if err == nil {
		err = c.hub.nc.Flush()
	}
	if err != nil {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
		c.mu.Unlock()
		c.log.Warn("chat: subscribe", zap.String("peer", peer), zap.Error(err))
		c.push(outbound{Type: FrameError, Error: "subscribe failed"})
		return
	}
	c.sub, c.peer = sub, peer
	c.hub.active.Add(1)
	metrics.ChatSubscriptions.Inc()
	c.mu.Unlock()

	c.push(outbound{Type: FrameOpened, With: peer})
}

func (c *connection) closeConversation() {
	c.mu.Lock()
	c.unsubscribeLocked()
	c.mu.Unlock()
}

func (c *connection) unsubscribeLocked() {
	if c.sub == nil {
		return
	}
	if err := c.sub.Unsubscribe(); err != nil {
		c.log.Debug("chat: unsubscribe", zap.Error(err))
	}
	c.sub, c.peer = nil, ""
	c.hub.active.Add(-1)
	metrics.ChatSubscriptions.Dec()
}

// deliver forwards m only while peer is still the open conversation and m
// really belongs to it.
func (c *connection) deliver(peer string, m *nats.Msg) {
	var msg store.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		c.log.Warn("chat: bad event", zap.String("subject", m.Subject), zap.Error(err))
		return
	}
	c.mu.Lock()
	current := c.peer
	c.mu.Unlock()
	if current != peer || !msg.Between(c.userID, peer) {
		return
	}
	c.push(outbound{Type: FrameMessage, With: peer, Message: &msg})
}

func (c *connection) sendMessage(body string) {
	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == "" {
		c.push(outbound{Type: FrameError, Error: "no open conversation"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if _, err := c.hub.sender.Send(ctx, c.userID, peer, body); err != nil {
		c.push(outbound{Type: FrameError, Error: err.Error()})
	}
}

// Package chat persists direct messages and fans them out over NATS.
package chat

import (
	"context"
	"errors"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/services/chat/internal/store"
)

const (
	SubjectPrefix = "chat.messages"
	MaxBodyLen    = 2000
	HistoryLimit  = 100
)

var (
	ErrSelfMessage = errors.New("cannot message yourself")
	ErrEmptyBody   = errors.New("message body is empty")
	ErrInvalidPeer = errors.New("invalid user id")
)

// ValidUserID rejects ids that cannot be a single NATS subject token.
func ValidUserID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ".*> \t\r\n")
}

// Subject is the NATS subject of the a/b conversation; argument order does not matter.
func Subject(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return SubjectPrefix + "." + a + "." + b
}

type Service struct {
	store store.Store
	nc    *nats.Conn
	pub   *analytics.Publisher
	log   *zap.Logger
}

// New returns a Service; a nil nc disables realtime delivery.
func New(s store.Store, nc *nats.Conn, pub *analytics.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, nc: nc, pub: pub, log: log}
}

// Send stores the message and publishes it to the conversation subject.
// A failed publish is logged; the message stays persisted.
func (s *Service) Send(ctx context.Context, sender, receiver, body string) (store.Message, error) {
	if !ValidUserID(sender) || !ValidUserID(receiver) {
		return store.Message{}, ErrInvalidPeer
	}
	if sender == receiver {
		return store.Message{}, ErrSelfMessage
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Message{}, ErrEmptyBody
	}
	m, err := s.store.Save(ctx, store.Message{SenderID: sender, ReceiverID: receiver, Body: body})
	if err != nil {
		return store.Message{}, err
	}

	if s.nc != nil {
		data, err := json.Marshal(m)
		if err == nil {
			err = s.nc.Publish(Subject(sender, receiver), data)
		}
		if err != nil {
			s.log.Warn("chat: publish", zap.String("message_id", m.ID), zap.Error(err))
		}
	}
	s.pub.Publish(analytics.SubjectChatMessageSent, "chat.message_sent", sender, map[string]any{
		"receiver_id": receiver,
		"length":      len(body),
	})
	return m, nil
}

func (s *Service) History(ctx context.Context, me, peer string) ([]store.Message, error) {
	return s.store.History(ctx, me, peer, HistoryLimit)
}

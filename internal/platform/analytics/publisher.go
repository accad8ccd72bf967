// Package analytics emits product events (searches, follows, logs, badges,
// messages) to the ANALYTICS JetStream stream. Publishing never blocks or
// fails a request.
package analytics

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectDiscoverySearched = "analytics.discovery.searched"
	SubjectMovieHidden       = "analytics.discovery.movie_hidden"
	SubjectUserFollowed      = "analytics.social.followed"
	SubjectUserUnfollowed    = "analytics.social.unfollowed"
	SubjectMovieLogged       = "analytics.diary.logged"
	SubjectWatchlistAdded    = "analytics.diary.watchlist_added"
	SubjectBadgeUnlocked     = "analytics.diary.badge_unlocked"
	SubjectChatMessageSent   = "analytics.chat.message_sent"
)

// Event is the envelope on every analytics.* subject. Consumers that need
// typed properties decode Properties into their own struct.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher is safe to use as a nil pointer or without JetStream; both drop events.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
	now func() time.Time
}

func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// FromConn returns a live publisher when nc has JetStream and the stream can
// be ensured, and a dropping one otherwise.
func FromConn(nc *nats.Conn, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if nc == nil {
		return New(nil, log)
	}
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(1024))
	if err != nil {
		log.Warn("analytics: jetstream unavailable", zap.Error(err))
		return New(nil, log)
	}
	if err := EnsureStream(js, log); err != nil {
		log.Warn("analytics: stream unavailable", zap.Error(err))
		return New(nil, log)
	}
	return New(js, log)
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.js != nil
}

// Publish queues the event and returns immediately. The event id doubles as
// the JetStream message id.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if !p.Enabled() {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.EventID)
	if _, err := p.js.PublishMsgAsync(msg); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Drain waits for queued publishes to be acknowledged. It is meant as a
// shutdown hook.
func (p *Publisher) Drain(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		p.log.Warn("analytics: events still pending at shutdown", zap.Int("pending", p.js.PublishAsyncPending()))
		return ctx.Err()
	}
}

// Package worker feeds diary events into the social store.
package worker

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/services/social/internal/store"
)

const diaryLogsConsumer = "social_diary_logs"

// LogRecorder indexes diary logs for taste matching and the friends feed.
type LogRecorder interface {
	RecordLog(ctx context.Context, l store.LogEntry) error
}

type diaryLoggedEvent struct {
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	Properties struct {
		LogID      string    `json:"log_id"`
		MovieID    int64     `json:"tmdb_id"`
		Title      string    `json:"title"`
		PosterPath string    `json:"poster_path"`
		Rating     *int      `json:"rating"`
		Review     string    `json:"review"`
		WatchedAt  time.Time `json:"watched_at"`
	} `json:"properties"`
}

// DiaryLogConsumer pulls analytics.diary.logged events from JetStream.
// It is only started when the store is in-memory; with Postgres the
// social service reads the diary tables directly.
type DiaryLogConsumer struct {
	sub       *nats.Subscription
	rec       LogRecorder
	batchSize int
	wait      time.Duration
	log       *zap.Logger
}

func NewDiaryLogConsumer(nc *nats.Conn, rec LogRecorder, batchSize int, wait time.Duration, log *zap.Logger) (*DiaryLogConsumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if err := analytics.EnsureStream(js, log); err != nil {
		return nil, err
	}
	sub, err := js.PullSubscribe(analytics.SubjectMovieLogged, diaryLogsConsumer, nats.BindStream(analytics.StreamName))
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &DiaryLogConsumer{sub: sub, rec: rec, batchSize: batchSize, wait: wait, log: log}, nil
}

// Run processes messages until ctx is cancelled.
func (c *DiaryLogConsumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return
			}
			c.log.Error("diary consumer: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			c.handle(ctx, m)
		}
	}
}

func (c *DiaryLogConsumer) handle(ctx context.Context, m *nats.Msg) {
	var ev diaryLoggedEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil || ev.UserID == "" || ev.Properties.MovieID <= 0 {
		// Poison message; redelivery would not help.
		c.log.Warn("diary consumer: invalid event", zap.String("subject", m.Subject), zap.Error(err))
		_ = m.Term()
		return
	}
	logID := ev.Properties.LogID
	if logID == "" {
		logID = ev.EventID
	}
	err := c.rec.RecordLog(ctx, store.LogEntry{
		ID:         logID,
		UserID:     ev.UserID,
		MovieID:    ev.Properties.MovieID,
		Title:      ev.Properties.Title,
		PosterPath: ev.Properties.PosterPath,
		Rating:     ev.Properties.Rating,
		Review:     ev.Properties.Review,
		WatchedAt:  ev.Properties.WatchedAt,
	})
	if err != nil {
		c.log.Error("diary consumer: record log", zap.String("log_id", logID), zap.Error(err))
		if err := m.Nak(); err != nil {
			c.log.Warn("diary consumer: nak", zap.Error(err))
		}
		return
	}
	if err := m.Ack(); err != nil {
		c.log.Warn("diary consumer: ack", zap.Error(err))
	}
}

// Stop removes the pull subscription.
func (c *DiaryLogConsumer) Stop() {
	if err := c.sub.Unsubscribe(); err != nil {
		c.log.Debug("diary consumer: unsubscribe", zap.Error(err))
	}
}

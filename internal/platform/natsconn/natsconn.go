// Package natsconn opens the NATS connection each service shares for
// realtime fan-out, cache invalidation and analytics.
package natsconn

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/config"
)

// Options configures the connection. Zero values are read from NATS_* env vars.
type Options struct {
	URL           string
	Name          string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
	Logger        *zap.Logger
}

func (o *Options) applyEnv() {
	if o.URL == "" {
		o.URL = config.String("NATS_URL", nats.DefaultURL)
	}
	if o.Token == "" {
		o.Token = config.String("NATS_TOKEN", "")
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = config.Int("NATS_MAX_RECONNECTS", 5)
	}
	if o.ReconnectWait == 0 {
		o.ReconnectWait = config.Duration("NATS_RECONNECT_WAIT", 2*time.Second)
	}
	if o.Timeout == 0 {
		o.Timeout = config.Duration("NATS_CONNECT_TIMEOUT", 2*time.Second)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Connect dials once without retrying, so callers can fail fast or fall back.
// Once connected the client reconnects on its own.
func Connect(opts Options) (*nats.Conn, error) {
	opts.applyEnv()
	log := opts.Logger.With(zap.String("component", "nats"))

	natsOpts := []nats.Option{
		nats.Name(opts.Name),
		nats.Timeout(opts.Timeout),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Debug("connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Warn("async error", zap.String("subject", subject), zap.Error(err))
		}),
	}
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", opts.URL, err)
	}
	log.Info("connected", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/internal/platform/auth"
	"github.com/example/movie-diary/internal/platform/config"
	"github.com/example/movie-diary/internal/platform/db"
	"github.com/example/movie-diary/internal/platform/httpserver"
	"github.com/example/movie-diary/internal/platform/logging"
	"github.com/example/movie-diary/internal/platform/natsconn"
	"github.com/example/movie-diary/internal/platform/run"
	"github.com/example/movie-diary/internal/platform/signing"
	"github.com/example/movie-diary/migrations"
	"github.com/example/movie-diary/services/chat/internal/chat"
	"github.com/example/movie-diary/services/chat/internal/handlers"
	"github.com/example/movie-diary/services/chat/internal/hub"
	"github.com/example/movie-diary/services/chat/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	log = logging.ForService(log, cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	pool, err := db.OpenOptional(context.Background(), log, cfg.IsProduction())
	if err != nil {
		log.Error("postgres is required in production", zap.Error(err))
		run.Exit(1)
	}
	var st store.Store = store.NewInMemoryStore()
	if pool != nil {
		defer pool.Close()
		if err := db.Migrate(context.Background(), pool, migrations.FS, log); err != nil {
			log.Error("schema migration failed", zap.Error(err))
			run.Exit(1)
		}
		st = store.NewPostgresStore(pool)
	}

	// Realtime delivery needs a broker; development falls back to an in-process one.
	var nc *nats.Conn
	nc, err = natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	switch {
	case err == nil:
		defer nc.Close()
	case cfg.IsProduction():
		log.Error("nats is required in production", zap.Error(err))
		run.Exit(1)
	default:
		log.Warn("nats unavailable, starting embedded server", zap.Error(err))
		embedded, eerr := natsconn.StartEmbedded(cfg.ServiceName, config.String("NATS_STORE_DIR", ""), log)
		if eerr != nil {
			log.Warn("embedded nats failed, realtime disabled", zap.Error(eerr))
			nc = nil
		} else {
			defer embedded.Close()
			nc = embedded.Conn
		}
	}

	pub := analytics.FromConn(nc, log)
	svc := chat.New(st, nc, pub, log)
	h := hub.New(nc, svc, hub.Options{AllowedOrigins: cfg.HTTP.CORSOrigins, Logger: log})
	signer := signing.New(cfg.JWTSecret)
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		AllowedOrigins:    cfg.HTTP.CORSOrigins,
		RequestsPerMinute: cfg.HTTP.RequestsPerMinute,
		Logger:            log,
		ReadyFunc: func() error {
			if pool == nil {
				return nil
			}
			return pool.Ping(context.Background())
		},
	})

	r.Get("/v1/chat/ws", handlers.Socket(signer, h))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/chat/tickets", handlers.IssueTicket(signer))
		r.Post("/v1/chat/messages", handlers.SendMessage(svc, log))
		r.Get("/v1/chat/messages/{user_id}", handlers.History(svc))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Logger: log, Router: r})

	runner := run.New(log)
	runner.ShutdownTimeout = config.Duration("SHUTDOWN_TIMEOUT", run.DefaultShutdownTimeout)
	code := runner.WithSignals(func(context.Context) error {
		return srv.Start()
	}, pub.Drain, srv.Shutdown)

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/analytics"
	"github.com/example/movie-diary/internal/platform/auth"
	"github.com/example/movie-diary/internal/platform/config"
	"github.com/example/movie-diary/internal/platform/db"
	"github.com/example/movie-diary/internal/platform/httpserver"
	"github.com/example/movie-diary/internal/platform/logging"
	"github.com/example/movie-diary/internal/platform/natsconn"
	"github.com/example/movie-diary/internal/platform/run"
	"github.com/example/movie-diary/migrations"
	"github.com/example/movie-diary/services/diary/internal/diary"
	"github.com/example/movie-diary/services/diary/internal/handlers"
	"github.com/example/movie-diary/services/diary/internal/store"
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

	// Without NATS the social service sees no logs in development mode.
	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Warn("nats unavailable, running without analytics", zap.Error(err))
	} else {
		defer nc.Close()
	}

	pub := analytics.FromConn(nc, log)
	svc := diary.New(st, diary.Options{Publisher: pub, Logger: log})
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

	r.Get("/v1/diary/users/{user_id}/logs", handlers.ListLogs(svc))
	r.Get("/v1/badges/users/{user_id}", handlers.BadgeStatus(svc))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/diary/logs", handlers.ListLogs(svc))
		r.Post("/v1/diary/logs", handlers.CreateLog(svc, log))
		r.Put("/v1/diary/logs/{log_id}", handlers.UpdateLog(svc, log))

		r.Get("/v1/watchlist", handlers.ListWatchlist(svc))
		r.Get("/v1/watchlist/random", handlers.PickRandom(svc))
		r.Post("/v1/watchlist", handlers.AddToWatchlist(svc, log))
		r.Delete("/v1/watchlist/{movie_id}", handlers.RemoveFromWatchlist(svc))

		r.Get("/v1/badges", handlers.BadgeStatus(svc))
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

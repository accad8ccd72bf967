package main

import (
	"context"
	"time"

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
	"github.com/example/movie-diary/services/social/internal/affinity"
	"github.com/example/movie-diary/services/social/internal/graph"
	"github.com/example/movie-diary/services/social/internal/handlers"
	"github.com/example/movie-diary/services/social/internal/store"
	"github.com/example/movie-diary/services/social/internal/worker"
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

	var st store.Store
	var mem *store.InMemoryStore
	if pool != nil {
		defer pool.Close()
		if err := db.Migrate(context.Background(), pool, migrations.FS, log); err != nil {
			log.Error("schema migration failed", zap.Error(err))
			run.Exit(1)
		}
		st = store.NewPostgresStore(pool)
	} else {
		mem = store.NewInMemoryStore()
		st = mem
	}

	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Warn("nats unavailable, running without analytics", zap.Error(err))
	} else {
		defer nc.Close()
	}
	pub := analytics.FromConn(nc, log)

	// The in-memory store has no diary tables to read; it learns logs from events.
	var consumer *worker.DiaryLogConsumer
	if mem != nil && nc != nil {
		consumer, err = worker.NewDiaryLogConsumer(nc, mem,
			config.Int("WORKER_BATCH_SIZE", 100),
			config.Duration("WORKER_BATCH_INTERVAL", 2*time.Second),
			log)
		if err != nil {
			log.Warn("diary consumer disabled", zap.Error(err))
		}
	}

	matcher := affinity.NewMatcher(st, affinity.MatcherOptions{Logger: log})
	resolver := affinity.NewResolver(st, log)
	social := graph.New(st)
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

	r.Get("/v1/profiles", handlers.SearchProfiles(social))
	r.Get("/v1/profiles/{user_id}", handlers.GetProfile(st))
	r.Get("/v1/social/users/{user_id}/counts", handlers.Counts(social))
	r.Get("/v1/social/users/{user_id}/followers", handlers.Followers(social))
	r.Get("/v1/social/users/{user_id}/following", handlers.Following(social))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Put("/v1/profiles/me", handlers.UpsertMyProfile(st))
		r.Get("/v1/social/suggestions", handlers.Suggestions(matcher))
		r.Get("/v1/social/feed", handlers.Feed(social))
		r.Get("/v1/social/users/{user_id}/relationship", handlers.Relationship(resolver))
		r.Post("/v1/social/users/{user_id}/follow", handlers.ToggleFollow(social, resolver, pub, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Logger: log, Router: r})

	runner := run.New(log)
	runner.ShutdownTimeout = config.Duration("SHUTDOWN_TIMEOUT", run.DefaultShutdownTimeout)
	if consumer != nil {
		runner.Go("diary-log-consumer", func(ctx context.Context) {
			consumer.Run(ctx)
			consumer.Stop()
		})
	}
	code := runner.WithSignals(func(context.Context) error {
		return srv.Start()
	}, pub.Drain, srv.Shutdown)

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

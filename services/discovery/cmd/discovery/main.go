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
	"github.com/example/movie-diary/migrations"
	"github.com/example/movie-diary/services/discovery/internal/cache"
	discoveryconfig "github.com/example/movie-diary/services/discovery/internal/config"
	"github.com/example/movie-diary/services/discovery/internal/engine"
	"github.com/example/movie-diary/services/discovery/internal/handlers"
	"github.com/example/movie-diary/services/discovery/internal/store"
	"github.com/example/movie-diary/services/discovery/internal/tmdb"
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

	dcfg, err := discoveryconfig.LoadDiscovery(cfg.IsProduction())
	if err != nil {
		log.Error("load discovery config", zap.Error(err))
		run.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.OpenOptional(ctx, log, cfg.IsProduction())
	if err != nil {
		log.Error("postgres is required in production", zap.Error(err))
		run.Exit(1)
	}
	var hidden store.HiddenStore = store.NewInMemoryHiddenStore()
	if pool != nil {
		defer pool.Close()
		if err := db.Migrate(ctx, pool, migrations.FS, log); err != nil {
			log.Error("schema migration failed", zap.Error(err))
			run.Exit(1)
		}
		hidden = store.NewPostgresHiddenStore(pool)
	}

	// NATS is optional: without it there is no cross-replica invalidation and no analytics.
	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Warn("nats unavailable, running without invalidation and analytics", zap.Error(err))
	} else {
		defer nc.Close()
	}
	pub := analytics.FromConn(nc, log)

	respCache := initCache(ctx, dcfg, nc, log)

	client := tmdb.New(tmdb.Options{
		BaseURL:   dcfg.TMDBBaseURL,
		ReadToken: dcfg.TMDBReadToken,
		RPS:       dcfg.TMDBRPS,
		Logger:    log,
	})
	provider := cache.NewProvider(client, respCache, log)

	registry := engine.NewRegistry(engine.Config{
		Provider: provider,
		Hidden:   hidden,
		Region:   dcfg.Region,
		Logger:   log,

		MaxSessionsPerUser: dcfg.MaxSessions,
	}, dcfg.SessionTTL)

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

	r.Get("/v1/movies/trending", handlers.Trending(provider, log))
	r.Get("/v1/movies/{movie_id}", handlers.GetMovie(provider, dcfg.Region, log))
	r.Get("/v1/movies/{movie_id}/images", handlers.GetImages(provider, log))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/discovery/sessions", handlers.CreateSession(registry, pub))
		r.Get("/v1/discovery/sessions/{session_id}", handlers.GetSession(registry))
		r.Post("/v1/discovery/sessions/{session_id}/mode", handlers.SwitchMode(registry, pub))
		r.Post("/v1/discovery/sessions/{session_id}/filters", handlers.ApplyFilters(registry))
		r.Post("/v1/discovery/sessions/{session_id}/runtime", handlers.SetRuntime(registry))
		r.Post("/v1/discovery/sessions/{session_id}/next", handlers.NextPage(registry))
		r.Delete("/v1/discovery/sessions/{session_id}", handlers.CloseSession(registry))

		r.Get("/v1/hidden", handlers.ListHidden(hidden))
		r.Post("/v1/hidden", handlers.HideMovie(hidden, registry, pub))
		r.Delete("/v1/hidden/{movie_id}", handlers.UnhideMovie(hidden))

		r.With(auth.RequireAdmin).Post("/v1/admin/discovery/cache/purge", handlers.PurgeCache(respCache, nc, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Logger: log, Router: r})

	runner := run.New(log).Go("session-sweeper", registry.Run)
	runner.ShutdownTimeout = config.Duration("SHUTDOWN_TIMEOUT", run.DefaultShutdownTimeout)
	code := runner.WithSignals(func(context.Context) error {
		return srv.Start()
	}, pub.Drain, srv.Shutdown)

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initCache prefers Redis when REDIS_ADDR is set and reachable, otherwise an
// in-memory cache kept coherent over NATS.
func initCache(ctx context.Context, dcfg discoveryconfig.DiscoveryConfig, nc *nats.Conn, log *zap.Logger) cache.Cache {
	if dcfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, dcfg.RedisAddr, dcfg.RedisPassword)
		if err == nil {
			log.Info("discovery cache: redis", zap.String("addr", dcfg.RedisAddr))
			return cache.NewRedisCache(rdb, dcfg.CacheTTL, log)
		}
		log.Warn("redis unavailable, falling back to in-memory cache", zap.Error(err))
	}

	mem := cache.NewTTLCache(dcfg.CacheTTL)
	if nc != nil {
		if _, err := cache.SubscribeInvalidations(nc, mem, log); err != nil {
			log.Warn("subscribe cache invalidation", zap.Error(err))
		}
	}
	log.Info("discovery cache: memory")
	return mem
}

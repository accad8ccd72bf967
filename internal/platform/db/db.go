package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/config"
)

// ErrNoDatabaseURL is returned by Open when DATABASE_URL is empty.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is required")

// PoolOptions sizes the connection pool. Zero fields take DB_* environment values.
type PoolOptions struct {
	MaxConns       int
	MinConns       int
	MaxIdle        time.Duration
	ConnectTimeout time.Duration
}

func (o *PoolOptions) applyEnv() {
	if o.MaxConns <= 0 {
		o.MaxConns = config.Int("DB_MAX_CONNS", 10)
	}
	if o.MaxConns <= 0 {
		o.MaxConns = 10
	}
	if o.MinConns <= 0 {
		o.MinConns = config.Int("DB_MIN_CONNS", 1)
	}
	if o.MinConns > o.MaxConns {
		o.MinConns = o.MaxConns
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = config.Duration("DB_MAX_CONN_IDLE", 5*time.Minute)
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = config.Duration("DB_CONNECT_TIMEOUT", 5*time.Second)
	}
}

// Open connects to DATABASE_URL and pings once before returning the pool.
func Open(ctx context.Context, opts PoolOptions) (*pgxpool.Pool, error) {
	dsn := config.String("DATABASE_URL", "")
	if dsn == "" {
		return nil, ErrNoDatabaseURL
	}
	opts.applyEnv()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = int32(opts.MaxConns)
	cfg.MinConns = int32(opts.MinConns)
	cfg.MaxConnIdleTime = opts.MaxIdle
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// OpenOptional is Open for services with in-memory stores.
// Outside production a missing or unreachable database yields (nil, nil) and a warning,
// and callers fall back to their in-memory store. In production it is an error.
func OpenOptional(ctx context.Context, log *zap.Logger, production bool) (*pgxpool.Pool, error) {
	pool, err := Open(ctx, PoolOptions{})
	switch {
	case err == nil:
		log.Info("stores: postgres", zap.Int32("max_conns", pool.Config().MaxConns))
		return pool, nil
	case production:
		return nil, err
	case errors.Is(err, ErrNoDatabaseURL):
		log.Warn("DATABASE_URL not set, using in-memory stores (development only)")
	default:
		log.Warn("postgres unavailable, falling back to in-memory stores", zap.Error(err))
	}
	return nil, nil
}

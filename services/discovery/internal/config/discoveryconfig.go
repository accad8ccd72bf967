package config

import (
	"errors"
	"strconv"
	"time"

	"github.com/example/movie-diary/internal/platform/config"
	"github.com/example/movie-diary/services/discovery/internal/engine"
	"github.com/example/movie-diary/services/discovery/internal/tmdb"
)

type DiscoveryConfig struct {
	TMDBReadToken string
	TMDBBaseURL   string
	TMDBRPS       float64
	Region        string
	SessionTTL    time.Duration
	MaxSessions   int
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
}

func LoadDiscovery(production bool) (DiscoveryConfig, error) {
	cfg := DiscoveryConfig{
		TMDBReadToken: config.String("TMDB_READ_TOKEN", ""),
		TMDBBaseURL:   config.String("TMDB_BASE_URL", tmdb.DefaultBaseURL),
		TMDBRPS:       40,
		Region:        config.String("DISCOVERY_REGION", engine.DefaultRegion),
		SessionTTL:    config.Duration("DISCOVERY_SESSION_TTL", engine.DefaultSessionTTL),
		MaxSessions:   config.Int("DISCOVERY_MAX_SESSIONS_PER_USER", engine.DefaultMaxSessionsPerUser),
		CacheTTL:      config.Duration("DISCOVERY_CACHE_TTL", 10*time.Minute),
		RedisAddr:     config.String("REDIS_ADDR", ""),
		RedisPassword: config.String("REDIS_PASSWORD", ""),
	}
	if v := config.String("TMDB_RPS", ""); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return DiscoveryConfig{}, errors.New("TMDB_RPS must be a non-negative number")
		}
		cfg.TMDBRPS = rps
	}
	if production && cfg.TMDBReadToken == "" {
		return DiscoveryConfig{}, errors.New("TMDB_READ_TOKEN is required in production")
	}
	return cfg, nil
}

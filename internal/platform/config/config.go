package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr        string
	CORSOrigins string
	// RequestsPerMinute is the per-IP budget enforced by the router; 0 disables it.
	RequestsPerMinute int
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	JWTSecret   string
	// JWTIssuer and JWTAudience are checked against incoming tokens when set.
	JWTIssuer   string
	JWTAudience string
	HTTP        HTTPConfig
}

// IsProduction reports whether in-memory fallbacks must be refused.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads the shared service configuration from the environment.
// A .env file in the working directory is applied first when present;
// variables already set in the process environment win.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName: String("SERVICE_NAME", ""),
		Env:         String("APP_ENV", "development"),
		LogLevel:    String("LOG_LEVEL", "info"),
		JWTSecret:   String("JWT_SECRET", ""),
		JWTIssuer:   String("JWT_ISSUER", ""),
		JWTAudience: String("JWT_AUDIENCE", ""),
		HTTP: HTTPConfig{
			Addr:              String("HTTP_ADDR", ":8080"),
			CORSOrigins:       String("CORS_ALLOWED_ORIGINS", ""),
			RequestsPerMinute: Int("HTTP_RATE_LIMIT_PER_MIN", 600),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}

// String returns the trimmed value of key or fallback when unset.
func String(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// Int returns key parsed as a non-negative integer or fallback.
func Int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// Duration returns key parsed with time.ParseDuration or fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

package config

import (
	"testing"
	"time"
)

func TestLoadDiscovery_Defaults(t *testing.T) {
	t.Setenv("TMDB_READ_TOKEN", "")
	t.Setenv("TMDB_RPS", "")
	t.Setenv("DISCOVERY_REGION", "")
	t.Setenv("DISCOVERY_SESSION_TTL", "")
	cfg, err := LoadDiscovery(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Region != "MX" || cfg.TMDBRPS != 40 || cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadDiscovery_ProductionNeedsToken(t *testing.T) {
	t.Setenv("TMDB_READ_TOKEN", "")
	if _, err := LoadDiscovery(true); err == nil {
		t.Fatal("expected error without TMDB_READ_TOKEN in production")
	}
}

func TestLoadDiscovery_InvalidRPS(t *testing.T) {
	t.Setenv("TMDB_RPS", "fast")
	if _, err := LoadDiscovery(false); err == nil {
		t.Fatal("expected error for invalid TMDB_RPS")
	}
}

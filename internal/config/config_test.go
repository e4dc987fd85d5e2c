package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.TrackMaxJumpM != 100 {
		t.Fatalf("expected default max jump, got %v", cfg.TrackMaxJumpM)
	}
	if cfg.TrackOverSpeedRejects {
		t.Fatalf("over-speed should default to report-only")
	}
	if cfg.HRSilenceSec != 20 || cfg.HRWatchdogSec != 10 {
		t.Fatalf("unexpected heart-rate defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("TRACK_MAX_JUMP_M", "500")
	t.Setenv("TRACK_OVERSPEED_REJECTS", "true")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.NatsURL != "nats://broker:4222" {
		t.Fatalf("expected override nats")
	}
	if cfg.TrackMaxJumpM != 500 {
		t.Fatalf("expected override max jump, got %v", cfg.TrackMaxJumpM)
	}
	if !cfg.TrackOverSpeedRejects {
		t.Fatalf("expected override over-speed policy")
	}
}

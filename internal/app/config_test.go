package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("CONFIG_FILE")
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_MODE")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port: want=8080 got=%s", cfg.Port)
	}
	if got := cfg.Generation.RunTimeout.Std(); got != 45*time.Minute {
		t.Fatalf("run timeout: want=45m got=%v", got)
	}
	if cfg.Worker.Concurrency != 2 {
		t.Fatalf("concurrency: want=2 got=%d", cfg.Worker.Concurrency)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	raw := `
port: "9090"
log_mode: production
generation:
  max_attempts: 5
  backoff: 500ms
  call_timeout: 30s
  run_timeout: 10m
worker:
  concurrency: 4
  poll_interval: 250ms
  heartbeat_interval: 5s
  stale_after: 1m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port: want=9090 got=%s", cfg.Port)
	}
	if cfg.Generation.MaxAttempts != 5 {
		t.Fatalf("max attempts: want=5 got=%d", cfg.Generation.MaxAttempts)
	}
	if got := cfg.Generation.Backoff.Std(); got != 500*time.Millisecond {
		t.Fatalf("backoff: want=500ms got=%v", got)
	}
	if got := cfg.Worker.StaleAfter.Std(); got != time.Minute {
		t.Fatalf("stale after: want=1m got=%v", got)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	os.Unsetenv("CONFIG_FILE")
	t.Setenv("PORT", "3001")
	t.Setenv("LOG_MODE", "production")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "3001" {
		t.Fatalf("port: want=3001 got=%s", cfg.Port)
	}
	if cfg.LogMode != "production" {
		t.Fatalf("log mode: want=production got=%s", cfg.LogMode)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	raw := "generation:\n  backoff: soon\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("want parse error for invalid duration")
	}
}

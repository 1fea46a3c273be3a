package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.WorkerCount)
	}
	if cfg.PollWaitTime != 20*time.Second {
		t.Fatalf("expected default poll wait, got %s", cfg.PollWaitTime)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected default email provider ses, got %s", cfg.EmailProvider)
	}
	if cfg.DefaultTimezone != "UTC" {
		t.Fatalf("expected default timezone UTC, got %s", cfg.DefaultTimezone)
	}
	if cfg.CatalogCacheTTL != 5*time.Minute {
		t.Fatalf("expected default catalog cache ttl, got %s", cfg.CatalogCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("WORKER_COUNT", "5")
	t.Setenv("POLL_WAIT_TIME", "5s")
	t.Setenv("EMAIL_PROVIDER", "SendGrid")
	t.Setenv("BUSINESS_HOURS_START", "07:30")
	t.Setenv("CATALOG_CACHE_TTL", "90s")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis override, got %s", cfg.RedisAddr)
	}
	if cfg.WorkerCount != 5 {
		t.Fatalf("expected worker count override, got %d", cfg.WorkerCount)
	}
	if cfg.PollWaitTime != 5*time.Second {
		t.Fatalf("expected poll wait override, got %s", cfg.PollWaitTime)
	}
	if cfg.EmailProvider != "sendgrid" {
		t.Fatalf("expected provider lowered, got %s", cfg.EmailProvider)
	}
	if cfg.BusinessHoursStart != "07:30" {
		t.Fatalf("expected business hours override, got %s", cfg.BusinessHoursStart)
	}
	if cfg.CatalogCacheTTL != 90*time.Second {
		t.Fatalf("expected catalog ttl override, got %s", cfg.CatalogCacheTTL)
	}
}

func TestGetEnvAsIntInvalidFallsBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected fallback worker count, got %d", cfg.WorkerCount)
	}
}

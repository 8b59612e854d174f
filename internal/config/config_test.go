package config

import (
	"testing"
	"time"

	"cronsched/internal/apperr"
)

func TestLoad_RequiresDBConnectionString(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when DB_CONNECTION_STRING is missing")
	}
	if apperr.KindOf(err) != apperr.FatalConfig {
		t.Fatalf("expected FatalConfig kind, got %v", apperr.KindOf(err))
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("expected Port 3000, got %d", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected Env development, got %s", cfg.Env)
	}
	if cfg.Timezone != "Asia/Kolkata" {
		t.Errorf("expected Timezone Asia/Kolkata, got %s", cfg.Timezone)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("expected SyncInterval 30s, got %v", cfg.SyncInterval)
	}
	if cfg.DrainTimeout != 30*time.Second {
		t.Errorf("expected DrainTimeout 30s, got %v", cfg.DrainTimeout)
	}
	if cfg.CacheMaxEntries != 1000 {
		t.Errorf("expected CacheMaxEntries 1000, got %d", cfg.CacheMaxEntries)
	}
	if cfg.ExecutionRetentionDays != 90 {
		t.Errorf("expected ExecutionRetentionDays 90, got %d", cfg.ExecutionRetentionDays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://custom/db")
	t.Setenv("PORT", "9090")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SYNC_INTERVAL", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected Port 9090, got %d", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction true")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" {
		t.Errorf("unexpected AllowedOrigins: %#v", cfg.AllowedOrigins)
	}
	if cfg.SyncInterval != 10*time.Second {
		t.Errorf("expected SyncInterval 10s, got %v", cfg.SyncInterval)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/test")
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid PORT")
	}
	if apperr.KindOf(err) != apperr.FatalConfig {
		t.Fatalf("expected FatalConfig kind, got %v", apperr.KindOf(err))
	}
}

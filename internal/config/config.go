// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cronsched/internal/apperr"
)

// Config holds every environment-driven setting for the scheduler process.
type Config struct {
	// DBConnectionString is the Postgres DSN, or sqlite://<path> to use the
	// SQLite backend. Required.
	DBConnectionString string
	// Port is the HTTP listen port.
	Port int
	// Env is NODE_ENV; "production" switches logging to rotating JSON files.
	Env string
	// JWTSecret is opaque to this module; the identity layer is out of scope
	// but the value is threaded through so middleware composition has it.
	JWTSecret string
	// Timezone is informational only — cron evaluation always uses IST
	// regardless of this value, per the scheduling engine's design.
	Timezone string
	// AllowedOrigins is the raw ALLOWED_ORIGINS list, comma-separated.
	AllowedOrigins []string

	// SyncInterval is how often the scheduler reconciles against the store.
	SyncInterval time.Duration
	// DrainTimeout bounds how long Stop() waits for in-flight executions.
	DrainTimeout time.Duration
	// CacheMaxEntries bounds the in-process cache size.
	CacheMaxEntries int
	// ExecutionRetentionDays is how long completed executions are kept
	// before the daily cleanup ticker purges them.
	ExecutionRetentionDays int
}

// Load reads Config from the environment, applying the defaults named in
// the control-plane contract.
func Load() (*Config, error) {
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		return nil, apperr.New(apperr.FatalConfig, "DB_CONNECTION_STRING is required")
	}

	port, err := envInt("PORT", 3000)
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalConfig, "invalid PORT", err)
	}

	env := envOr("NODE_ENV", "development")
	timezone := envOr("TIMEZONE", "Asia/Kolkata")

	var origins []string
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	syncInterval, err := envDuration("SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalConfig, "invalid SYNC_INTERVAL", err)
	}

	drainTimeout, err := envDuration("SCHEDULER_DRAIN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalConfig, "invalid SCHEDULER_DRAIN_TIMEOUT", err)
	}

	cacheMax, err := envInt("CACHE_MAX_ENTRIES", 1000)
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalConfig, "invalid CACHE_MAX_ENTRIES", err)
	}

	retentionDays, err := envInt("EXECUTION_RETENTION_DAYS", 90)
	if err != nil {
		return nil, apperr.Wrap(apperr.FatalConfig, "invalid EXECUTION_RETENTION_DAYS", err)
	}

	return &Config{
		DBConnectionString:     dsn,
		Port:                   port,
		Env:                    env,
		JWTSecret:              os.Getenv("JWT_SECRET"),
		Timezone:               timezone,
		AllowedOrigins:         origins,
		SyncInterval:           syncInterval,
		DrainTimeout:           drainTimeout,
		CacheMaxEntries:        cacheMax,
		ExecutionRetentionDays: retentionDays,
	}, nil
}

// IsProduction reports whether stack traces should be suppressed.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

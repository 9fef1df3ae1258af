// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package config loads and validates Paceboard configuration.
//
// Configuration is layered with koanf v2, lowest to highest precedence:
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (CRM_BASE_URL, GATEWAY_MIN_SPACING, ...)
//
// Every empirically tuned threshold in the system (gateway spacing,
// rate-limit cooldown, memoization TTLs, backfill lookback, recurring
// interval, minimum tracked time for a rate) is a config key here, not
// a constant buried in the package that uses it. The Config returned by
// Load is immutable and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	CRM         CRMConfig         `koanf:"crm"`
	Gateway     GatewayConfig     `koanf:"gateway"`
	Database    DatabaseConfig    `koanf:"database"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Sync        SyncConfig        `koanf:"sync"`
	Leaderboard LeaderboardConfig `koanf:"leaderboard"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// CRMConfig holds the upstream CRM connection settings.
//
// Environment Variables:
//   - CRM_BASE_URL: API root, e.g. https://api.example-crm.com
//   - CRM_USERNAME / CRM_API_TOKEN: basic-auth credentials
//   - CRM_TIMEOUT: per-request timeout (default: 30s)
//   - CRM_PAGE_SIZE: directory page size (default: 200)
type CRMConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	Username string        `koanf:"username" validate:"required"`
	APIToken string        `koanf:"api_token" validate:"required"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	PageSize int           `koanf:"page_size" validate:"gte=1,lte=1000"`
}

// GatewayConfig tunes the rate-limited gateway. The defaults encode the
// upstream's observed tolerance: two concurrent requests, three seconds
// between request starts, a ten second cooldown after a 429.
//
// Environment Variables:
//   - GATEWAY_MAX_CONCURRENT (default: 2)
//   - GATEWAY_MIN_SPACING (default: 3s)
//   - GATEWAY_RATE_LIMIT_COOLDOWN (default: 10s)
//   - GATEWAY_FALLBACK_MAX_AGE (default: 5m)
type GatewayConfig struct {
	MaxConcurrent     int           `koanf:"max_concurrent" validate:"gte=1,lte=32"`
	MinSpacing        time.Duration `koanf:"min_spacing" validate:"gte=0"`
	RateLimitCooldown time.Duration `koanf:"rate_limit_cooldown" validate:"gte=0"`
	FallbackMaxAge    time.Duration `koanf:"fallback_max_age" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DUCKDB_PATH (default: /data/paceboard.duckdb)
//   - DUCKDB_MAX_MEMORY (default: 1GB)
//   - DUCKDB_THREADS (default: 0 = runtime.NumCPU())
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// MetricsConfig tunes the day-bucketed metric cache.
//
// Timezone is the reference timezone in which calendar days are cut;
// every bucket boundary, merge-policy day classification and backfill
// window uses it. Changing it on an existing database invalidates the
// stored day buckets.
//
// ZeroResultTTL and ResultTTL are the asymmetric memoization TTLs for
// ranged reads: zero totals usually mean "not synced yet" and must
// expire quickly, non-zero totals only change at the sync cadence.
//
// Environment Variables:
//   - METRIC_TIMEZONE (default: UTC)
//   - METRIC_ZERO_RESULT_TTL (default: 10s)
//   - METRIC_RESULT_TTL (default: 2m)
type MetricsConfig struct {
	Timezone      string        `koanf:"timezone" validate:"required"`
	ZeroResultTTL time.Duration `koanf:"zero_result_ttl" validate:"gt=0"`
	ResultTTL     time.Duration `koanf:"result_ttl" validate:"gt=0"`
}

// SyncConfig tunes the scheduler.
//
// Environment Variables:
//   - SYNC_INTERVAL: recurring pass cadence (default: 15s)
//   - SYNC_BACKFILL_DAYS: historical lookback (default: 30)
//   - SYNC_INTER_DAY_DELAY: pause between backfill days (default: 2s)
//   - SYNC_BACKFILL_ON_START: run a backfill at startup (default: true)
type SyncConfig struct {
	Interval        time.Duration `koanf:"interval" validate:"gt=0"`
	BackfillDays    int           `koanf:"backfill_days" validate:"gte=1,lte=3650"`
	InterDayDelay   time.Duration `koanf:"inter_day_delay" validate:"gte=0"`
	BackfillOnStart bool          `koanf:"backfill_on_start"`
}

// LeaderboardConfig tunes rate derivation.
//
// MinTracked is the minimum tracked time before a per-hour rate is
// computed; below it the entry renders pending to avoid absurd rates
// from tiny denominators.
//
// Environment Variables:
//   - LEADERBOARD_MIN_TRACKED (default: 5m)
type LeaderboardConfig struct {
	MinTracked time.Duration `koanf:"min_tracked" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT (default: 3857), HTTP_HOST (default: 0.0.0.0)
//   - HTTP_TIMEOUT (default: 30s)
//   - CORS_ORIGINS: comma-separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: API guard (default: 100/1m)
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Host            string        `koanf:"host" validate:"required"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL (default: info), LOG_FORMAT (default: json)
//   - LOG_CALLER (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

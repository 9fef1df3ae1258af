// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/paceboard/config.yaml",
	"/etc/paceboard/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied. These are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		CRM: CRMConfig{
			BaseURL:  "",
			Username: "",
			APIToken: "",
			Timeout:  30 * time.Second,
			PageSize: 200,
		},
		Gateway: GatewayConfig{
			MaxConcurrent:     2,
			MinSpacing:        3 * time.Second,
			RateLimitCooldown: 10 * time.Second,
			FallbackMaxAge:    5 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/paceboard.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Metrics: MetricsConfig{
			Timezone:      "UTC",
			ZeroResultTTL: 10 * time.Second,
			ResultTTL:     2 * time.Minute,
		},
		Sync: SyncConfig{
			Interval:        15 * time.Second,
			BackfillDays:    30,
			InterDayDelay:   2 * time.Second,
			BackfillOnStart: true,
		},
		Leaderboard: LeaderboardConfig{
			MinTracked: 5 * time.Minute,
		},
		Server: ServerConfig{
			Port:            3857,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using koanf v2 with layered sources
// (defaults, then an optional YAML file, then environment variables)
// and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, preferring the
// CONFIG_PATH override, or "" if none is found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as env var strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings; YAML values are
// already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps flat environment variable names (lowercased) to
// nested config paths.
var envMappings = map[string]string{
	// CRM mappings
	"crm_base_url":  "crm.base_url",
	"crm_username":  "crm.username",
	"crm_api_token": "crm.api_token",
	"crm_timeout":   "crm.timeout",
	"crm_page_size": "crm.page_size",

	// Gateway mappings
	"gateway_max_concurrent":      "gateway.max_concurrent",
	"gateway_min_spacing":         "gateway.min_spacing",
	"gateway_rate_limit_cooldown": "gateway.rate_limit_cooldown",
	"gateway_fallback_max_age":    "gateway.fallback_max_age",

	// Database mappings
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Metric cache mappings
	"metric_timezone":        "metrics.timezone",
	"metric_zero_result_ttl": "metrics.zero_result_ttl",
	"metric_result_ttl":      "metrics.result_ttl",

	// Sync mappings
	"sync_interval":          "sync.interval",
	"sync_backfill_days":     "sync.backfill_days",
	"sync_inter_day_delay":   "sync.inter_day_delay",
	"sync_backfill_on_start": "sync.backfill_on_start",

	// Leaderboard mappings
	"leaderboard_min_tracked": "leaderboard.min_tracked",

	// Server mappings
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unknown variables are dropped so unrelated process env never leaks
// into the config tree.
//
// Examples:
//   - CRM_BASE_URL -> crm.base_url
//   - GATEWAY_MIN_SPACING -> gateway.min_spacing
//   - SYNC_BACKFILL_DAYS -> sync.backfill_days
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

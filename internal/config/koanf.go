// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

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

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mediasync/config.yaml",
	"/etc/mediasync/config.yml",
}

// ConfigPathEnvVar names the environment variable holding an explicit config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Job type names. Kept here so config defaults and the queue agree.
const (
	JobFullSync             = "full-sync"
	JobUsersSync            = "users-sync"
	JobLibrariesSync        = "libraries-sync"
	JobItemsSync            = "items-sync"
	JobActivitiesSync       = "activities-sync"
	JobRecentItemsSync      = "recent-items-sync"
	JobRecentActivitiesSync = "recent-activities-sync"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3004,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/mediasync.duckdb",
			MaxMemory: "1GB",
		},
		Queue: QueueConfig{
			Path:                "/data/queue",
			PollInterval:        2 * time.Second,
			MaintenanceInterval: 30 * time.Second,
			RetryLimit:          2,
			RetryDelay:          time.Minute,
			ExpireIn:            4 * time.Hour,
			RetentionPeriod:     7 * 24 * time.Hour,
			Teams: map[string]TeamConfig{
				// Full syncs are heavy on the upstream API; one at a time.
				JobFullSync:             {TeamSize: 1, TeamConcurrency: 1},
				JobUsersSync:            {TeamSize: 1, TeamConcurrency: 2},
				JobLibrariesSync:        {TeamSize: 1, TeamConcurrency: 2},
				JobItemsSync:            {TeamSize: 1, TeamConcurrency: 1},
				JobActivitiesSync:       {TeamSize: 1, TeamConcurrency: 1},
				JobRecentItemsSync:      {TeamSize: 1, TeamConcurrency: 2},
				JobRecentActivitiesSync: {TeamSize: 1, TeamConcurrency: 2},
			},
		},
		Sync: SyncConfig{
			ItemsPageSize:            500,
			ActivityPageSize:         100,
			LibraryConcurrency:       2,
			ItemConcurrency:          5,
			EntityConcurrency:        5,
			ActivityMaxPages:         50,
			RecentItemsLimit:         100,
			SchedulerEnabled:         true,
			FullSyncInterval:         24 * time.Hour,
			RecentItemsInterval:      15 * time.Minute,
			RecentActivitiesInterval: 5 * time.Minute,
		},
		Client: ClientConfig{
			MaxConcurrent:         10,
			RateLimitPerSecond:    10,
			MaxRetries:            3,
			MinTimeout:            time.Second,
			MaxTimeout:            30 * time.Second,
			RequestTimeout:        60 * time.Second,
			CircuitBreakerEnabled: true,
		},
		Poller: PollerConfig{
			Enabled:     true,
			Interval:    5 * time.Second,
			Unthrottled: true,
		},
		NATS: NATSConfig{
			Enabled:     false,
			URL:         "nats://127.0.0.1:4222",
			StreamName:  "MEDIASYNC",
			DurableName: "mediasync",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 layering.
func LoadWithKoanf() (*Config, error) {
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

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			if err := k.Set(path, parts); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"http_host":         "server.host",
	"http_port":         "server.port",
	"http_timeout":      "server.timeout",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_reqs",
	"rate_limit_window": "server.rate_limit_window",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"queue_path":             "queue.path",
	"queue_poll_interval":    "queue.poll_interval",
	"queue_retry_limit":      "queue.retry_limit",
	"queue_retry_delay":      "queue.retry_delay",
	"queue_expire_in":        "queue.expire_in",
	"queue_retention_period": "queue.retention_period",

	"sync_items_page_size":            "sync.items_page_size",
	"sync_activity_page_size":         "sync.activity_page_size",
	"sync_library_concurrency":        "sync.library_concurrency",
	"sync_item_concurrency":           "sync.item_concurrency",
	"sync_activity_max_pages":         "sync.activity_max_pages",
	"sync_scheduler_enabled":          "sync.scheduler_enabled",
	"sync_full_interval":              "sync.full_sync_interval",
	"sync_recent_items_interval":      "sync.recent_items_interval",
	"sync_recent_activities_interval": "sync.recent_activities_interval",

	"api_max_concurrent":   "client.max_concurrent",
	"api_rate_limit":       "client.rate_limit_per_second",
	"api_max_retries":      "client.max_retries",
	"api_min_timeout":      "client.min_timeout",
	"api_max_timeout":      "client.max_timeout",
	"api_request_timeout":  "client.request_timeout",
	"api_circuit_breaker":  "client.circuit_breaker_enabled",

	"session_poll_enabled":     "poller.enabled",
	"session_poll_interval":    "poller.interval",
	"session_poll_unthrottled": "poller.unthrottled",

	"nats_enabled":      "nats.enabled",
	"nats_url":          "nats.url",
	"nats_stream":       "nats.stream_name",
	"nats_durable_name": "nats.durable_name",

	"encryption_secret": "security.encryption_secret",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"jellyfin_enabled":   "jellyfin.enabled",
	"jellyfin_server_id": "jellyfin.server_id",
	"jellyfin_name":      "jellyfin.name",
	"jellyfin_url":       "jellyfin.url",
	"jellyfin_api_key":   "jellyfin.api_key",
}

// envTransformFunc maps an environment variable to its koanf path. Unknown
// variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

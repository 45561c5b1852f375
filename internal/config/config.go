// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

// Package config loads and validates Mediasync configuration.
//
// Configuration is layered with Koanf v2 (later sources win):
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Environment variables (see envMappings)
//
// Media servers are configured either as a single server through the
// JELLYFIN_* environment variables or as a jellyfin_servers list in YAML.
package config

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Queue    QueueConfig    `koanf:"queue"`
	Sync     SyncConfig     `koanf:"sync"`
	Client   ClientConfig   `koanf:"client"`
	Poller   PollerConfig   `koanf:"poller"`
	NATS     NATSConfig     `koanf:"nats"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`

	// Jellyfin is the single-server shorthand, typically set from the environment.
	Jellyfin MediaServerConfig `koanf:"jellyfin"`

	// JellyfinServers takes precedence over Jellyfin when non-empty.
	JellyfinServers []MediaServerConfig `koanf:"jellyfin_servers"`
}

// ServerConfig configures the HTTP status/enqueue API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// QueueConfig configures the durable job queue.
type QueueConfig struct {
	// Path is the BadgerDB directory. Empty runs the queue in memory.
	Path                string        `koanf:"path"`
	PollInterval        time.Duration `koanf:"poll_interval"`
	MaintenanceInterval time.Duration `koanf:"maintenance_interval"`
	RetryLimit          int           `koanf:"retry_limit"`
	RetryDelay          time.Duration `koanf:"retry_delay"`
	ExpireIn            time.Duration `koanf:"expire_in"`
	RetentionPeriod     time.Duration `koanf:"retention_period"`

	// Teams bounds concurrency per job type: team_size workers each running
	// up to team_concurrency jobs.
	Teams map[string]TeamConfig `koanf:"teams"`
}

// TeamConfig is the (teamSize, teamConcurrency) pair of one job type.
type TeamConfig struct {
	TeamSize        int `koanf:"team_size"`
	TeamConcurrency int `koanf:"team_concurrency"`
}

// SyncConfig configures the entity pipelines and the recurring schedule.
type SyncConfig struct {
	ItemsPageSize      int `koanf:"items_page_size"`
	ActivityPageSize   int `koanf:"activity_page_size"`
	LibraryConcurrency int `koanf:"library_concurrency"`
	ItemConcurrency    int `koanf:"item_concurrency"`
	EntityConcurrency  int `koanf:"entity_concurrency"`
	ActivityMaxPages   int `koanf:"activity_max_pages"`
	RecentItemsLimit   int `koanf:"recent_items_limit"`

	SchedulerEnabled         bool          `koanf:"scheduler_enabled"`
	FullSyncInterval         time.Duration `koanf:"full_sync_interval"`
	RecentItemsInterval      time.Duration `koanf:"recent_items_interval"`
	RecentActivitiesInterval time.Duration `koanf:"recent_activities_interval"`
}

// ClientConfig configures the rate-limited media server client.
type ClientConfig struct {
	MaxConcurrent         int           `koanf:"max_concurrent"`
	RateLimitPerSecond    float64       `koanf:"rate_limit_per_second"`
	MaxRetries            int           `koanf:"max_retries"`
	MinTimeout            time.Duration `koanf:"min_timeout"`
	MaxTimeout            time.Duration `koanf:"max_timeout"`
	RequestTimeout        time.Duration `koanf:"request_timeout"`
	CircuitBreakerEnabled bool          `koanf:"circuit_breaker_enabled"`
}

// PollerConfig configures the live session poller.
type PollerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`

	// Unthrottled polls sessions without the rate limiter or retries; the
	// next tick is the retry.
	Unthrottled bool `koanf:"unthrottled"`
}

// NATSConfig configures the optional NATS JetStream event transport.
// When disabled, events stay in process on a watermill gochannel.
type NATSConfig struct {
	Enabled     bool   `koanf:"enabled"`
	URL         string `koanf:"url"`
	StreamName  string `koanf:"stream_name"`
	DurableName string `koanf:"durable_name"`
}

// SecurityConfig holds secrets.
type SecurityConfig struct {
	// EncryptionSecret derives the key that encrypts stored API keys.
	EncryptionSecret string `koanf:"encryption_secret"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MediaServerConfig identifies one Jellyfin-compatible server.
type MediaServerConfig struct {
	Enabled  bool   `koanf:"enabled"`
	ServerID string `koanf:"server_id"`
	Name     string `koanf:"name"`
	URL      string `koanf:"url"`
	APIKey   string `koanf:"api_key"`
}

// GetMediaServers returns the effective list of enabled servers, with
// missing IDs derived from the URL.
func (c *Config) GetMediaServers() []MediaServerConfig {
	candidates := c.JellyfinServers
	if len(candidates) == 0 {
		candidates = []MediaServerConfig{c.Jellyfin}
	}

	var enabled []MediaServerConfig
	for _, srv := range candidates {
		if !srv.Enabled {
			continue
		}
		srv.URL = strings.TrimRight(srv.URL, "/")
		if srv.ServerID == "" {
			srv.ServerID = GenerateServerID(srv.URL)
		}
		if srv.Name == "" {
			srv.Name = srv.ServerID
		}
		enabled = append(enabled, srv)
	}
	return enabled
}

// GenerateServerID derives a stable server ID from its URL.
func GenerateServerID(url string) string {
	if url == "" {
		return "jellyfin-default"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return fmt.Sprintf("jellyfin-%08x", h.Sum32())
}

// Team returns the team settings for a job type, falling back to 1x1.
func (q QueueConfig) Team(name string) TeamConfig {
	if t, ok := q.Teams[name]; ok && t.TeamSize > 0 && t.TeamConcurrency > 0 {
		return t
	}
	return TeamConfig{TeamSize: 1, TeamConcurrency: 1}
}

// Load reads configuration from defaults, an optional YAML file, and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

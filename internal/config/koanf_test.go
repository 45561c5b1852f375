// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Client.RateLimitPerSecond != 10 {
		t.Errorf("Client.RateLimitPerSecond = %v, want 10", cfg.Client.RateLimitPerSecond)
	}
	if cfg.Client.RequestTimeout != 60*time.Second {
		t.Errorf("Client.RequestTimeout = %v, want 60s", cfg.Client.RequestTimeout)
	}
	if cfg.Sync.ItemsPageSize != 500 {
		t.Errorf("Sync.ItemsPageSize = %d, want 500", cfg.Sync.ItemsPageSize)
	}
	if cfg.Sync.ActivityPageSize != 100 {
		t.Errorf("Sync.ActivityPageSize = %d, want 100", cfg.Sync.ActivityPageSize)
	}
	if cfg.Sync.LibraryConcurrency != 2 {
		t.Errorf("Sync.LibraryConcurrency = %d, want 2", cfg.Sync.LibraryConcurrency)
	}
	if cfg.Poller.Interval != 5*time.Second {
		t.Errorf("Poller.Interval = %v, want 5s", cfg.Poller.Interval)
	}
	if got := cfg.Queue.Team(JobFullSync); got.TeamSize != 1 || got.TeamConcurrency != 1 {
		t.Errorf("full-sync team = %+v, want 1x1", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestQueueConfig_TeamFallback(t *testing.T) {
	t.Parallel()

	q := QueueConfig{Teams: map[string]TeamConfig{"x": {TeamSize: 0, TeamConcurrency: 3}}}
	if got := q.Team("x"); got != (TeamConfig{TeamSize: 1, TeamConcurrency: 1}) {
		t.Errorf("Team(x) = %+v, want fallback 1x1", got)
	}
	if got := q.Team("missing"); got != (TeamConfig{TeamSize: 1, TeamConcurrency: 1}) {
		t.Errorf("Team(missing) = %+v, want fallback 1x1", got)
	}
}

func TestLoadWithKoanf_Environment(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JELLYFIN_ENABLED", "true")
	t.Setenv("JELLYFIN_URL", "http://jellyfin:8096/")
	t.Setenv("JELLYFIN_API_KEY", "abc123")
	t.Setenv("API_RATE_LIMIT", "4")
	t.Setenv("SESSION_POLL_INTERVAL", "10s")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("SOME_UNRELATED_VAR", "ignored")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Client.RateLimitPerSecond != 4 {
		t.Errorf("RateLimitPerSecond = %v, want 4", cfg.Client.RateLimitPerSecond)
	}
	if cfg.Poller.Interval != 10*time.Second {
		t.Errorf("Poller.Interval = %v, want 10s", cfg.Poller.Interval)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}

	servers := cfg.GetMediaServers()
	if len(servers) != 1 {
		t.Fatalf("GetMediaServers() len = %d, want 1", len(servers))
	}
	if servers[0].URL != "http://jellyfin:8096" {
		t.Errorf("URL = %q, trailing slash should be trimmed", servers[0].URL)
	}
	if servers[0].ServerID != GenerateServerID("http://jellyfin:8096") {
		t.Errorf("ServerID = %q, want generated ID", servers[0].ServerID)
	}
}

func TestLoadWithKoanf_YAMLServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
jellyfin_servers:
  - enabled: true
    server_id: living-room
    url: http://10.0.0.5:8096
    api_key: key-one
  - enabled: false
    server_id: retired
    url: http://10.0.0.6:8096
    api_key: key-two
queue:
  teams:
    full-sync:
      team_size: 2
      team_concurrency: 1
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	servers := cfg.GetMediaServers()
	if len(servers) != 1 || servers[0].ServerID != "living-room" {
		t.Fatalf("GetMediaServers() = %+v, want only living-room", servers)
	}
	if got := cfg.Queue.Team(JobFullSync); got.TeamSize != 2 {
		t.Errorf("full-sync team size = %d, want 2", got.TeamSize)
	}
	if got := cfg.Queue.Team(JobItemsSync); got.TeamConcurrency != 1 {
		t.Errorf("items-sync default team should survive the YAML merge, got %+v", got)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero page size", func(c *Config) { c.Sync.ItemsPageSize = 0 }},
		{"negative retries", func(c *Config) { c.Client.MaxRetries = -1 }},
		{"min above max timeout", func(c *Config) { c.Client.MinTimeout = time.Minute; c.Client.MaxTimeout = time.Second }},
		{"poll interval", func(c *Config) { c.Poller.Interval = 0 }},
		{"nats scheme", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "http://nats:4222" }},
		{"server without key", func(c *Config) {
			c.Jellyfin = MediaServerConfig{Enabled: true, URL: "http://jf:8096"}
		}},
		{"server bad url", func(c *Config) {
			c.Jellyfin = MediaServerConfig{Enabled: true, URL: "ftp://jf", APIKey: "k"}
		}},
		{"duplicate ids", func(c *Config) {
			c.JellyfinServers = []MediaServerConfig{
				{Enabled: true, ServerID: "a", URL: "http://one:8096", APIKey: "k"},
				{Enabled: true, ServerID: "a", URL: "http://two:8096", APIKey: "k"},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and sane bounds.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateQueue,
		c.validateSync,
		c.validateClient,
		c.validatePoller,
		c.validateNATS,
		c.validateMediaServers,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQS must be non-negative, got %d", c.Server.RateLimitReqs)
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	return nil
}

func (c *Config) validateQueue() error {
	q := c.Queue
	if q.PollInterval <= 0 {
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be positive, got %s", q.PollInterval)
	}
	if q.RetryLimit < 0 {
		return fmt.Errorf("QUEUE_RETRY_LIMIT must be non-negative, got %d", q.RetryLimit)
	}
	if q.RetryDelay < 0 {
		return fmt.Errorf("QUEUE_RETRY_DELAY must be non-negative, got %s", q.RetryDelay)
	}
	if q.ExpireIn <= 0 {
		return fmt.Errorf("QUEUE_EXPIRE_IN must be positive, got %s", q.ExpireIn)
	}
	for name, team := range q.Teams {
		if team.TeamSize < 1 || team.TeamConcurrency < 1 {
			return fmt.Errorf("queue.teams.%s: team_size and team_concurrency must be at least 1", name)
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	checks := map[string]int{
		"SYNC_ITEMS_PAGE_SIZE":     s.ItemsPageSize,
		"SYNC_ACTIVITY_PAGE_SIZE":  s.ActivityPageSize,
		"SYNC_LIBRARY_CONCURRENCY": s.LibraryConcurrency,
		"SYNC_ITEM_CONCURRENCY":    s.ItemConcurrency,
		"SYNC_ACTIVITY_MAX_PAGES":  s.ActivityMaxPages,
	}
	for name, v := range checks {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if s.SchedulerEnabled && (s.FullSyncInterval <= 0 || s.RecentItemsInterval <= 0 || s.RecentActivitiesInterval <= 0) {
		return fmt.Errorf("sync intervals must be positive when the scheduler is enabled")
	}
	return nil
}

func (c *Config) validateClient() error {
	cl := c.Client
	if cl.MaxConcurrent < 1 {
		return fmt.Errorf("API_MAX_CONCURRENT must be at least 1, got %d", cl.MaxConcurrent)
	}
	if cl.RateLimitPerSecond < 0 {
		return fmt.Errorf("API_RATE_LIMIT must be non-negative, got %v", cl.RateLimitPerSecond)
	}
	if cl.MaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must be non-negative, got %d", cl.MaxRetries)
	}
	if cl.MinTimeout <= 0 || cl.MaxTimeout < cl.MinTimeout {
		return fmt.Errorf("API_MIN_TIMEOUT must be positive and not exceed API_MAX_TIMEOUT")
	}
	if cl.RequestTimeout <= 0 {
		return fmt.Errorf("API_REQUEST_TIMEOUT must be positive, got %s", cl.RequestTimeout)
	}
	return nil
}

func (c *Config) validatePoller() error {
	if c.Poller.Enabled && c.Poller.Interval <= 0 {
		return fmt.Errorf("SESSION_POLL_INTERVAL must be positive when polling is enabled")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	u, err := url.Parse(c.NATS.URL)
	if err != nil {
		return fmt.Errorf("NATS_URL failed to parse: %w", err)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("NATS_URL scheme must be nats, tls, ws or wss, got: %s", u.Scheme)
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM is required when NATS is enabled")
	}
	return nil
}

func (c *Config) validateMediaServers() error {
	seen := make(map[string]bool)
	for i, srv := range c.GetMediaServers() {
		field := fmt.Sprintf("jellyfin_servers[%d]", i)
		if err := validateHTTPURL(srv.URL, field+".url"); err != nil {
			return err
		}
		if strings.TrimSpace(srv.APIKey) == "" {
			return fmt.Errorf("%s.api_key is required when the server is enabled", field)
		}
		if seen[srv.ServerID] {
			return fmt.Errorf("%s.server_id %q is duplicated", field, srv.ServerID)
		}
		seen[srv.ServerID] = true
	}
	return nil
}

// validateHTTPURL accepts http(s) base URLs with no query string. A path
// prefix is allowed for reverse-proxied servers.
func validateHTTPURL(rawURL, fieldName string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, u.RawQuery)
	}
	return nil
}

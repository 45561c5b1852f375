// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
client.go - Rate-limited Jellyfin REST API client

Every call passes two layers: a limiter (semaphore for in-flight calls plus a
token bucket for calls per second) around each HTTP attempt, and an
exponential backoff wrapper around the attempts. Backoff sleeps do not hold
a concurrency slot.

API Reference: https://api.jellyfin.org/
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/models"
)

// MediaServerClient is the read surface the pipelines and the poller use.
// Both Client and CircuitBreakerClient implement it.
type MediaServerClient interface {
	GetUsers(ctx context.Context) ([]models.JellyfinUser, error)
	GetUser(ctx context.Context, id string) (*models.JellyfinUser, error)
	GetLibraries(ctx context.Context) ([]models.JellyfinLibrary, error)
	GetItem(ctx context.Context, id string) (*models.JellyfinItem, error)
	GetItemsPage(ctx context.Context, parentID string, startIndex, limit int) (*models.JellyfinItemsPage, error)
	GetLatestItems(ctx context.Context, limit int) ([]models.JellyfinItem, error)
	GetActivitiesPage(ctx context.Context, startIndex, limit int, minDate *time.Time) (*models.JellyfinActivityPage, error)
	GetSessions(ctx context.Context) ([]models.JellyfinSession, error)
}

var _ MediaServerClient = (*Client)(nil)

// itemFields are the optional fields requested for every item listing.
const itemFields = "Etag,OriginalTitle,SortName,Overview,PremiereDate,DateCreated,EndDate," +
	"ProductionYear,CommunityRating,CriticRating,OfficialRating,ParentId,Genres,Tags," +
	"ProviderIds,ImageTags,BackdropImageTags,ImageBlurHashes"

// ClientConfig configures one client. Zero MaxConcurrent or
// RateLimitPerSecond disables that limit; zero MaxRetries makes one attempt.
type ClientConfig struct {
	ServerID           string
	BaseURL            string
	APIKey             string
	MaxConcurrent      int
	RateLimitPerSecond float64
	MaxRetries         int
	MinTimeout         time.Duration
	MaxTimeout         time.Duration
	RequestTimeout     time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewClientConfig combines a configured server with the shared limits.
func NewClientConfig(server config.MediaServerConfig, limits config.ClientConfig) ClientConfig {
	return ClientConfig{
		ServerID:           server.ServerID,
		BaseURL:            server.URL,
		APIKey:             server.APIKey,
		MaxConcurrent:      limits.MaxConcurrent,
		RateLimitPerSecond: limits.RateLimitPerSecond,
		MaxRetries:         limits.MaxRetries,
		MinTimeout:         limits.MinTimeout,
		MaxTimeout:         limits.MaxTimeout,
		RequestTimeout:     limits.RequestTimeout,
	}
}

// Unthrottled returns a copy without the limiter and retries. The session
// poller uses it: the next tick is the retry.
func (c ClientConfig) Unthrottled() ClientConfig {
	c.MaxConcurrent = 0
	c.RateLimitPerSecond = 0
	c.MaxRetries = 0
	return c
}

// APIError is a non-2xx response from the media server.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jellyfin %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("jellyfin %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client provides rate-limited, retrying access to the Jellyfin REST API.
type Client struct {
	cfg        ClientConfig
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted // nil when unlimited
	limiter    *rate.Limiter       // nil when unlimited
}

// NewClient creates a client. Unset timeouts fall back to 1s/30s/60s.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MinTimeout <= 0 {
		cfg.MinTimeout = time.Second
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 30 * time.Second
	}
	if cfg.MaxTimeout < cfg.MinTimeout {
		cfg.MaxTimeout = cfg.MinTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
	if cfg.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.RateLimitPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), 1)
	}
	return c
}

// ServerID returns the configured server ID.
func (c *Client) ServerID() string {
	return c.cfg.ServerID
}

// GetUsers retrieves all users.
func (c *Client) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	var users []models.JellyfinUser
	if err := c.getJSON(ctx, "/Users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser retrieves one user by ID.
func (c *Client) GetUser(ctx context.Context, id string) (*models.JellyfinUser, error) {
	var user models.JellyfinUser
	if err := c.getJSON(ctx, "/Users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetLibraries retrieves the top-level media folders.
func (c *Client) GetLibraries(ctx context.Context) ([]models.JellyfinLibrary, error) {
	var page struct {
		Items []models.JellyfinLibrary `json:"Items"`
	}
	if err := c.getJSON(ctx, "/Library/MediaFolders", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetItem retrieves one item by ID.
func (c *Client) GetItem(ctx context.Context, id string) (*models.JellyfinItem, error) {
	q := url.Values{}
	q.Set("Fields", itemFields)
	var item models.JellyfinItem
	if err := c.getJSON(ctx, "/Items/"+url.PathEscape(id), q, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemsPage retrieves one page of items below parentID, recursively.
func (c *Client) GetItemsPage(ctx context.Context, parentID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
	q := url.Values{}
	q.Set("ParentId", parentID)
	q.Set("Recursive", "true")
	q.Set("StartIndex", strconv.Itoa(startIndex))
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("Fields", itemFields)
	q.Set("SortBy", "SortName")
	q.Set("SortOrder", "Ascending")

	var page models.JellyfinItemsPage
	if err := c.getJSON(ctx, "/Items", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetLatestItems retrieves the most recently added items across the server.
func (c *Client) GetLatestItems(ctx context.Context, limit int) ([]models.JellyfinItem, error) {
	q := url.Values{}
	q.Set("Recursive", "true")
	q.Set("SortBy", "DateCreated")
	q.Set("SortOrder", "Descending")
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("Fields", itemFields)

	var page models.JellyfinItemsPage
	if err := c.getJSON(ctx, "/Items", q, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetActivitiesPage retrieves one page of the activity log, newest first.
// minDate, when set, limits entries to that date or later.
func (c *Client) GetActivitiesPage(ctx context.Context, startIndex, limit int, minDate *time.Time) (*models.JellyfinActivityPage, error) {
	q := url.Values{}
	q.Set("startIndex", strconv.Itoa(startIndex))
	q.Set("limit", strconv.Itoa(limit))
	if minDate != nil {
		q.Set("minDate", minDate.UTC().Format(time.RFC3339))
	}

	var page models.JellyfinActivityPage
	if err := c.getJSON(ctx, "/System/ActivityLog/Entries", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSessions retrieves all current sessions.
func (c *Client) GetSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	var sessions []models.JellyfinSession
	if err := c.getJSON(ctx, "/Sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// getJSON fetches endpoint with retries and decodes the body into dest.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, dest any) error {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	start := time.Now()
	body, err := backoff.RetryNotifyWithData(
		func() ([]byte, error) {
			return c.attempt(ctx, endpoint, fullURL)
		},
		c.newBackOff(ctx),
		func(err error, wait time.Duration) {
			metrics.MediaServerRetries.WithLabelValues(c.cfg.ServerID).Inc()
			logging.Ctx(ctx).Debug().Err(err).
				Str("server_id", c.cfg.ServerID).
				Str("endpoint", endpoint).
				Dur("wait", wait).
				Msg("Retrying media server request")
		},
	)
	metrics.MediaServerRequestDuration.WithLabelValues(c.cfg.ServerID).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("jellyfin %s request failed: %w", endpoint, err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode jellyfin %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.MinTimeout
	b.MaxInterval = c.cfg.MaxTimeout
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// attempt performs one limited HTTP GET. Errors caused by the caller's
// context are permanent.
func (c *Client) attempt(ctx context.Context, endpoint, fullURL string) ([]byte, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("X-Emby-Token", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordMediaServerAttempt(c.cfg.ServerID, 0)
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordMediaServerAttempt(c.cfg.ServerID, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

// acquire waits for a concurrency slot and a rate token.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	release := func() {}
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		release = func() { c.sem.Release(1) }
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}

// IsNotFound reports whether err is a 404 from the media server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

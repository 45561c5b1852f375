// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/models"
)

// ErrUnknownServer is returned for server IDs that were never registered.
var ErrUnknownServer = errors.New("unknown media server")

// ServerStore persists registered servers. *database.DB implements it.
type ServerStore interface {
	UpsertServer(ctx context.Context, s *models.Server) error
}

// Registry holds the clients of every configured media server: a throttled
// client for the sync pipelines and, optionally, a separate one for the
// session poller.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	sync MediaServerClient
	poll MediaServerClient
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Add registers clients for serverID. A nil poll client polls through the
// sync client.
func (r *Registry) Add(serverID string, syncClient, pollClient MediaServerClient) {
	if pollClient == nil {
		pollClient = syncClient
	}
	r.mu.Lock()
	r.entries[serverID] = registryEntry{sync: syncClient, poll: pollClient}
	r.mu.Unlock()
}

// RegistryOptions are the shared settings Register builds clients from.
type RegistryOptions struct {
	Limits config.ClientConfig
	Poller config.PollerConfig

	// Encryptor encrypts the stored API key. Nil stores it as given.
	Encryptor *config.CredentialEncryptor
}

// Register stores srv and builds its clients.
func (r *Registry) Register(ctx context.Context, store ServerStore, srv config.MediaServerConfig, opts RegistryOptions) error {
	storedKey := srv.APIKey
	if opts.Encryptor != nil && srv.APIKey != "" {
		enc, err := opts.Encryptor.Encrypt(srv.APIKey)
		if err != nil {
			return fmt.Errorf("encrypt api key of %s: %w", srv.ServerID, err)
		}
		storedKey = enc
	}
	if err := store.UpsertServer(ctx, &models.Server{
		ID:     srv.ServerID,
		Name:   srv.Name,
		URL:    srv.URL,
		APIKey: storedKey,
	}); err != nil {
		return err
	}

	cfg := NewClientConfig(srv, opts.Limits)
	var syncClient MediaServerClient = NewClient(cfg)
	if opts.Limits.CircuitBreakerEnabled {
		syncClient = NewCircuitBreakerClient(syncClient, srv.ServerID, CircuitBreakerSettings{})
	}

	var pollClient MediaServerClient
	if opts.Poller.Unthrottled {
		pollClient = NewClient(cfg.Unthrottled())
	}
	r.Add(srv.ServerID, syncClient, pollClient)

	logging.Info().
		Str("server_id", srv.ServerID).
		Str("url", srv.URL).
		Str("api_key", config.MaskCredential(srv.APIKey)).
		Bool("circuit_breaker", opts.Limits.CircuitBreakerEnabled).
		Msg("Registered media server")
	return nil
}

// Client returns the sync client of serverID.
func (r *Registry) Client(serverID string) (MediaServerClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[serverID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, serverID)
	}
	return e.sync, nil
}

// ServerIDs returns the registered IDs in sorted order.
func (r *Registry) ServerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PollSources returns the poller's view of every server, in ID order.
func (r *Registry) PollSources() []ServerSource {
	ids := r.ServerIDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServerSource, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			out = append(out, ServerSource{ServerID: id, Client: e.poll})
		}
	}
	return out
}

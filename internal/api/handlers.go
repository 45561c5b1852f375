// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"context"
	"time"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/jobs"
	"github.com/tomtom215/mediasync/internal/models"
	"github.com/tomtom215/mediasync/internal/websocket"
)

// Store is the read side of the database used by the API.
type Store interface {
	Ping(ctx context.Context) error
	ListServers(ctx context.Context) ([]*models.Server, error)
	GetServer(ctx context.Context, id string) (*models.Server, error)
	ListJobResults(ctx context.Context, f database.JobResultFilter) ([]*models.JobResult, error)
}

// JobQueue accepts jobs and reports queue state.
type JobQueue interface {
	Send(ctx context.Context, name string, payload any, opts jobs.SendOptions) (string, error)
	DefaultSendOptions() jobs.SendOptions
	Registered() []string
	Counts() (map[jobs.State]int, error)
	Running() map[string]int64
}

// SessionSource exposes the live sessions tracked by the poller.
type SessionSource interface {
	Snapshot() map[string][]models.TrackedSession
}

// HandlerConfig wires a Handler. Sessions and Hub may be nil when the
// poller or websocket push is disabled.
type HandlerConfig struct {
	Store     Store
	Queue     JobQueue
	Sessions  SessionSource
	Hub       *websocket.Hub
	Transport string
	Version   string

	// CORSOrigins are also the allowed websocket origins. "*" allows any.
	CORSOrigins []string
}

// Handler serves the HTTP API.
type Handler struct {
	store       Store
	queue       JobQueue
	sessions    SessionSource
	hub         *websocket.Hub
	transport   string
	version     string
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		store:       cfg.Store,
		queue:       cfg.Queue,
		sessions:    cfg.Sessions,
		hub:         cfg.Hub,
		transport:   cfg.Transport,
		version:     version,
		corsOrigins: cfg.CORSOrigins,
		startTime:   time.Now(),
	}
}

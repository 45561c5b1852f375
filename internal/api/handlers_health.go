// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/mediasync/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string       `json:"status"`
	Version           string       `json:"version"`
	Uptime            float64      `json:"uptime_seconds"`
	DatabaseConnected bool         `json:"database_connected"`
	Queue             *QueueHealth `json:"queue,omitempty"`
	EventTransport    string       `json:"event_transport,omitempty"`
	WebSocketClients  int          `json:"websocket_clients"`
	LiveSessions      int          `json:"live_sessions"`
	Jobs              []string     `json:"jobs"`
}

// QueueHealth summarizes the job store.
type QueueHealth struct {
	Counts  map[string]int   `json:"counts"`
	Running map[string]int64 `json:"running"`
}

// Health reports dependency status. It answers 503 when the database or
// the job store cannot be read.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	uptime := time.Since(h.startTime).Seconds()
	metrics.AppUptime.Set(uptime)

	health := HealthStatus{
		Status:            "healthy",
		Version:           h.version,
		Uptime:            uptime,
		DatabaseConnected: h.store != nil && h.store.Ping(ctx) == nil,
		EventTransport:    h.transport,
		Jobs:              []string{},
	}
	if !health.DatabaseConnected {
		health.Status = "degraded"
	}

	if h.queue != nil {
		health.Jobs = h.queue.Registered()
		counts, err := h.queue.Counts()
		if err != nil {
			health.Status = "degraded"
		} else {
			q := &QueueHealth{Counts: make(map[string]int, len(counts)), Running: h.queue.Running()}
			for state, n := range counts {
				q.Counts[string(state)] = n
			}
			health.Queue = q
		}
	}
	if h.hub != nil {
		health.WebSocketClients = h.hub.ClientCount()
	}
	if h.sessions != nil {
		for _, sessions := range h.sessions.Snapshot() {
			health.LiveSessions += len(sessions)
		}
	}

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

// HealthLive answers 200 while the process is up, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

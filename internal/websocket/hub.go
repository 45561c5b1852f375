// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeSyncStatus       = "sync_status"
	MessageTypeJobCompleted     = "job_completed"
	MessageTypeSessionEnded     = "session_ended"
	MessageTypeSessionsSnapshot = "sessions_snapshot"
)

var topicMessageTypes = map[string]string{
	events.TopicSyncStatus:       MessageTypeSyncStatus,
	events.TopicJobsCompleted:    MessageTypeJobCompleted,
	events.TopicSessionsEnded:    MessageTypeSessionEnded,
	events.TopicSessionsSnapshot: MessageTypeSessionsSnapshot,
}

// MessageTypeFor maps a bus topic to the message type clients see.
// Unknown topics map to themselves.
func MessageTypeFor(topic string) string {
	if t, ok := topicMessageTypes[topic]; ok {
		return t
	}
	return topic
}

// Message is the frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub tracks connected clients and fans broadcasts out to them.
type Hub struct {
	broadcast chan Message

	mu      sync.RWMutex
	clients map[*Client]struct{}
	stopped bool
}

// NewHub creates an idle hub. Broadcasts are delivered once Serve runs.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Message, 256),
		clients:   make(map[*Client]struct{}),
	}
}

func (h *Hub) String() string { return "websocket-hub" }

// Register attaches c. A hub that has shut down closes c immediately.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client connected")
}

// Unregister detaches c and closes its send channel. It is safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Set(float64(n))
		logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client disconnected")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve delivers broadcasts until ctx ends, then closes every client.
// Pending broadcasts are not drained once ctx is done.
func (h *Hub) Serve(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = false
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// Broadcast queues data for every client. It reports false when the
// broadcast buffer is full and the message was dropped.
func (h *Hub) Broadcast(messageType string, data any) bool {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
		return true
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
		return false
	}
}

// BroadcastRaw queues an already encoded JSON payload.
func (h *Hub) BroadcastRaw(messageType string, payload []byte) bool {
	return h.Broadcast(messageType, json.RawMessage(payload))
}

// broadcastToClients sends msg to every client in connection order.
// Clients whose buffers are full are dropped.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	clients := h.sortedClients()
	var dropped []*Client
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if len(dropped) > 0 {
		metrics.WSConnections.Set(float64(n))
		logging.Warn().Int("dropped", len(dropped)).Str("message_type", msg.Type).Msg("dropped slow websocket clients")
	}
}

// sortedClients must be called with h.mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	h.stopped = true
	clients := h.sortedClients()
	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", h.String()).
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

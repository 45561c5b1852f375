// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package websocket

import (
	"context"

	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/logging"
)

// EventSource delivers bus messages to a handler until ctx ends.
type EventSource interface {
	Forward(ctx context.Context, topics []string, h events.Handler) error
}

// Forwarder relays bus events to hub clients.
type Forwarder struct {
	source EventSource
	hub    *Hub
	topics []string
}

// NewForwarder relays every topic in events.AllTopics.
func NewForwarder(source EventSource, hub *Hub) *Forwarder {
	return &Forwarder{source: source, hub: hub, topics: events.AllTopics}
}

func (f *Forwarder) String() string { return "websocket-forwarder" }

// Serve blocks until ctx ends or the subscription fails.
func (f *Forwarder) Serve(ctx context.Context) error {
	logging.Info().Strs("topics", f.topics).Msg("forwarding events to websocket clients")
	return f.source.Forward(ctx, f.topics, func(ctx context.Context, topic string, payload []byte) error {
		if !f.hub.BroadcastRaw(MessageTypeFor(topic), payload) {
			logging.Ctx(ctx).Debug().Str("topic", topic).Msg("event not relayed")
		}
		return nil
	})
}

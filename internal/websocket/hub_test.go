// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/mediasync/internal/events"
)

// startHub serves hub until the test ends or the returned stop is called.
func startHub(t *testing.T) (*Hub, func() error) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	stopped := false
	var err error
	stop := func() error {
		if stopped {
			return err
		}
		stopped = true
		cancel()
		select {
		case err = <-done:
		case <-time.After(5 * time.Second):
			t.Error("hub did not stop")
		}
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return hub, stop
}

// newTestClient creates a connectionless client with the given buffer.
func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestMessageTypeFor(t *testing.T) {
	tests := map[string]string{
		events.TopicSyncStatus:       MessageTypeSyncStatus,
		events.TopicJobsCompleted:    MessageTypeJobCompleted,
		events.TopicSessionsEnded:    MessageTypeSessionEnded,
		events.TopicSessionsSnapshot: MessageTypeSessionsSnapshot,
		"custom.topic":               "custom.topic",
	}
	for topic, want := range tests {
		if got := MessageTypeFor(topic); got != want {
			t.Errorf("MessageTypeFor(%q) = %q, want %q", topic, got, want)
		}
	}
	for _, topic := range events.AllTopics {
		if _, ok := topicMessageTypes[topic]; !ok {
			t.Errorf("topic %q has no message type", topic)
		}
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, _ := startHub(t)
	a, b := newTestClient(hub, 4), newTestClient(hub, 4)
	hub.Register(a)
	hub.Register(b)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}
	if !hub.Broadcast(MessageTypeSyncStatus, map[string]string{"server_id": "jf-1"}) {
		t.Fatal("Broadcast() = false")
	}

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		if msg.Type != MessageTypeSyncStatus {
			t.Errorf("Type = %q, want %q", msg.Type, MessageTypeSyncStatus)
		}
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, _ := startHub(t)
	c := newTestClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	slow := newTestClient(hub, 1)
	fast := newTestClient(hub, 8)
	hub.Register(slow)
	hub.Register(fast)

	hub.Broadcast(MessageTypeJobCompleted, nil)
	hub.Broadcast(MessageTypeJobCompleted, nil)
	receive(t, fast)
	receive(t, fast)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("ClientCount() = %d, want 1", got)
	}

	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow client should have been closed")
	}
}

func TestHub_BroadcastBufferFull(t *testing.T) {
	hub := NewHub()
	for range cap(hub.broadcast) {
		if !hub.Broadcast(MessageTypePong, nil) {
			t.Fatal("Broadcast() = false before buffer filled")
		}
	}
	if hub.Broadcast(MessageTypePong, nil) {
		t.Error("Broadcast() = true with a full buffer")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, stop := startHub(t)
	c := newTestClient(hub, 1)
	hub.Register(c)

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}
	if _, ok := <-c.send; ok {
		t.Error("client should be closed on shutdown")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}

	late := newTestClient(hub, 1)
	hub.Register(late)
	if _, ok := <-late.send; ok {
		t.Error("client registered after shutdown should be closed")
	}
}

func TestShutdownReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := shutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("shutdownReason(canceled) = %q", got)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if got := shutdownReason(ctx); got != ShutdownReasonContextDeadline {
		t.Errorf("shutdownReason(deadline) = %q", got)
	}
}

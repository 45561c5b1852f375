// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
)

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Bus publishes JSON events and hands out subscriptions.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	transport  string
	shared     bool // publisher and subscriber are one gochannel

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus on NATS JetStream when cfg.Enabled, otherwise on an
// in-process gochannel.
func NewBus(cfg config.NATSConfig) (*Bus, error) {
	logger := NewLoggerAdapter(logging.WithComponent("events"))
	if !cfg.Enabled {
		return NewInProcessBus(logger), nil
	}

	pub, sub, err := newNATSPubSub(cfg, logger)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("url", cfg.URL).Str("stream", cfg.StreamName).Msg("Event bus using NATS JetStream")
	return &Bus{publisher: pub, subscriber: sub, logger: logger, transport: "nats"}, nil
}

// NewInProcessBus creates a bus on a gochannel pub/sub.
func NewInProcessBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
	return &Bus{publisher: ch, subscriber: ch, logger: logger, transport: "gochannel", shared: true}
}

// Transport names the underlying pub/sub.
func (b *Bus) Transport() string {
	return b.transport
}

// Publish encodes payload as JSON and publishes it on topic. The
// correlation ID of ctx, if any, travels in the message metadata.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataTopic, topic)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe returns the messages of topic until ctx is canceled. Callers
// must Ack every message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	return b.subscriber.Subscribe(ctx, topic)
}

// Handler receives the JSON payload of one event. Errors are logged and the
// message is still acked; events are notifications and are not redelivered.
type Handler func(ctx context.Context, topic string, payload []byte) error

// Forward subscribes to topics and calls h for each message until ctx is
// canceled. It returns once every subscription has drained.
func (b *Bus) Forward(ctx context.Context, topics []string, h Handler) error {
	var wg sync.WaitGroup
	for _, topic := range topics {
		msgs, err := b.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgs {
				hctx := ctx
				if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
					hctx = logging.ContextWithCorrelationID(ctx, id)
				}
				if err := h(hctx, topic, msg.Payload); err != nil {
					b.logger.Error("Event handler failed", err, watermill.LogFields{"topic": topic})
				}
				msg.Ack()
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close shuts the publisher and subscriber down. It is safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	errs := []error{b.publisher.Close()}
	if !b.shared {
		errs = append(errs, b.subscriber.Close())
	}
	return errors.Join(errs...)
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/models"
)

var _ MediaServerClient = (*CircuitBreakerClient)(nil)

// CircuitBreakerClient wraps a MediaServerClient so a dead server fails fast
// instead of burning the retry budget of every pipeline worker.
//
// The breaker sees one outcome per call, after the inner client's retries.
type CircuitBreakerClient struct {
	client MediaServerClient
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// CircuitBreakerSettings tunes the breaker. Zero values use the defaults:
// 3 half-open probes, 1 minute counting window, 2 minute open timeout,
// tripping at a 60% failure rate over at least 10 requests.
type CircuitBreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// NewCircuitBreakerClient wraps client with a breaker named after serverID.
func NewCircuitBreakerClient(client MediaServerClient, serverID string, s CircuitBreakerSettings) *CircuitBreakerClient {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = 2 * time.Minute
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}

	name := "jellyfin-" + serverID
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening media server circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// Cancellation and missing records say nothing about server health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				IsNotFound(err)
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: name}
}

// State returns the current breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// guarded runs fn through the breaker and records the outcome.
func guarded[T any](cbc *CircuitBreakerClient, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cbc.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()

	v, ok := result.(T)
	if !ok {
		return zero, errors.New("circuit breaker: unexpected result type")
	}
	return v, nil
}

// GetUsers retrieves all users with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	return guarded(cbc, func() ([]models.JellyfinUser, error) { return cbc.client.GetUsers(ctx) })
}

// GetUser retrieves one user with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetUser(ctx context.Context, id string) (*models.JellyfinUser, error) {
	return guarded(cbc, func() (*models.JellyfinUser, error) { return cbc.client.GetUser(ctx, id) })
}

// GetLibraries retrieves libraries with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetLibraries(ctx context.Context) ([]models.JellyfinLibrary, error) {
	return guarded(cbc, func() ([]models.JellyfinLibrary, error) { return cbc.client.GetLibraries(ctx) })
}

// GetItem retrieves one item with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetItem(ctx context.Context, id string) (*models.JellyfinItem, error) {
	return guarded(cbc, func() (*models.JellyfinItem, error) { return cbc.client.GetItem(ctx, id) })
}

// GetItemsPage retrieves a page of items with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetItemsPage(ctx context.Context, parentID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
	return guarded(cbc, func() (*models.JellyfinItemsPage, error) {
		return cbc.client.GetItemsPage(ctx, parentID, startIndex, limit)
	})
}

// GetLatestItems retrieves recent items with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetLatestItems(ctx context.Context, limit int) ([]models.JellyfinItem, error) {
	return guarded(cbc, func() ([]models.JellyfinItem, error) { return cbc.client.GetLatestItems(ctx, limit) })
}

// GetActivitiesPage retrieves a page of activities with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetActivitiesPage(ctx context.Context, startIndex, limit int, minDate *time.Time) (*models.JellyfinActivityPage, error) {
	return guarded(cbc, func() (*models.JellyfinActivityPage, error) {
		return cbc.client.GetActivitiesPage(ctx, startIndex, limit, minDate)
	})
}

// GetSessions retrieves current sessions with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	return guarded(cbc, func() ([]models.JellyfinSession, error) { return cbc.client.GetSessions(ctx) })
}

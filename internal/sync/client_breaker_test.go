// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mediasync/internal/models"
)

func TestCircuitBreakerClient_OpensOnFailures(t *testing.T) {
	t.Parallel()

	inner := &fakeClient{usersErr: errors.New("connection refused")}
	cbc := NewCircuitBreakerClient(inner, "breaker-open", CircuitBreakerSettings{
		MinRequests:  3,
		FailureRatio: 0.5,
		Timeout:      time.Hour,
	})

	for range 3 {
		_, _ = cbc.GetUsers(context.Background())
	}
	if cbc.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", cbc.State())
	}

	_, err := cbc.GetUsers(context.Background())
	checkErrorIs(t, err, gobreaker.ErrOpenState)
	checkIntEqual(t, "inner calls", inner.callCount("GetUsers"), 3)
}

func TestCircuitBreakerClient_NotFoundAndCancelDoNotTrip(t *testing.T) {
	t.Parallel()

	inner := &fakeClient{usersErr: context.Canceled}
	cbc := NewCircuitBreakerClient(inner, "breaker-benign", CircuitBreakerSettings{
		MinRequests:  2,
		FailureRatio: 0.5,
	})

	for range 5 {
		_, _ = cbc.GetItem(context.Background(), "missing")
		_, _ = cbc.GetUsers(context.Background())
	}
	if cbc.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", cbc.State())
	}
}

func TestCircuitBreakerClient_PassesResults(t *testing.T) {
	t.Parallel()

	inner := &fakeClient{
		libraryItems: map[string][]models.JellyfinItem{
			"lib-1": {jfItem("a", "A", "e1"), jfItem("b", "B", "e2")},
		},
	}
	cbc := NewCircuitBreakerClient(inner, "breaker-pass", CircuitBreakerSettings{})

	page, err := cbc.GetItemsPage(context.Background(), "lib-1", 0, 10)
	checkNoError(t, err)
	checkIntEqual(t, "items", len(page.Items), 2)
	checkIntEqual(t, "total", page.TotalRecordCount, 2)
}

func TestStateToFloat(t *testing.T) {
	t.Parallel()

	checkTrue(t, "closed", stateToFloat(gobreaker.StateClosed) == 0)
	checkTrue(t, "half-open", stateToFloat(gobreaker.StateHalfOpen) == 1)
	checkTrue(t, "open", stateToFloat(gobreaker.StateOpen) == 2)
}

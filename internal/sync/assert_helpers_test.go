// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"errors"
	"testing"
	"time"
)

// Assertion helpers. t.Helper() makes failures point at the caller.

func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func checkErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}

func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

func checkDurationEqual(t *testing.T, fieldName string, got, want time.Duration) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %v, got %v", fieldName, want, got)
	}
}

func checkTrue(t *testing.T, fieldName string, value bool) {
	t.Helper()
	if !value {
		t.Errorf("%s: expected true", fieldName)
	}
}

func checkFalse(t *testing.T, fieldName string, value bool) {
	t.Helper()
	if value {
		t.Errorf("%s: expected false", fieldName)
	}
}

func checkStatus(t *testing.T, got, want Status) {
	t.Helper()
	if got != want {
		t.Errorf("status: expected %q, got %q", want, got)
	}
}

func ptr[T any](v T) *T { return &v }

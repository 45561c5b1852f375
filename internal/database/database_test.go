// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/models"
)

// testDBSemaphore serializes DuckDB test databases. Concurrent CGO
// instances exhaust memory on small CI runners.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func seedServer(t *testing.T, db *DB, id string) {
	t.Helper()
	err := db.UpsertServer(context.Background(), &models.Server{
		ID:     id,
		Name:   "Test " + id,
		URL:    "http://jellyfin.local:8096",
		APIKey: "key",
	})
	if err != nil {
		t.Fatalf("UpsertServer: %v", err)
	}
}

func TestNew_Ping(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if db.Conn() == nil {
		t.Fatal("Conn() returned nil")
	}
}

func TestCreateTables_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.createTables(context.Background()); err != nil {
		t.Fatalf("second createTables() error = %v", err)
	}
}

func TestIsTransactionConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"conflict", errString("TransactionContext Error: Transaction conflict: cannot update"), true},
		{"tuple", errString("Conflict on tuple deletion!"), true},
		{"other", errString("Binder Error: column not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransactionConflict(tt.err); got != tt.want {
				t.Errorf("isTransactionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONText_Database(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil slice", []string(nil), nil},
		{"empty slice", []string{}, nil},
		{"slice", []string{"Drama", "Comedy"}, `["Drama","Comedy"]`},
		{"empty map", map[string]string{}, nil},
		{"map", map[string]string{"Tmdb": "1"}, `{"Tmdb":"1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := jsonText(tt.in)
			if err != nil {
				t.Fatalf("jsonText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("jsonText() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureContext(t *testing.T) {
	t.Parallel()

	db := &DB{}
	ctx, cancel := db.ensureContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected default deadline")
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()
	ctx2, cancel2 := db.ensureContext(parent)
	defer cancel2()
	if ctx2 != parent {
		t.Error("expected caller context to be reused when it has a deadline")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/models"
)

const testServerID = "srv-1"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(StoreConfig{Retention: time.Hour})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testQueueConfig() Config {
	return Config{
		PollInterval:        20 * time.Millisecond,
		MaintenanceInterval: time.Hour,
		RetryDelay:          10 * time.Millisecond,
		ExpireIn:            time.Minute,
	}
}

// startQueue serves q until the test ends or the returned stop is called.
func startQueue(t *testing.T, q *Queue) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Serve(ctx) }()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Error("queue did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

// captureRecorder collects job results.
type captureRecorder struct {
	mu      sync.Mutex
	results []*models.JobResult
	ch      chan *models.JobResult
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{ch: make(chan *models.JobResult, 64)}
}

func (c *captureRecorder) Record(_ context.Context, r *models.JobResult) error {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	select {
	case c.ch <- r:
	default:
	}
	return nil
}

// wait returns the first n results or fails the test.
func (c *captureRecorder) wait(t *testing.T, n int) []*models.JobResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		if len(c.results) >= n {
			out := append([]*models.JobResult(nil), c.results[:n]...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d job results", n)
			return nil
		}
	}
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.UpsertServer(context.Background(), &models.Server{
		ID:     testServerID,
		Name:   "Test Jellyfin",
		URL:    "http://jellyfin.local:8096",
		APIKey: "key",
	}); err != nil {
		t.Fatalf("UpsertServer() error = %v", err)
	}
	return db
}

// testJob builds a stored job without going through Send.
func testJob(name, id string, opts SendOptions, now time.Time) *Job {
	if opts.ExpireIn == 0 {
		opts.ExpireIn = time.Minute
	}
	return &Job{
		ID:           id,
		Name:         name,
		Payload:      []byte(`{"serverId":"` + testServerID + `"}`),
		State:        StateCreated,
		RetryLimit:   opts.RetryLimit,
		RetryDelay:   opts.RetryDelay,
		ExpireIn:     opts.ExpireIn,
		SingletonKey: opts.SingletonKey,
		CreatedAt:    now,
		StartAfter:   now,
	}
}

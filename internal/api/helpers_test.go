// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/jobs"
	"github.com/tomtom215/mediasync/internal/models"
	"github.com/tomtom215/mediasync/internal/websocket"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu         sync.Mutex
	pingErr    error
	servers    map[string]*models.Server
	results    []*models.JobResult
	lastFilter database.JobResultFilter
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{servers: make(map[string]*models.Server)}
	for _, id := range ids {
		s.servers[id] = &models.Server{ID: id, Name: "Jellyfin " + id, URL: "http://" + id, SyncStatus: models.SyncStatusPending}
	}
	return s
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) ListServers(context.Context) ([]*models.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Server, 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, srv)
	}
	return out, nil
}

func (s *fakeStore) GetServer(_ context.Context, id string) (*models.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if srv, ok := s.servers[id]; ok {
		return srv, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListJobResults(_ context.Context, f database.JobResultFilter) ([]*models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = f
	return s.results, nil
}

type fakeSessions map[string][]models.TrackedSession

func (f fakeSessions) Snapshot() map[string][]models.TrackedSession { return f }

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *models.JobResult) error { return nil }

// newTestQueue returns a queue with every sync job type registered. It is
// never served, so sent jobs stay pending.
func newTestQueue(t *testing.T) *jobs.Queue {
	t.Helper()
	store, err := jobs.OpenStore(jobs.StoreConfig{Retention: time.Hour})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	q := jobs.New(store, jobs.Config{}, nopRecorder{})
	for _, name := range jobs.SyncJobNames {
		err := q.Register(name, jobs.WorkOptions{TeamSize: 1, TeamConcurrency: 1}, func(context.Context, *jobs.Job) (any, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	return q
}

type testEnv struct {
	store   *fakeStore
	queue   *jobs.Queue
	hub     *websocket.Hub
	handler http.Handler
}

func newTestEnv(t *testing.T, sessions SessionSource) *testEnv {
	t.Helper()
	env := &testEnv{
		store: newFakeStore("jf-1", "jf-2"),
		queue: newTestQueue(t),
		hub:   websocket.NewHub(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = env.hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := NewHandler(HandlerConfig{
		Store:       env.store,
		Queue:       env.queue,
		Sessions:    sessions,
		Hub:         env.hub,
		Transport:   "gochannel",
		Version:     "test",
		CORSOrigins: []string{"https://dash.example"},
	})
	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true, CORSAllowedOrigins: []string{"https://dash.example"}})
	env.handler = NewRouter(h, mw).SetupChi()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decodeResponse decodes the envelope and, when data is non-nil, its data field.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) *APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("response %q is not JSON: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", raw.Data, err)
		}
	}
	return &raw.APIResponse
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, want, rec.Body.String())
	}
}

func wantErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) *APIResponse {
	t.Helper()
	resp := decodeResponse(t, rec, nil)
	if resp.Status != "error" || resp.Error == nil || resp.Error.Code != want {
		t.Fatalf("response = %s, want error code %s", rec.Body.String(), want)
	}
	return resp
}

var errPing = errors.New("database is locked")

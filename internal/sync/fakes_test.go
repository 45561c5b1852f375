// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

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

// testDBSemaphore serializes DuckDB instances across parallel tests.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := database.New(&config.DatabaseConfig{
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

	err = db.UpsertServer(context.Background(), &models.Server{
		ID:     testServerID,
		Name:   "Test Jellyfin",
		URL:    "http://jellyfin.local:8096",
		APIKey: "key",
	})
	if err != nil {
		t.Fatalf("UpsertServer: %v", err)
	}
	return db
}

// fakeClient is an in-memory MediaServerClient. Zero values return empty
// results.
type fakeClient struct {
	mu sync.Mutex

	users        []models.JellyfinUser
	usersErr     error
	libraries    []models.JellyfinLibrary
	librariesErr error

	itemsByID     map[string]*models.JellyfinItem
	libraryItems  map[string][]models.JellyfinItem
	libraryErrs   map[string]error
	latest        []models.JellyfinItem
	activities    []models.JellyfinActivity // newest first
	activitiesErr error

	sessions    [][]models.JellyfinSession // one entry per GetSessions call
	sessionsErr error

	calls map[string]int
}

var _ MediaServerClient = (*fakeClient)(nil)

func (f *fakeClient) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) GetUsers(_ context.Context) ([]models.JellyfinUser, error) {
	f.count("GetUsers")
	return f.users, f.usersErr
}

func (f *fakeClient) GetUser(_ context.Context, id string) (*models.JellyfinUser, error) {
	f.count("GetUser")
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, &APIError{Endpoint: "/Users/" + id, StatusCode: 404}
}

func (f *fakeClient) GetLibraries(_ context.Context) ([]models.JellyfinLibrary, error) {
	f.count("GetLibraries")
	return f.libraries, f.librariesErr
}

func (f *fakeClient) GetItem(_ context.Context, id string) (*models.JellyfinItem, error) {
	f.count("GetItem")
	if item, ok := f.itemsByID[id]; ok {
		return item, nil
	}
	return nil, &APIError{Endpoint: "/Items/" + id, StatusCode: 404}
}

func (f *fakeClient) GetItemsPage(_ context.Context, parentID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
	f.count("GetItemsPage")
	if err := f.libraryErrs[parentID]; err != nil {
		return nil, err
	}
	all := f.libraryItems[parentID]
	page := &models.JellyfinItemsPage{TotalRecordCount: len(all), StartIndex: startIndex}
	if startIndex < len(all) {
		end := min(startIndex+limit, len(all))
		page.Items = all[startIndex:end]
	}
	return page, nil
}

func (f *fakeClient) GetLatestItems(_ context.Context, limit int) ([]models.JellyfinItem, error) {
	f.count("GetLatestItems")
	if limit < len(f.latest) {
		return f.latest[:limit], nil
	}
	return f.latest, nil
}

func (f *fakeClient) GetActivitiesPage(_ context.Context, startIndex, limit int, _ *time.Time) (*models.JellyfinActivityPage, error) {
	f.count("GetActivitiesPage")
	if f.activitiesErr != nil {
		return nil, f.activitiesErr
	}
	page := &models.JellyfinActivityPage{TotalRecordCount: len(f.activities), StartIndex: startIndex}
	if startIndex < len(f.activities) {
		end := min(startIndex+limit, len(f.activities))
		page.Items = f.activities[startIndex:end]
	}
	return page, nil
}

func (f *fakeClient) GetSessions(_ context.Context) ([]models.JellyfinSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls["GetSessions"]
	f.calls["GetSessions"]++
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	if n < len(f.sessions) {
		return f.sessions[n], nil
	}
	return nil, nil
}

// recordingPublisher keeps every published payload by topic.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]any)
	}
	p.events[topic] = append(p.events[topic], payload)
	return nil
}

func (p *recordingPublisher) published(topic string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.events[topic]...)
}

// fixedClock is a settable clock for tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func jfItem(id, name, etag string) models.JellyfinItem {
	return models.JellyfinItem{
		ID:     id,
		Name:   name,
		Etag:   etag,
		Type:   "Movie",
		Genres: []string{"Drama"},
		Raw:    []byte(`{"Id":"` + id + `","Name":"` + name + `"}`),
	}
}

func jfActivity(id int64, userID string, at time.Time) models.JellyfinActivity {
	return models.JellyfinActivity{
		ID:       id,
		Name:     "Activity",
		Type:     "VideoPlayback",
		UserID:   userID,
		Date:     at,
		Severity: "Information",
	}
}

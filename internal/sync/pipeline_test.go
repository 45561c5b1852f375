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

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/models"
)

func testOptions() PipelineOptions {
	return PipelineOptions{
		PageSize:           2,
		ActivityPageSize:   2,
		LibraryConcurrency: 2,
		ItemConcurrency:    2,
		EntityConcurrency:  2,
		MaxPages:           10,
		Limit:              10,
	}
}

func seedLibraries(t *testing.T, db *database.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		err := db.UpsertLibrary(context.Background(), &models.Library{ID: id, ServerID: testServerID, Name: "Library " + id})
		if err != nil {
			t.Fatalf("UpsertLibrary(%s): %v", id, err)
		}
	}
}

func TestSyncUsers_InsertThenUpdate(t *testing.T) {
	db := setupTestDB(t)
	login := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{users: []models.JellyfinUser{
		{ID: "u1", Name: "Alice", LastLoginDate: &login, Policy: &models.JellyfinUserPolicy{IsAdministrator: true}},
		{ID: "u2", Name: "Bob"},
	}}
	sy := NewSyncer(testServerID, client, db, testOptions())

	first := sy.SyncUsers(context.Background())
	checkStatus(t, first.Status, StatusSuccess)
	checkIntEqual(t, "processed", first.Data.Processed, 2)
	checkIntEqual(t, "inserted", first.Data.Inserted, 2)
	checkIntEqual(t, "api requests", first.Metrics.APIRequests, 1)

	second := sy.SyncUsers(context.Background())
	checkStatus(t, second.Status, StatusSuccess)
	checkIntEqual(t, "inserted on rerun", second.Data.Inserted, 0)
	checkIntEqual(t, "updated on rerun", second.Data.Updated, 2)

	n, err := db.CountUsers(context.Background(), testServerID)
	checkNoError(t, err)
	checkIntEqual(t, "stored users", n, 2)
}

func TestSyncUsers_RecordAndPipelineErrors(t *testing.T) {
	db := setupTestDB(t)

	partial := NewSyncer(testServerID, &fakeClient{users: []models.JellyfinUser{
		{ID: "u1", Name: "Alice"},
		{Name: "no id"},
	}}, db, testOptions()).SyncUsers(context.Background())
	checkStatus(t, partial.Status, StatusPartial)
	checkIntEqual(t, "errors", len(partial.Errors), 1)
	checkIntEqual(t, "inserted", partial.Data.Inserted, 1)

	failed := NewSyncer(testServerID, &fakeClient{usersErr: errors.New("connection refused")}, db, testOptions()).
		SyncUsers(context.Background())
	checkStatus(t, failed.Status, StatusError)
	checkTrue(t, "fatal", IsFatal(failed.Err))
}

func TestSyncLibraries(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeClient{libraries: []models.JellyfinLibrary{
		{ID: "lib-movies", Name: "Movies", CollectionType: "movies", ImageTags: map[string]string{"Primary": "p1"}},
		{ID: "lib-tv", Name: "Shows", CollectionType: "tvshows"},
	}}

	res := NewSyncer(testServerID, client, db, testOptions()).SyncLibraries(context.Background())
	checkStatus(t, res.Status, StatusSuccess)
	checkIntEqual(t, "inserted", res.Data.Inserted, 2)

	libs, err := db.ListLibraries(context.Background(), testServerID)
	checkNoError(t, err)
	checkIntEqual(t, "libraries", len(libs), 2)
	checkStringEqual(t, "primary tag", libs[0].PrimaryImageTag, "p1")
}

func TestSyncItems_PagesAndIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	seedLibraries(t, db, "lib-a", "lib-b")
	client := &fakeClient{libraryItems: map[string][]models.JellyfinItem{
		"lib-a": {jfItem("a1", "A1", "e1"), jfItem("a2", "A2", "e2"), jfItem("a3", "A3", "e3")},
		"lib-b": {jfItem("b1", "B1", "e4")},
	}}
	sy := NewSyncer(testServerID, client, db, testOptions())

	first := sy.SyncItems(context.Background())
	checkStatus(t, first.Status, StatusSuccess)
	checkIntEqual(t, "inserted", first.Data.Inserted, 4)
	// lib-a: pages of 2 and 1; lib-b: one short page.
	checkIntEqual(t, "page requests", client.callCount("GetItemsPage"), 3)

	n, err := db.CountItems(context.Background(), testServerID)
	checkNoError(t, err)
	checkIntEqual(t, "stored items", n, 4)

	stored, err := db.GetItem(context.Background(), testServerID, "a3")
	checkNoError(t, err)
	checkStringEqual(t, "library", stored.LibraryID, "lib-a")

	second := sy.SyncItems(context.Background())
	checkStatus(t, second.Status, StatusSuccess)
	checkIntEqual(t, "unchanged", second.Data.Unchanged, 4)
	checkIntEqual(t, "writes on rerun", second.Metrics.DBWrites, 0)
}

func TestSyncItems_UpdatesChangedFieldsOnly(t *testing.T) {
	db := setupTestDB(t)
	seedLibraries(t, db, "lib-a")
	client := &fakeClient{libraryItems: map[string][]models.JellyfinItem{
		"lib-a": {jfItem("a1", "Original", "e1")},
	}}
	sy := NewSyncer(testServerID, client, db, testOptions())
	checkStatus(t, sy.SyncItems(context.Background()).Status, StatusSuccess)

	rawBefore, err := db.GetItemRawData(context.Background(), testServerID, "a1")
	checkNoError(t, err)

	changed := jfItem("a1", "Renamed", "e2")
	changed.Raw = []byte(`{"Id":"a1","Name":"Renamed"}`)
	client.libraryItems["lib-a"] = []models.JellyfinItem{changed}

	res := sy.SyncItems(context.Background())
	checkStatus(t, res.Status, StatusSuccess)
	checkIntEqual(t, "updated", res.Data.Updated, 1)

	stored, err := db.GetItem(context.Background(), testServerID, "a1")
	checkNoError(t, err)
	checkStringEqual(t, "name", stored.Name, "Renamed")
	checkStringEqual(t, "etag", stored.Etag, "e2")

	rawAfter, err := db.GetItemRawData(context.Background(), testServerID, "a1")
	checkNoError(t, err)
	checkStringEqual(t, "raw_data kept", string(rawAfter), string(rawBefore))
}

func TestSyncItems_NewEtagSameFieldsIsUnchanged(t *testing.T) {
	db := setupTestDB(t)
	seedLibraries(t, db, "lib-a")
	client := &fakeClient{libraryItems: map[string][]models.JellyfinItem{
		"lib-a": {jfItem("a1", "Same", "e1")},
	}}
	sy := NewSyncer(testServerID, client, db, testOptions())
	sy.SyncItems(context.Background())

	client.libraryItems["lib-a"] = []models.JellyfinItem{jfItem("a1", "Same", "e2")}
	res := sy.SyncItems(context.Background())
	checkIntEqual(t, "unchanged", res.Data.Unchanged, 1)
	checkIntEqual(t, "updated", res.Data.Updated, 0)
}

func TestSyncItems_PageFailureFailsRunButOtherLibrariesFinish(t *testing.T) {
	db := setupTestDB(t)
	seedLibraries(t, db, "lib-bad", "lib-good")
	client := &fakeClient{
		libraryItems: map[string][]models.JellyfinItem{"lib-good": {jfItem("g1", "G1", "e1")}},
		libraryErrs:  map[string]error{"lib-bad": errors.New("upstream 500")},
	}

	res := NewSyncer(testServerID, client, db, testOptions()).SyncItems(context.Background())
	checkStatus(t, res.Status, StatusError)
	checkTrue(t, "fatal", IsFatal(res.Err))

	_, err := db.GetItem(context.Background(), testServerID, "g1")
	checkNoError(t, err)
}

func TestSyncItems_NoLibrariesIsEmptySuccess(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeClient{}
	sy := NewSyncer(testServerID, client, db, testOptions())

	res := sy.SyncItems(context.Background())
	checkStatus(t, res.Status, StatusSuccess)
	checkNoError(t, res.Err)
	checkIntEqual(t, "processed", res.Data.Processed, 0)

	res = sy.SyncRecentItems(context.Background())
	checkStatus(t, res.Status, StatusSuccess)
	checkIntEqual(t, "latest items not fetched", client.callCount("GetLatestItems"), 0)
}

func TestSyncItems_LibraryFilter(t *testing.T) {
	db := setupTestDB(t)
	seedLibraries(t, db, "lib-a", "lib-b")
	client := &fakeClient{libraryItems: map[string][]models.JellyfinItem{
		"lib-a": {jfItem("a1", "A1", "e1")},
		"lib-b": {jfItem("b1", "B1", "e2")},
	}}
	opts := testOptions().WithOverrides(&models.SyncOptions{LibraryIDs: []string{"lib-b"}})

	res := NewSyncer(testServerID, client, db, opts).SyncItems(context.Background())
	checkIntEqual(t, "inserted", res.Data.Inserted, 1)
	_, err := db.GetItem(context.Background(), testServerID, "a1")
	checkErrorIs(t, err, database.ErrNotFound)
}

func TestSyncRecentItems_ResolvesLibraries(t *testing.T) {
	db := setupTestDB(t)
	seedLibraries(t, db, "lib-tv")

	episode := jfItem("episode-1", "Pilot", "e1")
	episode.ParentID = "season-1"
	orphan := jfItem("orphan", "Lost", "e2")
	client := ancestryClient()
	client.latest = []models.JellyfinItem{episode, orphan}

	res := NewSyncer(testServerID, client, db, testOptions()).SyncRecentItems(context.Background())
	checkStatus(t, res.Status, StatusPartial)
	checkIntEqual(t, "inserted", res.Data.Inserted, 1)
	checkIntEqual(t, "errors", len(res.Errors), 1)

	stored, err := db.GetItem(context.Background(), testServerID, "episode-1")
	checkNoError(t, err)
	checkStringEqual(t, "library", stored.LibraryID, "lib-tv")
}

func TestSyncActivities_UserReference(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	checkNoError(t, db.UpsertUser(ctx, &models.User{ID: "u1", ServerID: testServerID, Name: "Alice"}))

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{activities: []models.JellyfinActivity{
		jfActivity(2, "u1", at.Add(time.Minute)),
		jfActivity(1, "ghost", at),
	}}

	res := NewSyncer(testServerID, client, db, testOptions()).SyncActivities(ctx)
	checkStatus(t, res.Status, StatusSuccess)
	checkIntEqual(t, "inserted", res.Data.Inserted, 2)

	known, err := db.GetActivity(ctx, testServerID, "2")
	checkNoError(t, err)
	if known.UserID == nil || *known.UserID != "u1" {
		t.Errorf("activity 2 UserID = %v, want u1", known.UserID)
	}
	unknown, err := db.GetActivity(ctx, testServerID, "1")
	checkNoError(t, err)
	if unknown.UserID != nil {
		t.Errorf("activity 1 UserID = %q, want nil", *unknown.UserID)
	}
}

func TestSyncRecentActivities_StopsAtMarker(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	client := &fakeClient{}
	for id := int64(5); id >= 1; id-- {
		client.activities = append(client.activities, jfActivity(id, "", at.Add(time.Duration(id)*time.Minute)))
	}
	sy := NewSyncer(testServerID, client, db, testOptions())
	checkStatus(t, sy.SyncActivities(ctx).Status, StatusSuccess)

	newer := []models.JellyfinActivity{
		jfActivity(7, "", at.Add(7*time.Minute)),
		jfActivity(6, "", at.Add(6*time.Minute)),
	}
	client.activities = append(newer, client.activities...)

	res := sy.SyncRecentActivities(ctx)
	checkStatus(t, res.Status, StatusSuccess)
	checkTrue(t, "marker found", res.Data.MarkerFound)
	checkIntEqual(t, "processed", res.Data.Processed, 2)
	checkIntEqual(t, "inserted", res.Data.Inserted, 2)
	// Page one holds 7 and 6, page two starts with the marker.
	checkIntEqual(t, "pages", res.Data.Pages, 2)

	count, err := db.CountActivities(ctx, testServerID)
	checkNoError(t, err)
	checkIntEqual(t, "stored activities", count, 7)

	again := sy.SyncRecentActivities(ctx)
	checkIntEqual(t, "processed on rerun", again.Data.Processed, 0)
	checkIntEqual(t, "pages on rerun", again.Data.Pages, 1)
}

func TestSyncRecentActivities_PageCap(t *testing.T) {
	db := setupTestDB(t)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	for id := int64(20); id >= 1; id-- {
		client.activities = append(client.activities, jfActivity(id, "", at.Add(time.Duration(id)*time.Minute)))
	}
	opts := testOptions()
	opts.MaxPages = 3

	res := NewSyncer(testServerID, client, db, opts).SyncRecentActivities(context.Background())
	checkStatus(t, res.Status, StatusSuccess)
	checkFalse(t, "marker found", res.Data.MarkerFound)
	checkIntEqual(t, "pages", res.Data.Pages, 3)
	checkIntEqual(t, "processed", res.Data.Processed, 6)
}

func TestPipelineOptions(t *testing.T) {
	t.Parallel()

	o := PipelineOptions{}.withDefaults()
	checkIntEqual(t, "PageSize", o.PageSize, 500)
	checkIntEqual(t, "ActivityPageSize", o.ActivityPageSize, 100)
	checkIntEqual(t, "MaxPages", o.MaxPages, 50)

	minDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	over := o.WithOverrides(&models.SyncOptions{PageSize: 50, MaxPages: 2, MinDate: &minDate})
	checkIntEqual(t, "PageSize", over.PageSize, 50)
	checkIntEqual(t, "ActivityPageSize", over.ActivityPageSize, 50)
	checkIntEqual(t, "MaxPages", over.MaxPages, 2)
	checkTrue(t, "MinDate copied", over.MinDate != &minDate && over.MinDate.Equal(minDate))
	checkIntEqual(t, "nil overrides", o.WithOverrides(nil).PageSize, 500)
}

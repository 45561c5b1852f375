// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/models"
)

func TestResultRecorder_PersistsAndPublishes(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	bus := events.NewInProcessBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := bus.Subscribe(ctx, events.TopicJobsCompleted)
	if err != nil {
		t.Fatal(err)
	}

	j := testJob(JobFullSync, "job-42", SendOptions{}, time.Now())
	j.Attempts = 2
	j.Output = []byte(`{"status":"partial"}`)
	res := newJobResult(j, testServerID, models.JobStatusCompleted, "", 1500*time.Millisecond, time.Now())

	if err := NewResultRecorder(db, bus).Record(ctx, res); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	stored, err := db.ListJobResults(ctx, database.JobResultFilter{JobName: JobFullSync})
	if err != nil || len(stored) != 1 {
		t.Fatalf("ListJobResults() = %d, %v", len(stored), err)
	}
	got := stored[0]
	if got.JobID != "job-42" || got.Attempt != 2 || got.ServerID != testServerID {
		t.Errorf("stored result = %+v", got)
	}
	if got.ProcessingTime != 1500*time.Millisecond {
		t.Errorf("ProcessingTime = %s, want 1.5s", got.ProcessingTime)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		var ev models.JobCompletedEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Result == nil || ev.Result.JobID != "job-42" {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no jobs.completed event")
	}
}

func TestResultRecorder_NilPublisher(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	j := testJob(JobUsersSync, "job-1", SendOptions{}, time.Now())
	j.Attempts = 1
	res := newJobResult(j, testServerID, models.JobStatusFailed, "boom", time.Second, time.Now())
	if err := NewResultRecorder(db, nil).Record(context.Background(), res); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	failed, err := db.ListJobResults(context.Background(), database.JobResultFilter{Status: models.JobStatusFailed})
	if err != nil || len(failed) != 1 || failed[0].Error != "boom" {
		t.Errorf("ListJobResults(failed) = %v, %v", failed, err)
	}
}

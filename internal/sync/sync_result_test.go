// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewResult(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name   string
		status Status
		err    error
		errs   []string
		want   Status
	}{
		{name: "clean success", status: StatusSuccess, want: StatusSuccess},
		{name: "collected errors degrade to partial", status: StatusSuccess, errs: []string{"x"}, want: StatusPartial},
		{name: "requested partial", status: StatusPartial, want: StatusPartial},
		{name: "error status without error is partial", status: StatusError, want: StatusPartial},
		{name: "error wins", status: StatusSuccess, err: boom, errs: []string{"x"}, want: StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewResult(tt.status, 1, MetricsSnapshot{}, tt.err, tt.errs)
			checkStatus(t, r.Status, tt.want)
			checkTrue(t, "Failed", r.Failed() == (tt.want == StatusError))
			if tt.err != nil {
				checkStringEqual(t, "Error", r.Error, tt.err.Error())
			}
		})
	}
}

func TestSyncMetrics_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	m := NewSyncMetrics()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementAPIRequests()
			m.IncrementDBWrites()
			m.Increment(EntityItems, ActionProcessed)
			m.Increment(EntityItems, ActionInserted)
			m.IncrementErrors(EntityUsers)
		}()
	}
	wg.Wait()

	snap := m.Finish()
	checkIntEqual(t, "APIRequests", snap.APIRequests, 50)
	checkIntEqual(t, "DBWrites", snap.DBWrites, 50)
	checkIntEqual(t, "Errors", snap.Errors, 50)
	items := snap.Counts(EntityItems)
	checkIntEqual(t, "items processed", items.Processed, 50)
	checkIntEqual(t, "items inserted", items.Inserted, 50)
	checkIntEqual(t, "users errors", snap.Counts(EntityUsers).Errors, 50)
}

func TestSyncMetrics_FinishFreezes(t *testing.T) {
	t.Parallel()

	clock := newFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := newSyncMetricsWithClock(clock.Now)
	m.Increment(EntityUsers, ActionProcessed)
	clock.Advance(3 * time.Second)

	first := m.Finish()
	checkDurationEqual(t, "Duration", first.Duration, 3*time.Second)

	clock.Advance(time.Minute)
	m.Increment(EntityUsers, ActionProcessed)
	second := m.Finish()
	checkDurationEqual(t, "Duration after second Finish", second.Duration, 3*time.Second)
	checkIntEqual(t, "processed after finish", second.Counts(EntityUsers).Processed, 1)

	// Snapshots are copies.
	first.Entities[EntityUsers] = EntityCounts{Processed: 99}
	checkIntEqual(t, "snapshot isolation", m.Snapshot().Counts(EntityUsers).Processed, 1)
}

func TestMergeSnapshots(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	a := MetricsSnapshot{APIRequests: 2, DBWrites: 3, Entities: map[Entity]EntityCounts{
		EntityUsers: {Processed: 3, Inserted: 3},
	}}
	b := MetricsSnapshot{APIRequests: 5, Errors: 1, Entities: map[Entity]EntityCounts{
		EntityUsers: {Processed: 1, Updated: 1},
		EntityItems: {Processed: 4, Unchanged: 4},
	}}

	merged := MergeSnapshots(start, end, a, b)
	checkIntEqual(t, "APIRequests", merged.APIRequests, 7)
	checkIntEqual(t, "DBWrites", merged.DBWrites, 3)
	checkIntEqual(t, "Errors", merged.Errors, 1)
	checkDurationEqual(t, "Duration", merged.Duration, time.Minute)
	users := merged.Counts(EntityUsers)
	checkIntEqual(t, "users processed", users.Processed, 4)
	checkIntEqual(t, "users updated", users.Updated, 1)
	checkIntEqual(t, "items unchanged", merged.Counts(EntityItems).Unchanged, 4)
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	rec := recordErr(EntityItems, "item-9", errors.New("bad row"))
	errDown := errors.New("library endpoint down")
	pipe := pipelineErr(EntityLibraries, "list libraries", errDown)

	checkTrue(t, "record recoverable", IsRecoverable(rec))
	checkFalse(t, "record fatal", IsFatal(rec))
	checkTrue(t, "pipeline fatal", IsFatal(fmt.Errorf("wrapped: %w", pipe)))
	checkFalse(t, "pipeline recoverable", IsRecoverable(pipe))
	checkErrorIs(t, pipe, errDown)
	checkFalse(t, "plain error", IsFatal(errors.New("x")) || IsRecoverable(errors.New("x")))
}

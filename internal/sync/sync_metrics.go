// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"sync"
	"time"

	"github.com/tomtom215/mediasync/internal/metrics"
)

// Entity names a synced entity type.
type Entity string

// Synced entity types.
const (
	EntityUsers      Entity = "users"
	EntityLibraries  Entity = "libraries"
	EntityItems      Entity = "items"
	EntityActivities Entity = "activities"
)

// Action classifies what happened to one record.
type Action string

// Record actions.
const (
	ActionProcessed Action = "processed"
	ActionInserted  Action = "inserted"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// EntityCounts are the per-entity counters of a run.
type EntityCounts struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// MetricsSnapshot is the frozen view of a run's counters.
type MetricsSnapshot struct {
	Start       time.Time               `json:"start"`
	End         time.Time               `json:"end"`
	Duration    time.Duration           `json:"duration"`
	APIRequests int                     `json:"api_requests"`
	DBWrites    int                     `json:"db_writes"`
	Errors      int                     `json:"errors"`
	Entities    map[Entity]EntityCounts `json:"entities,omitempty"`
}

// Counts returns the counters of one entity.
func (s MetricsSnapshot) Counts(e Entity) EntityCounts {
	return s.Entities[e]
}

// SyncMetrics accumulates counters for one run. It is safe for concurrent
// workers. After Finish, increments are ignored.
type SyncMetrics struct {
	mu       sync.Mutex
	now      func() time.Time
	snap     MetricsSnapshot
	finished bool
}

// NewSyncMetrics starts a run at the current time.
func NewSyncMetrics() *SyncMetrics {
	return newSyncMetricsWithClock(time.Now)
}

func newSyncMetricsWithClock(now func() time.Time) *SyncMetrics {
	return &SyncMetrics{
		now: now,
		snap: MetricsSnapshot{
			Start:    now(),
			Entities: make(map[Entity]EntityCounts),
		},
	}
}

// IncrementAPIRequests counts one media server call.
func (m *SyncMetrics) IncrementAPIRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	m.snap.APIRequests++
	metrics.SyncAPIRequests.Inc()
}

// IncrementDBWrites counts one store write.
func (m *SyncMetrics) IncrementDBWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	m.snap.DBWrites++
	metrics.SyncDBWrites.Inc()
}

// Increment counts one record action for an entity.
func (m *SyncMetrics) Increment(e Entity, a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	c := m.snap.Entities[e]
	switch a {
	case ActionProcessed:
		c.Processed++
	case ActionInserted:
		c.Inserted++
	case ActionUpdated:
		c.Updated++
	case ActionUnchanged:
		c.Unchanged++
	}
	m.snap.Entities[e] = c
	metrics.SyncEntities.WithLabelValues(string(e), string(a)).Inc()
}

// IncrementErrors counts one record error for an entity.
func (m *SyncMetrics) IncrementErrors(e Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	c := m.snap.Entities[e]
	c.Errors++
	m.snap.Entities[e] = c
	m.snap.Errors++
	metrics.SyncErrors.WithLabelValues(string(e), "record").Inc()
}

// Finish stamps the end time and returns the frozen snapshot. Later calls
// return the same snapshot.
func (m *SyncMetrics) Finish() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.finished {
		m.finished = true
		m.snap.End = m.now()
		m.snap.Duration = m.snap.End.Sub(m.snap.Start)
	}
	return m.snap.clone()
}

// Snapshot returns the counters so far without finishing.
func (m *SyncMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

func (s MetricsSnapshot) clone() MetricsSnapshot {
	c := s
	c.Entities = make(map[Entity]EntityCounts, len(s.Entities))
	for k, v := range s.Entities {
		c.Entities[k] = v
	}
	return c
}

// MergeSnapshots sums stage snapshots into one spanning start..end.
func MergeSnapshots(start, end time.Time, snaps ...MetricsSnapshot) MetricsSnapshot {
	out := MetricsSnapshot{
		Start:    start,
		End:      end,
		Duration: end.Sub(start),
		Entities: make(map[Entity]EntityCounts),
	}
	for _, s := range snaps {
		out.APIRequests += s.APIRequests
		out.DBWrites += s.DBWrites
		out.Errors += s.Errors
		for e, c := range s.Entities {
			acc := out.Entities[e]
			acc.Processed += c.Processed
			acc.Inserted += c.Inserted
			acc.Updated += c.Updated
			acc.Unchanged += c.Unchanged
			acc.Errors += c.Errors
			out.Entities[e] = acc
		}
	}
	return out
}

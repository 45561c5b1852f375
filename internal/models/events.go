// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package models

import "time"

// SyncStatusEvent announces a server sync state change.
type SyncStatusEvent struct {
	ServerID string     `json:"server_id"`
	Status   SyncStatus `json:"status"`
	Stage    SyncStage  `json:"stage,omitempty"`
	Error    string     `json:"error,omitempty"`
	Time     time.Time  `json:"time"`
}

// SessionEndedEvent announces a finished playback session.
type SessionEndedEvent struct {
	Session   *Session `json:"session"`
	Persisted bool     `json:"persisted"`
}

// SessionsSnapshotEvent carries the live sessions of one poll cycle.
type SessionsSnapshotEvent struct {
	Time     time.Time                   `json:"time"`
	Sessions map[string][]TrackedSession `json:"sessions"`
}

// JobCompletedEvent announces a finished job attempt.
type JobCompletedEvent struct {
	Result *JobResult `json:"result"`
}

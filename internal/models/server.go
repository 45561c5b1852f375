// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package models

import "time"

// SyncStatus is the persisted status of a server's most recent sync.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncStage is the progress marker while a sync runs.
type SyncStage string

const (
	SyncStageNone       SyncStage = ""
	SyncStageUsers      SyncStage = "users"
	SyncStageLibraries  SyncStage = "libraries"
	SyncStageItems      SyncStage = "items"
	SyncStageActivities SyncStage = "activities"
	SyncStageCompleted  SyncStage = "completed"
)

// Server is a connected media server and its sync status.
type Server struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`

	// APIKey is the stored form of the key, encrypted when an encryption
	// secret is configured. Never serialized.
	APIKey string `json:"-"`

	SyncStatus        SyncStatus `json:"sync_status"`
	SyncProgress      SyncStage  `json:"sync_progress,omitempty"`
	SyncError         string     `json:"sync_error,omitempty"`
	LastSyncStarted   *time.Time `json:"last_sync_started,omitempty"`
	LastSyncCompleted *time.Time `json:"last_sync_completed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

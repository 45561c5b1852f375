// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// SyncJobPayload is the payload every sync job type accepts.
type SyncJobPayload struct {
	ServerID string       `json:"serverId" validate:"required,serverid"`
	Options  *SyncOptions `json:"options,omitempty" validate:"omitempty"`
}

// SyncOptions overrides pipeline defaults for a single run. Zero values keep
// the configured defaults.
type SyncOptions struct {
	PageSize           int        `json:"pageSize,omitempty" validate:"omitempty,min=1,max=5000"`
	LibraryConcurrency int        `json:"libraryConcurrency,omitempty" validate:"omitempty,min=1,max=16"`
	ItemConcurrency    int        `json:"itemConcurrency,omitempty" validate:"omitempty,min=1,max=32"`
	MaxPages           int        `json:"maxPages,omitempty" validate:"omitempty,min=1,max=10000"`
	Limit              int        `json:"limit,omitempty" validate:"omitempty,min=1,max=5000"`
	LibraryIDs         []string   `json:"libraryIds,omitempty" validate:"omitempty,dive,required"`
	MinDate            *time.Time `json:"minDate,omitempty"`
}

// JobStatus is the outcome of one job execution attempt.
type JobStatus string

const (
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusExpired   JobStatus = "expired"

	// JobStatusRetry marks a failed attempt that will be retried.
	JobStatusRetry JobStatus = "retry"
)

// JobResult is the completion record of one job execution attempt.
type JobResult struct {
	ID             string          `json:"id"`
	JobID          string          `json:"job_id"`
	JobName        string          `json:"job_name"`
	ServerID       string          `json:"server_id,omitempty"`
	Status         JobStatus       `json:"status"`
	Attempt        int             `json:"attempt"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	ProcessingTime time.Duration   `json:"processing_time"`
	CompletedAt    time.Time       `json:"completed_at"`
}

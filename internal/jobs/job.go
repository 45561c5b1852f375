// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/config"
)

// Job type names.
const (
	JobFullSync             = config.JobFullSync
	JobUsersSync            = config.JobUsersSync
	JobLibrariesSync        = config.JobLibrariesSync
	JobItemsSync            = config.JobItemsSync
	JobActivitiesSync       = config.JobActivitiesSync
	JobRecentItemsSync      = config.JobRecentItemsSync
	JobRecentActivitiesSync = config.JobRecentActivitiesSync
)

// SyncJobNames lists every sync job type.
var SyncJobNames = []string{
	JobFullSync,
	JobUsersSync,
	JobLibrariesSync,
	JobItemsSync,
	JobActivitiesSync,
	JobRecentItemsSync,
	JobRecentActivitiesSync,
}

var (
	// ErrUnknownJob is returned when sending a job type nobody registered.
	ErrUnknownJob = errors.New("unknown job type")

	// ErrLeaseLost is returned when finishing a job whose lease expired or
	// was taken over by another attempt.
	ErrLeaseLost = errors.New("job lease lost")

	// ErrDuplicateJob is returned by Send when a job with the same
	// singleton key is still queued or running.
	ErrDuplicateJob = errors.New("job with this singleton key is already queued")

	// ErrJobNotFound is returned for IDs the store does not hold.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned after the store is closed.
	ErrQueueClosed = errors.New("job queue is closed")
)

// State is the lifecycle state of a stored job.
type State string

// Job states. created and retry jobs wait to be claimed; active jobs hold
// a lease; the rest are terminal.
const (
	StateCreated   State = "created"
	StateRetry     State = "retry"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
)

// AllStates lists every state, in lifecycle order.
var AllStates = []State{StateCreated, StateRetry, StateActive, StateCompleted, StateFailed, StateExpired}

// Terminal reports whether no further attempt will run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateExpired
}

// Job is one queued unit of work as stored in BadgerDB.
type Job struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
	State   State           `json:"state"`

	RetryLimit   int           `json:"retry_limit"`
	RetryDelay   time.Duration `json:"retry_delay"`
	ExpireIn     time.Duration `json:"expire_in"`
	SingletonKey string        `json:"singleton_key,omitempty"`

	// CorrelationID is taken from the sender's context and restored
	// while the job runs.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Attempts counts claims, including the running one.
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	StartAfter time.Time  `json:"start_after"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// LeaseHolder and LeaseExpiry are set while active. Together with
	// Attempts they identify the attempt allowed to finish the job.
	LeaseHolder string    `json:"lease_holder,omitempty"`
	LeaseExpiry time.Time `json:"lease_expiry,omitempty"`

	LastError string          `json:"last_error,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// claimable reports whether a worker may start j at now.
func (j *Job) claimable(now time.Time) bool {
	return (j.State == StateCreated || j.State == StateRetry) && !now.Before(j.StartAfter)
}

// retriesLeft reports whether a failed attempt may be retried.
func (j *Job) retriesLeft() bool {
	return j.Attempts <= j.RetryLimit
}

// SendOptions control how a job is retried and expired. Zero RetryDelay
// and ExpireIn take the queue defaults; zero RetryLimit means one attempt.
type SendOptions struct {
	RetryLimit   int           `validate:"gte=0,lte=100"`
	RetryDelay   time.Duration `validate:"gte=0"`
	ExpireIn     time.Duration `validate:"gte=0"`
	SingletonKey string        `validate:"max=256"`
	StartAfter   time.Time
}

// WorkOptions bound the concurrency of one job type: TeamSize workers,
// each running up to TeamConcurrency jobs.
type WorkOptions struct {
	TeamSize        int `validate:"gte=1,lte=64"`
	TeamConcurrency int `validate:"gte=1,lte=64"`
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/models"
)

// Recorder receives the result of every finished attempt.
type Recorder interface {
	Record(ctx context.Context, r *models.JobResult) error
}

// ResultStore persists job results. *database.DB implements it.
type ResultStore interface {
	InsertJobResult(ctx context.Context, r *models.JobResult) error
}

// Publisher delivers events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// ResultRecorder writes job results to the relational store and announces
// them on the jobs.completed topic.
type ResultRecorder struct {
	store     ResultStore
	publisher Publisher
}

// NewResultRecorder creates a recorder. publisher may be nil.
func NewResultRecorder(store ResultStore, publisher Publisher) *ResultRecorder {
	return &ResultRecorder{store: store, publisher: publisher}
}

// Record persists r and publishes it. A publish failure is logged only.
func (r *ResultRecorder) Record(ctx context.Context, res *models.JobResult) error {
	if err := r.store.InsertJobResult(ctx, res); err != nil {
		return fmt.Errorf("record %s result: %w", res.JobName, err)
	}
	if r.publisher == nil {
		return nil
	}
	if err := r.publisher.Publish(ctx, events.TopicJobsCompleted, &models.JobCompletedEvent{Result: res}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("job_id", res.JobID).Msg("Failed to publish job result")
	}
	return nil
}

// newJobResult describes the attempt of j that ended with status.
func newJobResult(j *Job, serverID string, status models.JobStatus, cause string, took time.Duration, at time.Time) *models.JobResult {
	return &models.JobResult{
		ID:             uuid.NewString(),
		JobID:          j.ID,
		JobName:        j.Name,
		ServerID:       serverID,
		Status:         status,
		Attempt:        j.Attempts,
		Result:         j.Output,
		Error:          cause,
		ProcessingTime: took,
		CompletedAt:    at.UTC(),
	}
}

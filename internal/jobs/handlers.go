// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"context"
	"fmt"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/models"
	syncpkg "github.com/tomtom215/mediasync/internal/sync"
	"github.com/tomtom215/mediasync/internal/validation"
)

// ClientSource resolves the client of a server. *sync.Registry implements it.
type ClientSource interface {
	Client(serverID string) (syncpkg.MediaServerClient, error)
}

// SyncHandlers runs the sync job types against the orchestrator.
type SyncHandlers struct {
	orchestrator *syncpkg.Orchestrator
	clients      ClientSource
	store        syncpkg.Store
	options      syncpkg.PipelineOptions
}

// NewSyncHandlers creates the handlers. opts are the pipeline defaults that
// job payload options override.
func NewSyncHandlers(o *syncpkg.Orchestrator, clients ClientSource, store syncpkg.Store, opts syncpkg.PipelineOptions) *SyncHandlers {
	return &SyncHandlers{orchestrator: o, clients: clients, store: store, options: opts}
}

// TeamsFrom returns the configured work options of each job type.
func TeamsFrom(c config.QueueConfig) func(name string) WorkOptions {
	return func(name string) WorkOptions {
		t := c.Team(name)
		return WorkOptions{TeamSize: t.TeamSize, TeamConcurrency: t.TeamConcurrency}
	}
}

// Register binds every sync job type on q.
func (h *SyncHandlers) Register(q *Queue, teams func(name string) WorkOptions) error {
	for _, name := range SyncJobNames {
		if err := q.Register(name, teams(name), h.Handler(name)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the handler of one sync job type. Per-entity jobs run
// under the server state machine; the recent-* jobs are incremental
// refreshes and leave the server sync status alone.
func (h *SyncHandlers) Handler(name string) Handler {
	return func(ctx context.Context, job *Job) (any, error) {
		sy, err := h.syncer(job)
		if err != nil {
			return nil, err
		}

		switch name {
		case JobFullSync:
			return outcome(h.orchestrator.FullSync(ctx, sy))
		case JobUsersSync:
			return outcome(h.orchestrator.SyncEntity(ctx, sy, syncpkg.EntityUsers))
		case JobLibrariesSync:
			return outcome(h.orchestrator.SyncEntity(ctx, sy, syncpkg.EntityLibraries))
		case JobItemsSync:
			return outcome(h.orchestrator.SyncEntity(ctx, sy, syncpkg.EntityItems))
		case JobActivitiesSync:
			return outcome(h.orchestrator.SyncEntity(ctx, sy, syncpkg.EntityActivities))
		case JobRecentItemsSync:
			return outcome(sy.SyncRecentItems(ctx))
		case JobRecentActivitiesSync:
			return outcome(sy.SyncRecentActivities(ctx))
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
}

func (h *SyncHandlers) syncer(job *Job) (*syncpkg.Syncer, error) {
	var p models.SyncJobPayload
	if err := job.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", job.Name, err)
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", job.Name, verr)
	}
	client, err := h.clients.Client(p.ServerID)
	if err != nil {
		return nil, err
	}
	return syncpkg.NewSyncer(p.ServerID, client, h.store, h.options.WithOverrides(p.Options)), nil
}

// outcome turns a sync result into handler output. Error results fail
// the attempt; partial results complete it.
func outcome[T any](res syncpkg.Result[T]) (any, error) {
	if res.Failed() {
		return res, fmt.Errorf("sync %s: %w", res.Status, res.Err)
	}
	return res, nil
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/models"
)

// Sender enqueues jobs. *Queue implements it.
type Sender interface {
	Send(ctx context.Context, name string, payload any, opts SendOptions) (string, error)
	DefaultSendOptions() SendOptions
}

// ScheduleEntry enqueues Job for every server each Interval.
type ScheduleEntry struct {
	Job      string
	Interval time.Duration
}

// DefaultSchedule returns the recurring jobs of cfg: full sync, recent
// items and recent activities. Entries with a zero interval are dropped.
func DefaultSchedule(cfg config.SyncConfig) []ScheduleEntry {
	all := []ScheduleEntry{
		{Job: JobFullSync, Interval: cfg.FullSyncInterval},
		{Job: JobRecentItemsSync, Interval: cfg.RecentItemsInterval},
		{Job: JobRecentActivitiesSync, Interval: cfg.RecentActivitiesInterval},
	}
	out := all[:0]
	for _, e := range all {
		if e.Interval > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Scheduler enqueues recurring sync jobs. Each job carries the singleton
// key "<job>:<serverId>", so a run still queued or in progress is not
// queued a second time.
type Scheduler struct {
	sender  Sender
	servers func() []string
	entries []ScheduleEntry
}

// NewScheduler creates a scheduler. servers is consulted on every tick so
// newly registered servers are picked up.
func NewScheduler(sender Sender, servers func() []string, entries []ScheduleEntry) *Scheduler {
	return &Scheduler{sender: sender, servers: servers, entries: entries}
}

// String names the scheduler for the supervisor.
func (s *Scheduler) String() string {
	return "job-scheduler"
}

// Serve enqueues every entry at start and then on its interval until ctx
// is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, e)
		}()
	}
	logging.Info().Int("entries", len(s.entries)).Msg("Job scheduler started")
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, e ScheduleEntry) {
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	s.Enqueue(ctx, e.Job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(ctx, e.Job)
		}
	}
}

// ServerSingletonKey is the singleton key that allows one pending job of
// a type per server. Scheduled and manually triggered jobs share it.
func ServerSingletonKey(job, serverID string) string {
	return job + ":" + serverID
}

// Enqueue sends job for every server and returns how many were queued.
// Servers whose previous run is still pending are skipped.
func (s *Scheduler) Enqueue(ctx context.Context, job string) int {
	queued := 0
	for _, serverID := range s.servers() {
		opts := s.sender.DefaultSendOptions()
		opts.SingletonKey = ServerSingletonKey(job, serverID)

		id, err := s.sender.Send(ctx, job, &models.SyncJobPayload{ServerID: serverID}, opts)
		switch {
		case errors.Is(err, ErrDuplicateJob):
			logging.Debug().Str("job", job).Str("server_id", serverID).Msg("Scheduled job still pending, skipped")
		case err != nil:
			logging.Error().Err(err).Str("job", job).Str("server_id", serverID).Msg("Failed to enqueue scheduled job")
		default:
			queued++
			logging.Debug().Str("job", job).Str("server_id", serverID).Str("job_id", id).Msg("Scheduled job enqueued")
		}
	}
	return queued
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/models"
)

// Store is the persistence surface of the pipelines, the orchestrator and
// the session poller. *database.DB implements it.
type Store interface {
	UserExists(ctx context.Context, serverID, id string) (bool, error)
	UpsertUser(ctx context.Context, u *models.User) error
	ListUserIDs(ctx context.Context, serverID string) (map[string]struct{}, error)

	LibraryExists(ctx context.Context, serverID, id string) (bool, error)
	UpsertLibrary(ctx context.Context, l *models.Library) error
	ListLibraries(ctx context.Context, serverID string) ([]*models.Library, error)
	ListLibraryIDs(ctx context.Context, serverID string) (map[string]struct{}, error)

	GetItem(ctx context.Context, serverID, id string) (*models.Item, error)
	InsertItem(ctx context.Context, item *models.Item) error
	UpdateItemFields(ctx context.Context, item *models.Item, columns []database.ItemColumn) error

	ActivityExists(ctx context.Context, serverID, id string) (bool, error)
	UpsertActivity(ctx context.Context, a *models.Activity) error
	LatestActivityID(ctx context.Context, serverID string) (string, error)

	GetServer(ctx context.Context, id string) (*models.Server, error)
	UpdateServerSyncStatus(ctx context.Context, id string, u database.SyncStatusUpdate) error
	FailInterruptedSyncs(ctx context.Context, reason string) (int64, error)

	InsertSession(ctx context.Context, s *models.Session) error
}

var _ Store = (*database.DB)(nil)

// PipelineOptions tune one pipeline invocation.
type PipelineOptions struct {
	PageSize           int // items pages
	ActivityPageSize   int
	LibraryConcurrency int
	ItemConcurrency    int
	EntityConcurrency  int // users, libraries, activities workers
	MaxPages           int // intelligent activity walk cap
	Limit              int // recent items
	LibraryIDs         []string
	MinDate            *time.Time
}

// DefaultPipelineOptions derives options from configuration, filling
// unset values with 500/100 page sizes, 2 libraries, 5 workers and 50 pages.
func DefaultPipelineOptions(cfg config.SyncConfig) PipelineOptions {
	o := PipelineOptions{
		PageSize:           cfg.ItemsPageSize,
		ActivityPageSize:   cfg.ActivityPageSize,
		LibraryConcurrency: cfg.LibraryConcurrency,
		ItemConcurrency:    cfg.ItemConcurrency,
		EntityConcurrency:  cfg.EntityConcurrency,
		MaxPages:           cfg.ActivityMaxPages,
		Limit:              cfg.RecentItemsLimit,
	}
	return o.withDefaults()
}

func (o PipelineOptions) withDefaults() PipelineOptions {
	if o.PageSize <= 0 {
		o.PageSize = 500
	}
	if o.ActivityPageSize <= 0 {
		o.ActivityPageSize = 100
	}
	if o.LibraryConcurrency <= 0 {
		o.LibraryConcurrency = 2
	}
	if o.ItemConcurrency <= 0 {
		o.ItemConcurrency = 5
	}
	if o.EntityConcurrency <= 0 {
		o.EntityConcurrency = 5
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 50
	}
	if o.Limit <= 0 {
		o.Limit = 100
	}
	return o
}

// WithOverrides applies job payload options. PageSize overrides both page
// sizes.
func (o PipelineOptions) WithOverrides(in *models.SyncOptions) PipelineOptions {
	if in == nil {
		return o
	}
	if in.PageSize > 0 {
		o.PageSize = in.PageSize
		o.ActivityPageSize = in.PageSize
	}
	if in.LibraryConcurrency > 0 {
		o.LibraryConcurrency = in.LibraryConcurrency
	}
	if in.ItemConcurrency > 0 {
		o.ItemConcurrency = in.ItemConcurrency
	}
	if in.MaxPages > 0 {
		o.MaxPages = in.MaxPages
	}
	if in.Limit > 0 {
		o.Limit = in.Limit
	}
	if len(in.LibraryIDs) > 0 {
		o.LibraryIDs = append([]string(nil), in.LibraryIDs...)
	}
	if in.MinDate != nil {
		t := *in.MinDate
		o.MinDate = &t
	}
	return o
}

// Syncer runs the entity pipelines for one server.
type Syncer struct {
	serverID string
	client   MediaServerClient
	store    Store
	opts     PipelineOptions
}

// NewSyncer creates a Syncer. Unset options take their defaults.
func NewSyncer(serverID string, client MediaServerClient, store Store, opts PipelineOptions) *Syncer {
	return &Syncer{
		serverID: serverID,
		client:   client,
		store:    store,
		opts:     opts.withDefaults(),
	}
}

// WithOptions returns a Syncer sharing client and store with other options.
func (s *Syncer) WithOptions(opts PipelineOptions) *Syncer {
	c := *s
	c.opts = opts.withDefaults()
	return &c
}

// Options returns the effective options.
func (s *Syncer) Options() PipelineOptions {
	return s.opts
}

func (s *Syncer) logger(ctx context.Context, e Entity) zerolog.Logger {
	return logging.Ctx(ctx).With().
		Str("server_id", s.serverID).
		Str("entity", string(e)).
		Logger()
}

// errorList collects per-record error strings from concurrent workers.
type errorList struct {
	mu   sync.Mutex
	errs []string
}

func (l *errorList) add(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err.Error())
	l.mu.Unlock()
}

func (l *errorList) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}

// recordFailure logs, counts and collects one record error.
func (s *Syncer) recordFailure(log *zerolog.Logger, m *SyncMetrics, errs *errorList, err *RecordError) {
	log.Warn().Err(err.Err).Str("record_id", err.ID).Msg("Record sync failed")
	m.IncrementErrors(err.Entity)
	errs.add(err)
}

// finish freezes metrics and funnels the run through NewResult.
func (s *Syncer) finish(log *zerolog.Logger, e Entity, m *SyncMetrics, err error, errs *errorList) Result[EntityCounts] {
	snap := m.Finish()
	metrics.RecordSyncStage(string(e), snap.Duration, err)

	var list []string
	if errs != nil {
		list = errs.list()
	}
	res := NewResult(StatusSuccess, snap.Counts(e), snap, err, list)

	ev := log.Info()
	if res.Status == StatusError {
		ev = log.Error().Err(err)
	}
	ev.Str("status", string(res.Status)).
		Int("processed", res.Data.Processed).
		Int("inserted", res.Data.Inserted).
		Int("updated", res.Data.Updated).
		Int("unchanged", res.Data.Unchanged).
		Int("errors", res.Data.Errors).
		Dur("duration", snap.Duration).
		Msg("Sync pipeline finished")
	return res
}

// upsertClassified checks existence, upserts and counts insert or update.
func (s *Syncer) upsertClassified(
	ctx context.Context,
	e Entity,
	m *SyncMetrics,
	exists func(context.Context) (bool, error),
	upsert func(context.Context) error,
) error {
	found, err := exists(ctx)
	if err != nil {
		return err
	}
	if err := upsert(ctx); err != nil {
		return err
	}
	m.IncrementDBWrites()
	if found {
		m.Increment(e, ActionUpdated)
	} else {
		m.Increment(e, ActionInserted)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

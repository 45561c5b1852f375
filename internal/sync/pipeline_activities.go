// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mediasync/internal/models"
)

// ActivitiesData is the outcome of an activity walk.
type ActivitiesData struct {
	EntityCounts
	Pages       int  `json:"pages"`
	MarkerFound bool `json:"marker_found"`
}

// SyncActivities mirrors the whole activity log.
func (s *Syncer) SyncActivities(ctx context.Context) Result[EntityCounts] {
	res := s.syncActivities(ctx, "", 0)
	return NewResult(res.Status, res.Data.EntityCounts, res.Metrics, res.Err, res.Errors)
}

// SyncRecentActivities walks the log newest first and stops at the newest
// stored activity, scanning at most MaxPages pages.
func (s *Syncer) SyncRecentActivities(ctx context.Context) Result[ActivitiesData] {
	marker, err := s.store.LatestActivityID(ctx, s.serverID)
	if err != nil {
		log := s.logger(ctx, EntityActivities)
		m := NewSyncMetrics()
		res := s.finish(&log, EntityActivities, m, pipelineErr(EntityActivities, "read latest activity", err), nil)
		return NewResult(res.Status, ActivitiesData{EntityCounts: res.Data}, res.Metrics, res.Err, res.Errors)
	}
	return s.syncActivities(ctx, marker, s.opts.MaxPages)
}

// syncActivities pages through the log. A non-empty marker stops the walk
// at that ID; maxPages 0 means no page cap.
func (s *Syncer) syncActivities(ctx context.Context, marker string, maxPages int) Result[ActivitiesData] {
	log := s.logger(ctx, EntityActivities)
	m := NewSyncMetrics()
	pageSize := s.opts.ActivityPageSize

	known, err := s.store.ListUserIDs(ctx, s.serverID)
	if err != nil {
		res := s.finish(&log, EntityActivities, m, pipelineErr(EntityActivities, "list stored users", err), nil)
		return NewResult(res.Status, ActivitiesData{EntityCounts: res.Data}, res.Metrics, res.Err, res.Errors)
	}
	users := &userSet{known: known}

	var (
		errs        errorList
		pages       int
		markerFound bool
		walkErr     error
		start       int
	)
	for {
		if maxPages > 0 && pages >= maxPages {
			log.Warn().Int("pages", pages).Str("marker", marker).
				Msg("Activity walk hit the page cap before the stored marker")
			break
		}
		if err := ctx.Err(); err != nil {
			walkErr = pipelineErr(EntityActivities, "page activities", err)
			break
		}

		page, err := s.client.GetActivitiesPage(ctx, start, pageSize, s.opts.MinDate)
		m.IncrementAPIRequests()
		if err != nil {
			walkErr = pipelineErr(EntityActivities, fmt.Sprintf("page activities at %d", start), err)
			break
		}
		pages++

		batch := page.Items
		if marker != "" {
			for i := range batch {
				if strconv.FormatInt(batch[i].ID, 10) == marker {
					batch = batch[:i]
					markerFound = true
					break
				}
			}
		}

		var g errgroup.Group
		g.SetLimit(s.opts.EntityConcurrency)
		for i := range batch {
			src := &batch[i]
			g.Go(func() error {
				if err := s.syncActivity(ctx, src, users, m); err != nil {
					s.recordFailure(&log, m, &errs, recordErr(EntityActivities, strconv.FormatInt(src.ID, 10), err))
				}
				return nil
			})
		}
		_ = g.Wait()

		n := len(page.Items)
		start += n
		if markerFound || n == 0 || n < pageSize {
			break
		}
	}

	res := s.finish(&log, EntityActivities, m, walkErr, &errs)
	data := ActivitiesData{EntityCounts: res.Data, Pages: pages, MarkerFound: markerFound}
	return NewResult(res.Status, data, res.Metrics, res.Err, res.Errors)
}

func (s *Syncer) syncActivity(ctx context.Context, src *models.JellyfinActivity, users *userSet, m *SyncMetrics) error {
	m.Increment(EntityActivities, ActionProcessed)

	a := &models.Activity{
		ID:            strconv.FormatInt(src.ID, 10),
		ServerID:      s.serverID,
		Name:          src.Name,
		ShortOverview: src.ShortOverview,
		Type:          src.Type,
		Date:          src.Date.UTC(),
		Severity:      src.Severity,
		RawData:       src.Raw,
	}
	if src.ItemID != "" {
		itemID := src.ItemID
		a.ItemID = &itemID
	}
	if src.UserID != "" {
		ok, err := users.has(ctx, s.store, s.serverID, src.UserID)
		if err != nil {
			return err
		}
		if ok {
			userID := src.UserID
			a.UserID = &userID
		}
	}

	return s.upsertClassified(ctx, EntityActivities, m,
		func(ctx context.Context) (bool, error) { return s.store.ActivityExists(ctx, s.serverID, a.ID) },
		func(ctx context.Context) error { return s.store.UpsertActivity(ctx, a) },
	)
}

// userSet answers "is this user stored" from a preloaded set, falling back
// to the store for users synced after the walk started.
type userSet struct {
	mu    sync.Mutex
	known map[string]struct{}
}

func (u *userSet) has(ctx context.Context, store Store, serverID, id string) (bool, error) {
	u.mu.Lock()
	_, ok := u.known[id]
	u.mu.Unlock()
	if ok {
		return true, nil
	}

	exists, err := store.UserExists(ctx, serverID, id)
	if err != nil {
		return false, err
	}
	if exists {
		u.mu.Lock()
		u.known[id] = struct{}{}
		u.mu.Unlock()
	}
	return exists, nil
}

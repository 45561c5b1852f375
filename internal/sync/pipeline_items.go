// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/models"
)

// SyncItems pages through every stored library and mirrors its items.
// A page that cannot be fetched stops that library and fails the run;
// other libraries still finish.
func (s *Syncer) SyncItems(ctx context.Context) Result[EntityCounts] {
	log := s.logger(ctx, EntityItems)
	m := NewSyncMetrics()

	libs, err := s.store.ListLibraries(ctx, s.serverID)
	if err != nil {
		return s.finish(&log, EntityItems, m, pipelineErr(EntityItems, "list stored libraries", err), nil)
	}
	if len(s.opts.LibraryIDs) > 0 {
		libs = slices.DeleteFunc(libs, func(l *models.Library) bool {
			return !slices.Contains(s.opts.LibraryIDs, l.ID)
		})
	}
	if len(libs) == 0 {
		log.Info().Msg("No stored libraries, no items to sync")
		return s.finish(&log, EntityItems, m, nil, nil)
	}

	var errs errorList
	var g errgroup.Group
	g.SetLimit(s.opts.LibraryConcurrency)
	for _, lib := range libs {
		g.Go(func() error {
			return s.syncLibraryItems(ctx, &log, lib.ID, m, &errs)
		})
	}
	err = g.Wait()

	return s.finish(&log, EntityItems, m, err, &errs)
}

func (s *Syncer) syncLibraryItems(ctx context.Context, log *zerolog.Logger, libraryID string, m *SyncMetrics, errs *errorList) error {
	pageSize := s.opts.PageSize
	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return pipelineErr(EntityItems, "page library "+libraryID, err)
		}

		page, err := s.client.GetItemsPage(ctx, libraryID, start, pageSize)
		m.IncrementAPIRequests()
		if err != nil {
			return pipelineErr(EntityItems, fmt.Sprintf("page library %s at %d", libraryID, start), err)
		}

		var g errgroup.Group
		g.SetLimit(s.opts.ItemConcurrency)
		for i := range page.Items {
			src := &page.Items[i]
			g.Go(func() error {
				if err := s.syncItem(ctx, libraryID, src, m); err != nil {
					s.recordFailure(log, m, errs, recordErr(EntityItems, src.ID, err))
				}
				return nil
			})
		}
		_ = g.Wait()

		n := len(page.Items)
		start += n
		log.Debug().Str("library_id", libraryID).Int("fetched", start).
			Int("total", page.TotalRecordCount).Msg("Items page processed")

		if n == 0 || n < pageSize || (page.TotalRecordCount > 0 && start >= page.TotalRecordCount) {
			return nil
		}
	}
}

// syncItem inserts an unseen item or updates the tracked columns of a
// changed one. An unchanged etag skips the field diff.
func (s *Syncer) syncItem(ctx context.Context, libraryID string, src *models.JellyfinItem, m *SyncMetrics) error {
	m.Increment(EntityItems, ActionProcessed)
	if src.ID == "" {
		return errors.New("missing id")
	}
	incoming := itemFromJellyfin(s.serverID, libraryID, src)

	stored, err := s.store.GetItem(ctx, s.serverID, src.ID)
	if errors.Is(err, database.ErrNotFound) {
		if err := s.store.InsertItem(ctx, incoming); err != nil {
			return err
		}
		m.IncrementDBWrites()
		m.Increment(EntityItems, ActionInserted)
		return nil
	}
	if err != nil {
		return err
	}

	if stored.Etag != "" && stored.Etag == incoming.Etag {
		m.Increment(EntityItems, ActionUnchanged)
		return nil
	}

	diff := DiffItem(stored, incoming)
	if !diff.Changed() {
		m.Increment(EntityItems, ActionUnchanged)
		return nil
	}

	columns := diff.Columns()
	if stored.Etag != incoming.Etag {
		columns = append(columns, database.ItemColEtag)
	}
	if err := s.store.UpdateItemFields(ctx, incoming, columns); err != nil {
		return err
	}
	m.IncrementDBWrites()
	m.Increment(EntityItems, ActionUpdated)
	return nil
}

// SyncRecentItems mirrors the newest items across the server, resolving
// each item's library through its ancestors.
func (s *Syncer) SyncRecentItems(ctx context.Context) Result[EntityCounts] {
	log := s.logger(ctx, EntityItems)
	m := NewSyncMetrics()

	libraryIDs, err := s.store.ListLibraryIDs(ctx, s.serverID)
	if err != nil {
		return s.finish(&log, EntityItems, m, pipelineErr(EntityItems, "list stored libraries", err), nil)
	}
	if len(libraryIDs) == 0 {
		log.Info().Msg("No stored libraries, no recent items to sync")
		return s.finish(&log, EntityItems, m, nil, nil)
	}

	items, err := s.client.GetLatestItems(ctx, s.opts.Limit)
	m.IncrementAPIRequests()
	if err != nil {
		return s.finish(&log, EntityItems, m, pipelineErr(EntityItems, "list latest items", err), nil)
	}

	resolver := NewLibraryResolver(s.client, libraryIDs)
	var errs errorList
	var g errgroup.Group
	g.SetLimit(s.opts.ItemConcurrency)
	for i := range items {
		src := &items[i]
		g.Go(func() error {
			libraryID, err := resolver.Resolve(ctx, src.ID, src.ParentID)
			if err == nil {
				err = s.syncItem(ctx, libraryID, src, m)
			}
			if err != nil {
				s.recordFailure(&log, m, &errs, recordErr(EntityItems, src.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return s.finish(&log, EntityItems, m, nil, &errs)
}

func itemFromJellyfin(serverID, libraryID string, src *models.JellyfinItem) *models.Item {
	return &models.Item{
		ID:                src.ID,
		ServerID:          serverID,
		LibraryID:         libraryID,
		Etag:              src.Etag,
		Name:              src.Name,
		OriginalTitle:     src.OriginalTitle,
		SortName:          src.SortName,
		Overview:          src.Overview,
		Type:              src.Type,
		MediaType:         src.MediaType,
		PremiereDate:      utcPtr(src.PremiereDate),
		DateCreated:       utcPtr(src.DateCreated),
		EndDate:           utcPtr(src.EndDate),
		ProductionYear:    src.ProductionYear,
		CommunityRating:   src.CommunityRating,
		CriticRating:      src.CriticRating,
		OfficialRating:    src.OfficialRating,
		RunTimeTicks:      src.RunTimeTicks,
		IsFolder:          src.IsFolder,
		ParentID:          src.ParentID,
		SeriesID:          src.SeriesID,
		SeriesName:        src.SeriesName,
		SeasonID:          src.SeasonID,
		SeasonName:        src.SeasonName,
		IndexNumber:       src.IndexNumber,
		ParentIndexNumber: src.ParentIndexNumber,
		Genres:            src.Genres,
		Tags:              src.Tags,
		ProviderIDs:       src.ProviderIDs,
		PrimaryImageTag:   src.ImageTags["Primary"],
		ThumbImageTag:     src.ImageTags["Thumb"],
		LogoImageTag:      src.ImageTags["Logo"],
		BackdropImageTags: src.BackdropImageTags,
		ImageBlurHashes:   src.ImageBlurHashes,
		RawData:           src.Raw,
	}
}

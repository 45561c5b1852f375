// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mediasync/internal/models"
)

// SyncLibraries mirrors the server's top-level media folders.
func (s *Syncer) SyncLibraries(ctx context.Context) Result[EntityCounts] {
	log := s.logger(ctx, EntityLibraries)
	m := NewSyncMetrics()

	libs, err := s.client.GetLibraries(ctx)
	m.IncrementAPIRequests()
	if err != nil {
		return s.finish(&log, EntityLibraries, m, pipelineErr(EntityLibraries, "list libraries", err), nil)
	}

	var errs errorList
	var g errgroup.Group
	g.SetLimit(s.opts.EntityConcurrency)
	for i := range libs {
		l := libraryFromJellyfin(s.serverID, &libs[i])
		g.Go(func() error {
			m.Increment(EntityLibraries, ActionProcessed)
			if l.ID == "" {
				s.recordFailure(&log, m, &errs, recordErr(EntityLibraries, "", errors.New("missing id")))
				return nil
			}
			err := s.upsertClassified(ctx, EntityLibraries, m,
				func(ctx context.Context) (bool, error) { return s.store.LibraryExists(ctx, s.serverID, l.ID) },
				func(ctx context.Context) error { return s.store.UpsertLibrary(ctx, l) },
			)
			if err != nil {
				s.recordFailure(&log, m, &errs, recordErr(EntityLibraries, l.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return s.finish(&log, EntityLibraries, m, nil, &errs)
}

func libraryFromJellyfin(serverID string, src *models.JellyfinLibrary) *models.Library {
	return &models.Library{
		ID:              src.ID,
		ServerID:        serverID,
		Name:            src.Name,
		CollectionType:  src.CollectionType,
		Type:            src.Type,
		PrimaryImageTag: src.ImageTags["Primary"],
		RawData:         src.Raw,
	}
}

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

// SyncUsers mirrors every user of the server.
func (s *Syncer) SyncUsers(ctx context.Context) Result[EntityCounts] {
	log := s.logger(ctx, EntityUsers)
	m := NewSyncMetrics()

	users, err := s.client.GetUsers(ctx)
	m.IncrementAPIRequests()
	if err != nil {
		return s.finish(&log, EntityUsers, m, pipelineErr(EntityUsers, "list users", err), nil)
	}

	var errs errorList
	var g errgroup.Group
	g.SetLimit(s.opts.EntityConcurrency)
	for i := range users {
		u := userFromJellyfin(s.serverID, &users[i])
		g.Go(func() error {
			m.Increment(EntityUsers, ActionProcessed)
			if u.ID == "" {
				s.recordFailure(&log, m, &errs, recordErr(EntityUsers, "", errors.New("missing id")))
				return nil
			}
			err := s.upsertClassified(ctx, EntityUsers, m,
				func(ctx context.Context) (bool, error) { return s.store.UserExists(ctx, s.serverID, u.ID) },
				func(ctx context.Context) error { return s.store.UpsertUser(ctx, u) },
			)
			if err != nil {
				s.recordFailure(&log, m, &errs, recordErr(EntityUsers, u.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return s.finish(&log, EntityUsers, m, nil, &errs)
}

func userFromJellyfin(serverID string, src *models.JellyfinUser) *models.User {
	u := &models.User{
		ID:               src.ID,
		ServerID:         serverID,
		Name:             src.Name,
		LastLoginDate:    src.LastLoginDate,
		LastActivityDate: src.LastActivityDate,
		PrimaryImageTag:  src.PrimaryImageTag,
		RawData:          src.Raw,
	}
	if src.Policy != nil {
		u.IsAdministrator = src.Policy.IsAdministrator
		u.IsDisabled = src.Policy.IsDisabled
	}
	return u
}

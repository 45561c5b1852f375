// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/mediasync/internal/models"
)

// ActivityExists reports whether the activity entry is already stored.
func (db *DB) ActivityExists(ctx context.Context, serverID, id string) (bool, error) {
	return db.exists(ctx, "activities", serverID, id)
}

// UpsertActivity writes an activity entry. A nil UserID or ItemID is
// stored as NULL.
func (db *DB) UpsertActivity(ctx context.Context, a *models.Activity) error {
	_, err := db.execWithConflictRetry(ctx, `
		INSERT INTO activities (server_id, id, name, short_overview, type, date,
			user_id, item_id, severity, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (server_id, id) DO UPDATE SET
			name = excluded.name,
			short_overview = excluded.short_overview,
			type = excluded.type,
			date = excluded.date,
			user_id = excluded.user_id,
			item_id = excluded.item_id,
			severity = excluded.severity,
			raw_data = excluded.raw_data`,
		a.ServerID, a.ID, emptyToNull(a.Name), emptyToNull(a.ShortOverview), emptyToNull(a.Type),
		a.Date.UTC(), nullableString(a.UserID), nullableString(a.ItemID),
		emptyToNull(a.Severity), emptyToNull(string(a.RawData)))
	if err != nil {
		return fmt.Errorf("failed to upsert activity %s: %w", a.ID, err)
	}
	return nil
}

// GetActivity returns a stored activity or ErrNotFound.
func (db *DB) GetActivity(ctx context.Context, serverID, id string) (*models.Activity, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		a                             models.Activity
		name, overview, typ, severity sql.NullString
		userID, itemID                sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT server_id, id, name, short_overview, type, date, user_id, item_id, severity
		FROM activities WHERE server_id = ? AND id = ?`, serverID, id).
		Scan(&a.ServerID, &a.ID, &name, &overview, &typ, &a.Date, &userID, &itemID, &severity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity %s: %w", id, err)
	}
	a.Name = name.String
	a.ShortOverview = overview.String
	a.Type = typ.String
	a.Severity = severity.String
	a.Date = a.Date.UTC()
	a.UserID = stringPtr(userID)
	a.ItemID = stringPtr(itemID)
	return &a, nil
}

// LatestActivityID returns the ID of the newest stored activity for the
// server, or "" when none is stored. Jellyfin activity IDs are numeric, so
// ordering is by date then numeric ID.
func (db *DB) LatestActivityID(ctx context.Context, serverID string) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var id string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id FROM activities WHERE server_id = ?
		ORDER BY date DESC, TRY_CAST(id AS BIGINT) DESC NULLS LAST, id DESC
		LIMIT 1`, serverID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest activity: %w", err)
	}
	return id, nil
}

// CountActivities returns the number of activities stored for a server.
func (db *DB) CountActivities(ctx context.Context, serverID string) (int, error) {
	return db.count(ctx, "activities", serverID)
}

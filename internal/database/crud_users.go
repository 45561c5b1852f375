// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/mediasync/internal/models"
)

// UserExists reports whether the user is already stored for the server.
func (db *DB) UserExists(ctx context.Context, serverID, id string) (bool, error) {
	return db.exists(ctx, "users", serverID, id)
}

// UpsertUser writes every user column, replacing the stored row.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := db.execWithConflictRetry(ctx, `
		INSERT INTO users (server_id, id, name, is_administrator, is_disabled,
			last_login_date, last_activity_date, primary_image_tag, raw_data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (server_id, id) DO UPDATE SET
			name = excluded.name,
			is_administrator = excluded.is_administrator,
			is_disabled = excluded.is_disabled,
			last_login_date = excluded.last_login_date,
			last_activity_date = excluded.last_activity_date,
			primary_image_tag = excluded.primary_image_tag,
			raw_data = excluded.raw_data,
			updated_at = excluded.updated_at`,
		u.ServerID, u.ID, u.Name, u.IsAdministrator, u.IsDisabled,
		nullableTime(u.LastLoginDate), nullableTime(u.LastActivityDate),
		emptyToNull(u.PrimaryImageTag), emptyToNull(string(u.RawData)), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// ListUserIDs returns the set of user IDs stored for a server.
func (db *DB) ListUserIDs(ctx context.Context, serverID string) (map[string]struct{}, error) {
	return db.idSet(ctx, "users", serverID)
}

// CountUsers returns the number of users stored for a server.
func (db *DB) CountUsers(ctx context.Context, serverID string) (int, error) {
	return db.count(ctx, "users", serverID)
}

// exists, idSet and count interpolate a table name from a fixed set of
// call sites, never from input.

func (db *DB) exists(ctx context.Context, table, serverID, id string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE server_id = ? AND id = ?`, serverID, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return true, nil
}

func (db *DB) idSet(ctx context.Context, table, serverID string) (map[string]struct{}, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM `+table+` WHERE server_id = ?`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", table, err)
	}
	defer closeQuietly(rows)

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (db *DB) count(ctx context.Context, table, serverID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE server_id = ?`, serverID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

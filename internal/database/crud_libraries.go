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

// LibraryExists reports whether the library is already stored for the server.
func (db *DB) LibraryExists(ctx context.Context, serverID, id string) (bool, error) {
	return db.exists(ctx, "libraries", serverID, id)
}

// UpsertLibrary writes every library column, replacing the stored row.
func (db *DB) UpsertLibrary(ctx context.Context, l *models.Library) error {
	_, err := db.execWithConflictRetry(ctx, `
		INSERT INTO libraries (server_id, id, name, collection_type, type,
			primary_image_tag, raw_data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (server_id, id) DO UPDATE SET
			name = excluded.name,
			collection_type = excluded.collection_type,
			type = excluded.type,
			primary_image_tag = excluded.primary_image_tag,
			raw_data = excluded.raw_data,
			updated_at = excluded.updated_at`,
		l.ServerID, l.ID, l.Name, emptyToNull(l.CollectionType), emptyToNull(l.Type),
		emptyToNull(l.PrimaryImageTag), emptyToNull(string(l.RawData)), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert library %s: %w", l.ID, err)
	}
	return nil
}

// ListLibraries returns the server's libraries ordered by name.
func (db *DB) ListLibraries(ctx context.Context, serverID string) ([]*models.Library, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT server_id, id, name, collection_type, type, primary_image_tag, updated_at
		FROM libraries WHERE server_id = ? ORDER BY name, id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer closeQuietly(rows)

	var libs []*models.Library
	for rows.Next() {
		var (
			l                       models.Library
			collType, typ, imageTag sql.NullString
		)
		if err := rows.Scan(&l.ServerID, &l.ID, &l.Name, &collType, &typ, &imageTag, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		l.CollectionType = collType.String
		l.Type = typ.String
		l.PrimaryImageTag = imageTag.String
		libs = append(libs, &l)
	}
	return libs, rows.Err()
}

// ListLibraryIDs returns the set of library IDs stored for a server.
func (db *DB) ListLibraryIDs(ctx context.Context, serverID string) (map[string]struct{}, error) {
	return db.idSet(ctx, "libraries", serverID)
}

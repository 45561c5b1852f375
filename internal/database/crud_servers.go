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
	"time"

	"github.com/tomtom215/mediasync/internal/models"
)

const serverColumns = `id, name, url, api_key, sync_status, sync_progress, sync_error,
	last_sync_started, last_sync_completed, created_at, updated_at`

// UpsertServer inserts a server or refreshes its connection details. Sync
// status columns are left untouched on conflict.
func (db *DB) UpsertServer(ctx context.Context, s *models.Server) error {
	now := time.Now().UTC()
	status := s.SyncStatus
	if status == "" {
		status = models.SyncStatusPending
	}

	_, err := db.execWithConflictRetry(ctx, `
		INSERT INTO servers (id, name, url, api_key, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			api_key = excluded.api_key,
			updated_at = excluded.updated_at`,
		s.ID, s.Name, s.URL, s.APIKey, string(status), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert server %s: %w", s.ID, err)
	}
	return nil
}

// GetServer returns a server by ID or ErrServerNotFound.
func (db *DB) GetServer(ctx context.Context, id string) (*models.Server, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	return s, nil
}

// ListServers returns all servers ordered by ID.
func (db *DB) ListServers(ctx context.Context) ([]*models.Server, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer closeQuietly(rows)

	var servers []*models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// SyncStatusUpdate is one persisted sync state transition. Nil timestamps
// keep the stored value.
type SyncStatusUpdate struct {
	Status    models.SyncStatus
	Progress  models.SyncStage
	Error     string
	Started   *time.Time
	Completed *time.Time
}

// UpdateServerSyncStatus persists the server's sync state.
func (db *DB) UpdateServerSyncStatus(ctx context.Context, id string, u SyncStatusUpdate) error {
	res, err := db.execWithConflictRetry(ctx, `
		UPDATE servers SET
			sync_status = ?,
			sync_progress = ?,
			sync_error = ?,
			last_sync_started = COALESCE(?, last_sync_started),
			last_sync_completed = COALESCE(?, last_sync_completed),
			updated_at = ?
		WHERE id = ?`,
		string(u.Status), emptyToNull(string(u.Progress)), emptyToNull(u.Error),
		nullableTime(u.Started), nullableTime(u.Completed), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrServerNotFound
	}
	return nil
}

// FailInterruptedSyncs marks every server still in syncing as failed. It
// runs at startup, when no sync can legitimately be in progress.
func (db *DB) FailInterruptedSyncs(ctx context.Context, reason string) (int64, error) {
	res, err := db.execWithConflictRetry(ctx, `
		UPDATE servers SET sync_status = ?, sync_error = ?, updated_at = ?
		WHERE sync_status = ?`,
		string(models.SyncStatusFailed), reason, time.Now().UTC(), string(models.SyncStatusSyncing))
	if err != nil {
		return 0, fmt.Errorf("failed to reset interrupted syncs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*models.Server, error) {
	var (
		s                  models.Server
		status             string
		progress, syncErr  sql.NullString
		started, completed sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.APIKey, &status, &progress, &syncErr,
		&started, &completed, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.SyncStatus = models.SyncStatus(status)
	s.SyncProgress = models.SyncStage(progress.String)
	s.SyncError = syncErr.String
	s.LastSyncStarted = timePtr(started)
	s.LastSyncCompleted = timePtr(completed)
	return &s, nil
}

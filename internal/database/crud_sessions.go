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

	"github.com/google/uuid"

	"github.com/tomtom215/mediasync/internal/models"
)

// InsertSession stores a finished playback session. An empty ID is
// replaced with a new UUID. PlayDuration is stored in whole seconds.
func (db *DB) InsertSession(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	var transcoding any
	if s.Transcoding != nil {
		v, err := jsonText(s.Transcoding)
		if err != nil {
			return fmt.Errorf("failed to encode transcoding: %w", err)
		}
		transcoding = v
	}

	_, err := db.execWithConflictRetry(ctx, `
		INSERT INTO sessions (id, server_id, session_key, user_id, external_user_id, user_name,
			item_id, item_name, item_type, series_id, series_name, season_id,
			device_id, device_name, client, application_version, remote_end_point,
			start_time, end_time, play_duration, position_ticks, runtime_ticks,
			percent_complete, completed, play_method, is_transcoding, transcoding,
			raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ServerID, s.SessionKey, nullableString(s.UserID), emptyToNull(s.ExternalUserID),
		emptyToNull(s.UserName), s.ItemID, emptyToNull(s.ItemName), emptyToNull(s.ItemType),
		emptyToNull(s.SeriesID), emptyToNull(s.SeriesName), emptyToNull(s.SeasonID),
		emptyToNull(s.DeviceID), emptyToNull(s.DeviceName), emptyToNull(s.Client),
		emptyToNull(s.ApplicationVersion), emptyToNull(s.RemoteEndPoint),
		s.StartTime.UTC(), s.EndTime.UTC(), int64(s.PlayDuration/time.Second),
		s.PositionTicks, s.RuntimeTicks, s.PercentComplete, s.Completed,
		emptyToNull(s.PlayMethod), s.Transcoding != nil, transcoding,
		emptyToNull(string(s.RawData)), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	return nil
}

// ListSessions returns the most recent finished sessions for a server.
func (db *DB) ListSessions(ctx context.Context, serverID string, limit int) ([]*models.Session, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, server_id, session_key, user_id, external_user_id, user_name,
			item_id, item_name, item_type, series_id, series_name, season_id,
			device_id, device_name, client, application_version, remote_end_point,
			start_time, end_time, play_duration, position_ticks, runtime_ticks,
			percent_complete, completed, play_method, transcoding
		FROM sessions WHERE server_id = ?
		ORDER BY end_time DESC LIMIT ?`, serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer closeQuietly(rows)

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                                                   models.Session
		userID, externalUserID, userName                    sql.NullString
		itemName, itemType, seriesID, seriesName, seasonID  sql.NullString
		deviceID, deviceName, client, appVersion, remoteEnd sql.NullString
		playMethod, transcoding                             sql.NullString
		positionTicks, runtimeTicks                         sql.NullInt64
		percent                                             sql.NullFloat64
		playSeconds                                         int64
	)
	if err := row.Scan(&s.ID, &s.ServerID, &s.SessionKey, &userID, &externalUserID, &userName,
		&s.ItemID, &itemName, &itemType, &seriesID, &seriesName, &seasonID,
		&deviceID, &deviceName, &client, &appVersion, &remoteEnd,
		&s.StartTime, &s.EndTime, &playSeconds, &positionTicks, &runtimeTicks,
		&percent, &s.Completed, &playMethod, &transcoding); err != nil {
		return nil, err
	}

	s.UserID = stringPtr(userID)
	s.ExternalUserID = externalUserID.String
	s.UserName = userName.String
	s.ItemName = itemName.String
	s.ItemType = itemType.String
	s.SeriesID = seriesID.String
	s.SeriesName = seriesName.String
	s.SeasonID = seasonID.String
	s.DeviceID = deviceID.String
	s.DeviceName = deviceName.String
	s.Client = client.String
	s.ApplicationVersion = appVersion.String
	s.RemoteEndPoint = remoteEnd.String
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	s.PlayDuration = time.Duration(playSeconds) * time.Second
	s.PositionTicks = positionTicks.Int64
	s.RuntimeTicks = runtimeTicks.Int64
	s.PercentComplete = percent.Float64
	s.PlayMethod = playMethod.String

	if transcoding.Valid {
		s.Transcoding = &models.Transcoding{}
		if err := decodeJSONText(transcoding, s.Transcoding); err != nil {
			return nil, fmt.Errorf("failed to decode transcoding: %w", err)
		}
	}
	return &s, nil
}

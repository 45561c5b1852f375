// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package database

import (
	"context"
	"fmt"
)

// JSON-shaped columns (genres, tags, provider_ids, image arrays, raw_data)
// are VARCHAR so the store does not depend on the json extension.
//
// Only insert-only tables carry secondary indexes: DuckDB refuses
// ON CONFLICT DO UPDATE assignments to indexed columns.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS servers (
		id VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL,
		url VARCHAR NOT NULL,
		api_key VARCHAR NOT NULL,
		sync_status VARCHAR NOT NULL DEFAULT 'pending',
		sync_progress VARCHAR,
		sync_error VARCHAR,
		last_sync_started TIMESTAMP,
		last_sync_completed TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS libraries (
		server_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		name VARCHAR NOT NULL,
		collection_type VARCHAR,
		type VARCHAR,
		primary_image_tag VARCHAR,
		raw_data VARCHAR,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (server_id, id)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		server_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		name VARCHAR NOT NULL,
		is_administrator BOOLEAN NOT NULL DEFAULT false,
		is_disabled BOOLEAN NOT NULL DEFAULT false,
		last_login_date TIMESTAMP,
		last_activity_date TIMESTAMP,
		primary_image_tag VARCHAR,
		raw_data VARCHAR,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (server_id, id)
	)`,

	`CREATE TABLE IF NOT EXISTS items (
		server_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		library_id VARCHAR NOT NULL,
		etag VARCHAR,
		name VARCHAR,
		original_title VARCHAR,
		sort_name VARCHAR,
		overview VARCHAR,
		type VARCHAR,
		media_type VARCHAR,
		premiere_date TIMESTAMP,
		date_created TIMESTAMP,
		end_date TIMESTAMP,
		production_year INTEGER,
		community_rating DOUBLE,
		critic_rating DOUBLE,
		official_rating VARCHAR,
		run_time_ticks BIGINT,
		is_folder BOOLEAN NOT NULL DEFAULT false,
		parent_id VARCHAR,
		series_id VARCHAR,
		series_name VARCHAR,
		season_id VARCHAR,
		season_name VARCHAR,
		index_number INTEGER,
		parent_index_number INTEGER,
		genres VARCHAR,
		tags VARCHAR,
		provider_ids VARCHAR,
		primary_image_tag VARCHAR,
		thumb_image_tag VARCHAR,
		logo_image_tag VARCHAR,
		backdrop_image_tags VARCHAR,
		image_blur_hashes VARCHAR,
		processed BOOLEAN NOT NULL DEFAULT false,
		raw_data VARCHAR,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (server_id, id)
	)`,

	`CREATE TABLE IF NOT EXISTS activities (
		server_id VARCHAR NOT NULL,
		id VARCHAR NOT NULL,
		name VARCHAR,
		short_overview VARCHAR,
		type VARCHAR,
		date TIMESTAMP NOT NULL,
		user_id VARCHAR,
		item_id VARCHAR,
		severity VARCHAR,
		raw_data VARCHAR,
		PRIMARY KEY (server_id, id)
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR PRIMARY KEY,
		server_id VARCHAR NOT NULL,
		session_key VARCHAR NOT NULL,
		user_id VARCHAR,
		external_user_id VARCHAR,
		user_name VARCHAR,
		item_id VARCHAR NOT NULL,
		item_name VARCHAR,
		item_type VARCHAR,
		series_id VARCHAR,
		series_name VARCHAR,
		season_id VARCHAR,
		device_id VARCHAR,
		device_name VARCHAR,
		client VARCHAR,
		application_version VARCHAR,
		remote_end_point VARCHAR,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		play_duration BIGINT NOT NULL,
		position_ticks BIGINT,
		runtime_ticks BIGINT,
		percent_complete DOUBLE,
		completed BOOLEAN NOT NULL DEFAULT false,
		play_method VARCHAR,
		is_transcoding BOOLEAN NOT NULL DEFAULT false,
		transcoding VARCHAR,
		raw_data VARCHAR,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS job_results (
		id VARCHAR PRIMARY KEY,
		job_id VARCHAR NOT NULL,
		job_name VARCHAR NOT NULL,
		server_id VARCHAR,
		status VARCHAR NOT NULL,
		attempt INTEGER NOT NULL,
		result VARCHAR,
		error VARCHAR,
		processing_time_ms BIGINT NOT NULL,
		completed_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_server_end ON sessions(server_id, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_job_results_completed ON job_results(completed_at)`,
}

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

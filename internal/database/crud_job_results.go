// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/mediasync/internal/models"
)

// InsertJobResult records the outcome of one job attempt.
func (db *DB) InsertJobResult(ctx context.Context, r *models.JobResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}

	_, err := db.execWithConflictRetry(ctx, `
		INSERT INTO job_results (id, job_id, job_name, server_id, status, attempt,
			result, error, processing_time_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.JobID, r.JobName, emptyToNull(r.ServerID), string(r.Status), r.Attempt,
		emptyToNull(string(r.Result)), emptyToNull(r.Error),
		r.ProcessingTime.Milliseconds(), r.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert job result for %s: %w", r.JobID, err)
	}
	return nil
}

// JobResultFilter narrows ListJobResults. Zero fields match everything.
type JobResultFilter struct {
	JobName  string
	ServerID string
	Status   models.JobStatus
	Limit    int
}

// ListJobResults returns job results newest first.
func (db *DB) ListJobResults(ctx context.Context, f JobResultFilter) ([]*models.JobResult, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.JobName != "" {
		where = append(where, "job_name = ?")
		args = append(args, f.JobName)
	}
	if f.ServerID != "" {
		where = append(where, "server_id = ?")
		args = append(args, f.ServerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, job_id, job_name, server_id, status, attempt, result, error,
		processing_time_ms, completed_at FROM job_results`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job results: %w", err)
	}
	defer closeQuietly(rows)

	var results []*models.JobResult
	for rows.Next() {
		var (
			r                        models.JobResult
			serverID, result, errMsg sql.NullString
			status                   string
			processingMS             int64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.JobName, &serverID, &status, &r.Attempt,
			&result, &errMsg, &processingMS, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job result: %w", err)
		}
		r.ServerID = serverID.String
		r.Status = models.JobStatus(status)
		if result.Valid {
			r.Result = []byte(result.String)
		}
		r.Error = errMsg.String
		r.ProcessingTime = time.Duration(processingMS) * time.Millisecond
		r.CompletedAt = r.CompletedAt.UTC()
		results = append(results, &r)
	}
	return results, rows.Err()
}

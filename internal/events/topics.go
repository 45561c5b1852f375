// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package events

// Event topics.
const (
	TopicSyncStatus       = "sync.status"
	TopicJobsCompleted    = "jobs.completed"
	TopicSessionsEnded    = "sessions.ended"
	TopicSessionsSnapshot = "sessions.snapshot"
)

// AllTopics lists every topic, in a stable order.
var AllTopics = []string{
	TopicSyncStatus,
	TopicJobsCompleted,
	TopicSessionsEnded,
	TopicSessionsSnapshot,
}

// Metadata keys set on every message.
const (
	MetadataTopic         = "topic"
	MetadataCorrelationID = "correlation_id"
)

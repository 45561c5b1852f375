// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package metrics provides Prometheus metrics for the job server.

All collectors are registered with the default registry through promauto
and exposed by the HTTP API at /metrics.

# Available Metrics

HTTP API:
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - api_rate_limit_hits_total

Media server client:
  - media_server_requests_total (server_id, status)
  - media_server_request_duration_seconds (server_id)
  - media_server_retries_total (server_id)
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_transitions_total

Sync pipelines:
  - sync_duration_seconds (entity)
  - sync_entities_total (entity, action)
  - sync_api_requests_total, sync_db_writes_total
  - sync_errors_total (entity, kind)
  - sync_last_success_timestamp (server_id)

Job queue:
  - jobs_enqueued_total, jobs_finished_total, job_duration_seconds
  - job_queue_depth (state)

Session poller:
  - session_poll_cycles_total, session_poll_skipped_total
  - session_poll_duration_seconds
  - sessions_active (server_id), sessions_recorded_total (completed)

Example PromQL:

	# Items changed per hour
	sum(increase(sync_entities_total{entity="items",action="updated"}[1h]))

	# Overlapping poll ticks
	rate(session_poll_skipped_total[5m])

# Cardinality

Label values are bounded: server IDs come from configuration, job names
and entities are fixed sets, and status codes are HTTP codes.

# Thread Safety

All recording functions are safe for concurrent use.
*/
package metrics

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package api serves the mediasync HTTP API on a chi router.

Routes:

	GET  /api/v1/health               dependency status (503 when degraded)
	GET  /api/v1/health/live          liveness
	GET  /api/v1/servers              servers with their sync status
	GET  /api/v1/servers/{id}/status  one server's sync status
	POST /api/v1/servers/{id}/sync    enqueue a full sync
	POST /api/v1/jobs/{name}          enqueue any job type
	GET  /api/v1/jobs/results         recent job attempts (?limit=&job=&serverId=&status=)
	GET  /api/v1/sessions/live        sessions tracked by the poller
	GET  /api/v1/ws                   websocket event push
	GET  /metrics                     Prometheus exposition

Every JSON response uses the same envelope:

	{"status": "success", "data": ..., "metadata": {"timestamp": "..."}}
	{"status": "error", "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {...}}}

Enqueue endpoints answer 202 with the job id, 404 for an unknown server
or job type, 409 when a job with the same singleton key is pending, and
400 with per-field details when the body fails validation.

Requests are rate limited per client IP with go-chi/httprate. Enqueue and
websocket upgrades have tighter limits than reads. A caller supplied
X-Correlation-ID header is stored with enqueued jobs, so the job's log
lines and the events it publishes share the request's correlation id.
*/
package api

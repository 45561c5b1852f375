// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package main is the entry point of the Mediasync server.

Mediasync mirrors users, libraries, items and activity log entries from one
or more Jellyfin servers into DuckDB, runs those syncs as durable jobs on a
BadgerDB-backed queue, and turns periodic session snapshots into finished
playback session records.

# Startup

 1. Configuration: Koanf v2 (defaults, optional YAML, environment)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Database: DuckDB schema, then servers left in syncing are failed
 4. Event bus: watermill gochannel, or NATS JetStream when NATS_ENABLED=true
 5. Registry: one throttled client per configured server
 6. Job queue: BadgerDB store, sync handlers, recurring schedule
 7. Session poller (SESSION_POLL_ENABLED=true)
 8. WebSocket hub and event forwarder
 9. HTTP API on HTTP_HOST:HTTP_PORT
 10. Suture supervisor tree

The supervisor tree:

	mediasync
	├── jobs-layer
	│   ├── job-queue
	│   └── job-scheduler
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── websocket-forwarder
	│   └── session-poller
	└── api-layer
	    └── http-server

# Configuration

	JELLYFIN_ENABLED=true
	JELLYFIN_URL=http://jellyfin:8096
	JELLYFIN_API_KEY=...
	DUCKDB_PATH=/data/mediasync.duckdb
	QUEUE_PATH=/data/queue          # empty keeps the queue in memory
	ENCRYPTION_SECRET=...           # encrypts stored API keys
	LOG_LEVEL=info
	LOG_FORMAT=json

# Shutdown

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service: the queue releases in-flight leases, the HTTP server drains for up
to 10s, and the hub closes client connections with a going-away frame.
*/
package main

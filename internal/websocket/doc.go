// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package websocket pushes server events to connected dashboard clients.

A Hub owns the set of connected clients and fans every broadcast out to
them. A Forwarder subscribes to the event bus and turns each bus message
into a hub broadcast, so clients see sync status changes, finished job
attempts, ended sessions and live session snapshots as they happen:

	events.Bus ──► Forwarder ──► Hub ──┬──► Client
	                                   ├──► Client
	                                   └──► Client

Every frame is a JSON object with a type and a data field:

	{"type": "sync_status", "data": {"server_id": "jf-1", "status": "syncing"}}

Clients may send {"type": "ping"} and receive {"type": "pong"}. The
connection is also kept alive with protocol-level ping frames.

A client whose send buffer is full is dropped rather than slowing the
hub down. Both Hub and Forwarder implement suture.Service.
*/
package websocket

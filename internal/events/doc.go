// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package events carries sync, job and session events between components.

The Bus publishes JSON payloads on Watermill. By default messages stay in
process on a gochannel pub/sub; with NATS enabled they go through
JetStream so several instances share one event stream.

Topics:

  - sync.status: server sync state changes
  - jobs.completed: job completion records
  - sessions.ended: persisted playback sessions
  - sessions.snapshot: live sessions after each poll cycle

Delivery is best effort for in-process subscribers: a message published
with no subscriber is dropped.
*/
package events

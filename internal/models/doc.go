// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

// Package models defines the data shared between the store, the sync
// pipelines, the job queue, and the session poller.
//
// Two families live here:
//
//   - Stored entities (Server, Library, User, Item, Activity, Session,
//     JobResult) keyed by the media server's opaque string IDs and scoped to
//     a server ID.
//   - Jellyfin wire types (Jellyfin*) decoded from the REST API. Optional
//     fields are pointers so that "absent" can be told apart from a zero value.
package models

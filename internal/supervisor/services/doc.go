// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

// Package services adapts components without a context-aware Serve method
// to suture.Service. HTTPServerService wraps *http.Server: it runs
// ListenAndServe until the supervisor cancels the context, then calls
// Shutdown with a bounded timeout.
package services

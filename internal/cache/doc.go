// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

// Package cache provides a bounded, thread-safe LRU cache with optional TTL.
//
// The sync pipelines use it to remember which library an ancestor item
// belongs to, so items that share a series or folder cost one parent walk:
//
//	c := cache.NewLRU[string, string](4096, 0)
//	if lib, ok := c.Get(parentID); ok {
//		return lib, nil
//	}
package cache

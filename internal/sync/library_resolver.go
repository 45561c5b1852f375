// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/mediasync/internal/cache"
)

// ErrLibraryNotFound is returned when an item's ancestry reaches the root
// without passing a known library.
var ErrLibraryNotFound = errors.New("library not found")

const (
	// maxAncestorDepth bounds the ParentId walk.
	maxAncestorDepth = 32

	resolverCacheSize = 4096
)

// ResolveLibraryID walks ParentId links upward from itemID until an ID in
// libraryIDs is found. The walk stops with ErrLibraryNotFound at the root,
// on a cycle, or past maxAncestorDepth.
func ResolveLibraryID(ctx context.Context, client MediaServerClient, itemID string, libraryIDs map[string]struct{}) (string, error) {
	visited := make(map[string]struct{})
	current := itemID

	for depth := 0; depth < maxAncestorDepth; depth++ {
		if _, ok := libraryIDs[current]; ok {
			return current, nil
		}
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}

		item, err := client.GetItem(ctx, current)
		if err != nil {
			return "", fmt.Errorf("failed to fetch ancestor %s of item %s: %w", current, itemID, err)
		}
		if item.ParentID == "" {
			break
		}
		current = item.ParentID
	}
	return "", fmt.Errorf("%w: item %s", ErrLibraryNotFound, itemID)
}

// LibraryResolver caches resolved ancestors so items sharing a series or
// folder cost one walk.
type LibraryResolver struct {
	client     MediaServerClient
	libraryIDs map[string]struct{}
	cache      *cache.LRU[string, string] // ancestor item ID -> library ID
}

// NewLibraryResolver creates a resolver for one server's libraries.
func NewLibraryResolver(client MediaServerClient, libraryIDs map[string]struct{}) *LibraryResolver {
	return &LibraryResolver{
		client:     client,
		libraryIDs: libraryIDs,
		cache:      cache.NewLRU[string, string](resolverCacheSize, 0),
	}
}

// Resolve returns the library of an item whose direct parent is parentID.
// An empty parentID falls back to a full walk from itemID.
func (r *LibraryResolver) Resolve(ctx context.Context, itemID, parentID string) (string, error) {
	start := parentID
	if start == "" {
		start = itemID
	}

	if libID, ok := r.cache.Get(start); ok {
		return libID, nil
	}

	libID, err := ResolveLibraryID(ctx, r.client, start, r.libraryIDs)
	if err != nil {
		return "", err
	}

	r.cache.Add(start, libID)
	return libID, nil
}

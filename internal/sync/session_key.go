// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"strings"

	"github.com/tomtom215/mediasync/internal/models"
)

// SessionKey identifies a playback across polls: userID|deviceID|seriesID|itemID,
// with seriesID left out when empty.
func SessionKey(userID, deviceID, seriesID, itemID string) string {
	if seriesID == "" {
		return strings.Join([]string{userID, deviceID, itemID}, "|")
	}
	return strings.Join([]string{userID, deviceID, seriesID, itemID}, "|")
}

// sessionKeyOf returns the key of a session with a now-playing item.
func sessionKeyOf(s *models.JellyfinSession) string {
	return SessionKey(s.UserID, s.DeviceID, s.NowPlayingItem.SeriesID, s.NowPlayingItem.ID)
}

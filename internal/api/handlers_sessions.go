// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"net/http"
	"sort"

	"github.com/tomtom215/mediasync/internal/models"
)

// LiveSessions returns the sessions the poller currently tracks, ordered
// by server and start time. ?serverId= narrows to one server.
func (h *Handler) LiveSessions(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "Session polling is disabled", nil)
		return
	}

	filter := r.URL.Query().Get("serverId")
	var out []models.TrackedSession
	for serverID, sessions := range h.sessions.Snapshot() {
		if filter != "" && serverID != filter {
			continue
		}
		out = append(out, sessions...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServerID != out[j].ServerID {
			return out[i].ServerID < out[j].ServerID
		}
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].Key < out[j].Key
	})
	respondList(w, out)
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/jobs"
	"github.com/tomtom215/mediasync/internal/models"
	"github.com/tomtom215/mediasync/internal/validation"
)

// serverPath is the {id} path parameter.
type serverPath struct {
	ID string `json:"id" validate:"required,serverid"`
}

// SyncRequest is the optional body of POST /servers/{id}/sync.
type SyncRequest struct {
	Options *models.SyncOptions `json:"options,omitempty" validate:"omitempty"`
}

// ListServers returns every known server with its sync status.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ListServers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to list servers", err)
		return
	}
	respondList(w, servers)
}

// ServerStatus returns one server's sync status.
func (h *Handler) ServerStatus(w http.ResponseWriter, r *http.Request) {
	srv, ok := h.lookupServer(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, srv)
}

// TriggerSync enqueues a full sync of one server. A full sync that is
// already pending for the server answers 409.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	srv, ok := h.lookupServer(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondBodyError(w, err)
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	h.enqueue(w, r, jobs.JobFullSync, &EnqueueRequest{ServerID: srv.ID, Options: req.Options})
}

// lookupServer validates the {id} parameter and loads the server,
// writing the error response when it cannot.
func (h *Handler) lookupServer(w http.ResponseWriter, r *http.Request) (*models.Server, bool) {
	p := serverPath{ID: chi.URLParam(r, "id")}
	if !validateRequest(w, &p) {
		return nil, false
	}

	srv, err := h.store.GetServer(r.Context(), p.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "Server not found", nil)
		return nil, false
	case err != nil:
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to load server", err)
		return nil, false
	}
	return srv, true
}

func respondBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "Request body too large", nil)
		return
	}
	respondErrorDetails(w, http.StatusBadRequest, &validation.APIError{
		Code:    CodeBadRequest,
		Message: "Request body must be a JSON object",
		Details: map[string]any{"error": sanitizeLogValue(err.Error())},
	})
}

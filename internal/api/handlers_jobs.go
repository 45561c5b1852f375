// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/jobs"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/models"
	"github.com/tomtom215/mediasync/internal/validation"
)

const (
	defaultResultsLimit = 50
	maxResultsLimit     = 1000
)

// EnqueueRequest is the body of POST /jobs/{name}.
type EnqueueRequest struct {
	ServerID string              `json:"serverId" validate:"required,serverid"`
	Options  *models.SyncOptions `json:"options,omitempty" validate:"omitempty"`

	// SingletonKey defaults to one pending job per type and server.
	SingletonKey string     `json:"singletonKey,omitempty" validate:"omitempty,max=256"`
	StartAfter   *time.Time `json:"startAfter,omitempty"`
	RetryLimit   *int       `json:"retryLimit,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// EnqueueResponse is returned for an accepted job.
type EnqueueResponse struct {
	JobID    string `json:"jobId"`
	Job      string `json:"job"`
	ServerID string `json:"serverId"`
}

// jobResultsQuery holds the GET /jobs/results filters.
type jobResultsQuery struct {
	Limit    int    `json:"limit" validate:"gte=1,lte=1000"`
	Job      string `json:"job" validate:"omitempty,jobname"`
	ServerID string `json:"serverId" validate:"omitempty,serverid"`
	Status   string `json:"status" validate:"omitempty,oneof=completed retry failed expired"`
}

// EnqueueJob enqueues any registered job type for a server.
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondBodyError(w, err)
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	srv, err := h.store.GetServer(r.Context(), req.ServerID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "Server not found", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to load server", err)
		return
	}
	req.ServerID = srv.ID

	h.enqueue(w, r, chi.URLParam(r, "name"), &req)
}

// enqueue sends req as a job of type name and writes the response.
func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, name string, req *EnqueueRequest) {
	opts := h.queue.DefaultSendOptions()
	opts.SingletonKey = jobs.ServerSingletonKey(name, req.ServerID)
	if req.SingletonKey != "" {
		opts.SingletonKey = req.SingletonKey
	}
	if req.StartAfter != nil {
		opts.StartAfter = *req.StartAfter
	}
	if req.RetryLimit != nil {
		opts.RetryLimit = *req.RetryLimit
	}

	payload := &models.SyncJobPayload{ServerID: req.ServerID, Options: req.Options}
	id, err := h.queue.Send(r.Context(), name, payload, opts)

	var verr *validation.RequestValidationError
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		respondErrorDetails(w, http.StatusNotFound, &validation.APIError{
			Code:    CodeUnknownJob,
			Message: "Unknown job type",
			Details: map[string]any{"job": sanitizeLogValue(name), "registered": h.queue.Registered()},
		})
		return
	case errors.Is(err, jobs.ErrDuplicateJob):
		respondErrorDetails(w, http.StatusConflict, &validation.APIError{
			Code:    CodeDuplicateJob,
			Message: "A job with the same singleton key is already pending",
			Details: map[string]any{"singletonKey": opts.SingletonKey},
		})
		return
	case errors.As(err, &verr):
		respondValidation(w, verr)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to enqueue job", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("job", name).
		Str("job_id", id).
		Str("server_id", req.ServerID).
		Msg("Job enqueued via API")
	respondJSON(w, http.StatusAccepted, &EnqueueResponse{JobID: id, Job: name, ServerID: req.ServerID})
}

// JobResults lists recent job attempt results, newest first.
func (h *Handler) JobResults(w http.ResponseWriter, r *http.Request) {
	q := jobResultsQuery{
		Limit:    getIntParam(r, "limit", defaultResultsLimit),
		Job:      r.URL.Query().Get("job"),
		ServerID: r.URL.Query().Get("serverId"),
		Status:   r.URL.Query().Get("status"),
	}
	if !validateRequest(w, &q) {
		return
	}

	results, err := h.store.ListJobResults(r.Context(), database.JobResultFilter{
		JobName:  q.Job,
		ServerID: q.ServerID,
		Status:   models.JobStatus(q.Status),
		Limit:    min(q.Limit, maxResultsLimit),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to list job results", err)
		return
	}
	respondList(w, results)
}

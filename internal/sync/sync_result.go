// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

// Status is the outcome class of a sync run.
type Status string

// Sync outcomes.
const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Result is the outcome of a pipeline or orchestrator run. Build it only
// with NewResult.
type Result[T any] struct {
	Status  Status          `json:"status"`
	Data    T               `json:"data"`
	Errors  []string        `json:"errors,omitempty"`
	Err     error           `json:"-"`
	Error   string          `json:"error,omitempty"`
	Metrics MetricsSnapshot `json:"metrics"`
}

// NewResult decides the final status of a run. A non-nil err gives
// StatusError; a requested StatusPartial or any collected errors give
// StatusPartial; anything else is StatusSuccess.
func NewResult[T any](status Status, data T, m MetricsSnapshot, err error, errs []string) Result[T] {
	r := Result[T]{
		Data:    data,
		Errors:  errs,
		Err:     err,
		Metrics: m,
	}
	switch {
	case err != nil:
		r.Status = StatusError
		r.Error = err.Error()
	case status == StatusPartial || status == StatusError || len(errs) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
	return r
}

// Failed reports whether the run ended in StatusError.
func (r Result[T]) Failed() bool {
	return r.Status == StatusError
}

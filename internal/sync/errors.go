// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"errors"
	"fmt"
)

// RecordError is a failure confined to one record. The pipeline logs it,
// counts it and continues; the run degrades to partial.
type RecordError struct {
	Entity Entity
	ID     string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// PipelineError is a failure of the pipeline's own setup or paging calls.
// The pipeline stops and its result is error.
type PipelineError struct {
	Entity Entity
	Op     string
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s sync: %s: %v", e.Entity, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a per-record failure.
func IsRecoverable(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// IsFatal reports whether err stopped a whole pipeline.
func IsFatal(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe)
}

func recordErr(entity Entity, id string, err error) *RecordError {
	return &RecordError{Entity: entity, ID: id, Err: err}
}

func pipelineErr(entity Entity, op string, err error) *PipelineError {
	return &PipelineError{Entity: entity, Op: op, Err: err}
}

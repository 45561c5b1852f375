// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"errors"
	"fmt"

	"github.com/tomtom215/mediasync/internal/models"
)

var (
	// ErrInvalidTransition is returned for an event the current state does
	// not accept.
	ErrInvalidTransition = errors.New("invalid sync state transition")

	// ErrSyncInProgress is returned when a sync begins while another one
	// for the same server is running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// SyncState is the persisted sync state of one server.
//
//	pending|completed|failed --Begin(stage)--> syncing(stage)
//	syncing(a) --Advance(b), b after a--> syncing(b)
//	syncing --Complete--> completed(completed)
//	syncing --Fail(err)--> failed(stage kept, error set)
//	any --Reset--> pending
type SyncState struct {
	Status models.SyncStatus `json:"status"`
	Stage  models.SyncStage  `json:"stage,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// EventKind enumerates state machine inputs.
type EventKind int

// State machine inputs.
const (
	EventBegin EventKind = iota
	EventAdvance
	EventComplete
	EventFail
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventBegin:
		return "begin"
	case EventAdvance:
		return "advance"
	case EventComplete:
		return "complete"
	case EventFail:
		return "fail"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one input to Transition.
type Event struct {
	Kind  EventKind
	Stage models.SyncStage
	Err   error
}

// Begin starts a sync at stage.
func Begin(stage models.SyncStage) Event { return Event{Kind: EventBegin, Stage: stage} }

// Advance moves a running sync to a later stage.
func Advance(stage models.SyncStage) Event { return Event{Kind: EventAdvance, Stage: stage} }

// Complete ends a running sync successfully.
func Complete() Event { return Event{Kind: EventComplete} }

// Fail ends a running sync with err.
func Fail(err error) Event { return Event{Kind: EventFail, Err: err} }

// Reset returns any state to pending.
func Reset() Event { return Event{Kind: EventReset} }

// stageOrder ranks the stages a running sync may occupy.
var stageOrder = map[models.SyncStage]int{
	models.SyncStageUsers:      1,
	models.SyncStageLibraries:  2,
	models.SyncStageItems:      3,
	models.SyncStageActivities: 4,
}

// Transition is the only way a SyncState changes. On error the input
// state is returned unchanged.
func Transition(s SyncState, e Event) (SyncState, error) {
	invalid := func() (SyncState, error) {
		return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, e.Kind, s.Status)
	}

	switch e.Kind {
	case EventBegin:
		if _, ok := stageOrder[e.Stage]; !ok {
			return invalid()
		}
		switch s.Status {
		case models.SyncStatusSyncing:
			return s, ErrSyncInProgress
		case models.SyncStatusPending, models.SyncStatusCompleted, models.SyncStatusFailed, "":
			return SyncState{Status: models.SyncStatusSyncing, Stage: e.Stage}, nil
		}

	case EventAdvance:
		next, ok := stageOrder[e.Stage]
		if !ok || s.Status != models.SyncStatusSyncing || next <= stageOrder[s.Stage] {
			return invalid()
		}
		return SyncState{Status: models.SyncStatusSyncing, Stage: e.Stage}, nil

	case EventComplete:
		if s.Status != models.SyncStatusSyncing {
			return invalid()
		}
		return SyncState{Status: models.SyncStatusCompleted, Stage: models.SyncStageCompleted}, nil

	case EventFail:
		if s.Status != models.SyncStatusSyncing {
			return invalid()
		}
		msg := "unknown error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return SyncState{Status: models.SyncStatusFailed, Stage: s.Stage, Error: msg}, nil

	case EventReset:
		return SyncState{Status: models.SyncStatusPending}, nil
	}
	return invalid()
}

// StateOf extracts the sync state of a stored server.
func StateOf(srv *models.Server) SyncState {
	return SyncState{Status: srv.SyncStatus, Stage: srv.SyncProgress, Error: srv.SyncError}
}

// StageFor maps an entity pipeline to its orchestrator stage.
func StageFor(e Entity) models.SyncStage {
	switch e {
	case EntityUsers:
		return models.SyncStageUsers
	case EntityLibraries:
		return models.SyncStageLibraries
	case EntityItems:
		return models.SyncStageItems
	case EntityActivities:
		return models.SyncStageActivities
	default:
		return models.SyncStageNone
	}
}

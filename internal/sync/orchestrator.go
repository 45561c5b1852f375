// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/models"
)

// InterruptedReason is stored on servers left syncing by a restart.
const InterruptedReason = "interrupted by restart"

// StaleSyncReason is recorded when a sync begins over a stored syncing
// state that no run in this process owns.
const StaleSyncReason = "previous sync ended without recording a terminal state"

// terminalWriteTimeout bounds terminal state writes, retries included.
// They run on a context detached from the job's cancellation.
const terminalWriteTimeout = 30 * time.Second

// errNoTerminalState fails a run that returned without reaching Complete
// or Fail.
var errNoTerminalState = errors.New("sync ended without a terminal state")

// Publisher delivers events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// StageOutcome summarizes one stage of a full sync.
type StageOutcome struct {
	Stage  models.SyncStage `json:"stage"`
	Status Status           `json:"status"`
	Counts EntityCounts     `json:"counts"`
	Error  string           `json:"error,omitempty"`
}

// FullSyncData is the payload of a full sync result.
type FullSyncData struct {
	ServerID string         `json:"server_id"`
	Stages   []StageOutcome `json:"stages"`
}

// Orchestrator drives server sync state through Transition and runs the
// pipelines in stage order.
type Orchestrator struct {
	store     Store
	publisher Publisher
	now       func() time.Time

	// terminalBackOff paces retries of a failed terminal state write.
	terminalBackOff func() backoff.BackOff

	// mu makes read-transition-write of one server's state atomic within
	// the process and guards running.
	mu      sync.Mutex
	running map[string]struct{}
}

// NewOrchestrator creates an orchestrator. publisher may be nil.
func NewOrchestrator(store Store, publisher Publisher) *Orchestrator {
	return &Orchestrator{
		store:           store,
		publisher:       publisher,
		now:             time.Now,
		terminalBackOff: defaultTerminalBackOff,
		running:         make(map[string]struct{}),
	}
}

func defaultTerminalBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = terminalWriteTimeout
	return b
}

// RecoverInterrupted marks servers left in syncing as failed. Call it once
// at startup before any sync job runs.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) (int64, error) {
	n, err := o.store.FailInterruptedSyncs(ctx, InterruptedReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Warn().Int64("servers", n).Msg("Marked interrupted syncs as failed")
	}
	return n, nil
}

// FullSync runs users, libraries, items and activities in that order. A
// failing stage does not stop later stages. Any stage error, or a panic,
// leaves the server failed; otherwise it is completed.
func (o *Orchestrator) FullSync(ctx context.Context, sy *Syncer) (res Result[FullSyncData]) {
	serverID := sy.serverID
	start := o.now()
	data := FullSyncData{ServerID: serverID}

	state, err := o.begin(ctx, serverID, models.SyncStageUsers)
	if err != nil {
		return NewResult(StatusError, data, MetricsSnapshot{Start: start, End: start}, err, nil)
	}
	defer o.release(serverID)

	var (
		snaps     []MetricsSnapshot
		allErrs   []string
		stageErrs []error
		partial   bool
		terminal  bool
		final     = Fail(errNoTerminalState)
	)
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("sync orchestration panicked: %v", r)
			logging.Ctx(ctx).Error().Str("server_id", serverID).Interface("panic", r).Msg("Full sync panicked")
			_ = o.terminate(ctx, serverID, state, Fail(perr))
			end := o.now()
			res = NewResult(StatusError, data, MergeSnapshots(start, end, snaps...), perr, allErrs)
			return
		}
		if !terminal {
			_ = o.terminate(ctx, serverID, state, final)
		}
	}()

	stages := []struct {
		stage models.SyncStage
		run   func(context.Context) Result[EntityCounts]
	}{
		{models.SyncStageUsers, sy.SyncUsers},
		{models.SyncStageLibraries, sy.SyncLibraries},
		{models.SyncStageItems, sy.SyncItems},
		{models.SyncStageActivities, sy.SyncActivities},
	}

	for i, st := range stages {
		if i > 0 {
			state = o.advance(ctx, serverID, state, st.stage)
		}

		r := st.run(ctx)
		snaps = append(snaps, r.Metrics)
		allErrs = append(allErrs, r.Errors...)
		outcome := StageOutcome{Stage: st.stage, Status: r.Status, Counts: r.Data}
		switch r.Status {
		case StatusError:
			stageErrs = append(stageErrs, r.Err)
			outcome.Error = r.Error
		case StatusPartial:
			partial = true
		}
		data.Stages = append(data.Stages, outcome)
	}

	var finalErr error
	if len(stageErrs) > 0 {
		finalErr = errors.Join(stageErrs...)
		final = Fail(finalErr)
	} else {
		final = Complete()
	}
	terminal = o.terminate(ctx, serverID, state, final) == nil
	if terminal && final.Kind == EventComplete {
		metrics.SyncLastSuccess.WithLabelValues(serverID).Set(float64(o.now().Unix()))
	}

	status := StatusSuccess
	if partial {
		status = StatusPartial
	}
	return NewResult(status, data, MergeSnapshots(start, o.now(), snaps...), finalErr, allErrs)
}

// RunStage runs one entity pipeline under the same state machine as a
// full sync. A server already syncing yields an error result wrapping
// ErrSyncInProgress.
func (o *Orchestrator) RunStage(ctx context.Context, serverID string, e Entity, run func(context.Context) Result[EntityCounts]) (res Result[EntityCounts]) {
	stage := StageFor(e)
	state, err := o.begin(ctx, serverID, stage)
	if err != nil {
		now := o.now()
		return NewResult(StatusError, EntityCounts{}, MetricsSnapshot{Start: now, End: now}, err, nil)
	}
	defer o.release(serverID)

	terminal := false
	final := Fail(errNoTerminalState)
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("%s sync panicked: %v", e, r)
			logging.Ctx(ctx).Error().Str("server_id", serverID).Interface("panic", r).Msg("Stage sync panicked")
			_ = o.terminate(ctx, serverID, state, Fail(perr))
			now := o.now()
			res = NewResult(StatusError, EntityCounts{}, MetricsSnapshot{Start: now, End: now}, perr, nil)
			return
		}
		if !terminal {
			_ = o.terminate(ctx, serverID, state, final)
		}
	}()

	res = run(ctx)
	if res.Status == StatusError {
		final = Fail(res.Err)
	} else {
		final = Complete()
	}
	terminal = o.terminate(ctx, serverID, state, final) == nil
	return res
}

// SyncEntity runs one entity pipeline of sy under the state machine.
func (o *Orchestrator) SyncEntity(ctx context.Context, sy *Syncer, e Entity) Result[EntityCounts] {
	var run func(context.Context) Result[EntityCounts]
	switch e {
	case EntityUsers:
		run = sy.SyncUsers
	case EntityLibraries:
		run = sy.SyncLibraries
	case EntityItems:
		run = sy.SyncItems
	case EntityActivities:
		run = sy.SyncActivities
	default:
		now := o.now()
		return NewResult(StatusError, EntityCounts{}, MetricsSnapshot{Start: now, End: now},
			fmt.Errorf("unknown entity %q", e), nil)
	}
	return o.RunStage(ctx, sy.serverID, e, run)
}

// begin loads the stored state and applies Begin, registering serverID as
// running. A stored syncing state with no running owner is stale: it is
// failed first, then the new sync begins.
func (o *Orchestrator) begin(ctx context.Context, serverID string, stage models.SyncStage) (SyncState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.running[serverID]; ok {
		return SyncState{}, ErrSyncInProgress
	}

	srv, err := o.store.GetServer(ctx, serverID)
	if err != nil {
		return SyncState{}, fmt.Errorf("failed to load server %s: %w", serverID, err)
	}
	current := StateOf(srv)
	if current.Status == models.SyncStatusSyncing {
		logging.Ctx(ctx).Warn().
			Str("server_id", serverID).
			Str("stage", string(current.Stage)).
			Msg("Recovering stale syncing state")
		if current, err = Transition(current, Fail(errors.New(StaleSyncReason))); err != nil {
			return SyncState{}, err
		}
	}
	next, err := Transition(current, Begin(stage))
	if err != nil {
		return SyncState{}, err
	}

	started := o.now().UTC()
	if err := o.store.UpdateServerSyncStatus(ctx, serverID, database.SyncStatusUpdate{
		Status:   next.Status,
		Progress: next.Stage,
		Started:  &started,
	}); err != nil {
		return SyncState{}, fmt.Errorf("failed to persist sync start: %w", err)
	}
	o.running[serverID] = struct{}{}

	logging.Ctx(ctx).Info().Str("server_id", serverID).Str("stage", string(stage)).Msg("Sync started")
	o.publish(ctx, serverID, next)
	return next, nil
}

// release ends the in-process ownership taken by begin.
func (o *Orchestrator) release(serverID string) {
	o.mu.Lock()
	delete(o.running, serverID)
	o.mu.Unlock()
}

// advance moves to the next stage. Failures are logged; the stage still
// runs.
func (o *Orchestrator) advance(ctx context.Context, serverID string, state SyncState, stage models.SyncStage) SyncState {
	next, err := Transition(state, Advance(stage))
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("server_id", serverID).Msg("Sync stage transition rejected")
		return state
	}
	if err := o.store.UpdateServerSyncStatus(ctx, serverID, database.SyncStatusUpdate{
		Status:   next.Status,
		Progress: next.Stage,
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("server_id", serverID).Msg("Failed to persist sync progress")
	}
	return next
}

// terminate applies a terminal event and persists it on a context that
// survives job cancellation, retrying a failed write with backoff. A nil
// return means the terminal state is stored.
func (o *Orchestrator) terminate(ctx context.Context, serverID string, state SyncState, e Event) error {
	log := logging.Ctx(ctx)
	next, err := Transition(state, e)
	if err != nil {
		log.Error().Err(err).Str("server_id", serverID).Msg("Terminal sync transition rejected")
		return err
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	update := database.SyncStatusUpdate{
		Status:   next.Status,
		Progress: next.Stage,
		Error:    next.Error,
	}
	if next.Status == models.SyncStatusCompleted {
		completed := o.now().UTC()
		update.Completed = &completed
	}
	write := func() error {
		err := o.store.UpdateServerSyncStatus(wctx, serverID, update)
		if errors.Is(err, database.ErrServerNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("server_id", serverID).Dur("retry_in", wait).Msg("Retrying terminal sync state write")
	}
	if err := backoff.RetryNotify(write, backoff.WithContext(o.terminalBackOff(), wctx), notify); err != nil {
		log.Error().Err(err).Str("server_id", serverID).Msg("Failed to persist terminal sync state")
		return fmt.Errorf("failed to persist terminal sync state: %w", err)
	}

	ev := log.Info()
	if next.Status == models.SyncStatusFailed {
		ev = log.Warn().Str("error", next.Error)
	}
	ev.Str("server_id", serverID).Str("status", string(next.Status)).Msg("Sync finished")
	o.publish(wctx, serverID, next)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, serverID string, s SyncState) {
	if o.publisher == nil {
		return
	}
	evt := &models.SyncStatusEvent{
		ServerID: serverID,
		Status:   s.Status,
		Stage:    s.Stage,
		Error:    s.Error,
		Time:     o.now().UTC(),
	}
	if err := o.publisher.Publish(ctx, events.TopicSyncStatus, evt); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("server_id", serverID).Msg("Failed to publish sync status")
	}
}

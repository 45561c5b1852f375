// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/models"
)

// DefaultPollInterval is used when PollerConfig.Interval is not set.
const DefaultPollInterval = 5 * time.Second

// SessionStore is the persistence the poller needs.
type SessionStore interface {
	UserExists(ctx context.Context, serverID, id string) (bool, error)
	InsertSession(ctx context.Context, s *models.Session) error
}

// ServerSource is one server the poller watches.
type ServerSource struct {
	ServerID string
	Client   MediaServerClient
}

// PollerState holds the tracked sessions of every server, keyed by
// server ID and then session key.
type PollerState struct {
	servers map[string]map[string]*models.TrackedSession
}

// NewPollerState returns an empty state.
func NewPollerState() *PollerState {
	return &PollerState{servers: make(map[string]map[string]*models.TrackedSession)}
}

func (s *PollerState) server(serverID string) map[string]*models.TrackedSession {
	tracked, ok := s.servers[serverID]
	if !ok {
		tracked = make(map[string]*models.TrackedSession)
		s.servers[serverID] = tracked
	}
	return tracked
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Servers   int
	Failed    int
	Started   int
	Updated   int
	Ended     int
	Persisted int
}

// SessionPollerConfig configures a SessionPoller.
type SessionPollerConfig struct {
	Sources   []ServerSource
	Store     SessionStore
	Publisher Publisher
	Interval  time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// SessionPoller turns periodic GET /Sessions snapshots into finished
// session records. Cycles never overlap: a tick that arrives while a cycle
// is still running is skipped.
type SessionPoller struct {
	sources   []ServerSource
	store     SessionStore
	publisher Publisher
	interval  time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	state *PollerState

	running atomic.Bool
	skipped atomic.Int64
	wg      sync.WaitGroup
}

// NewSessionPoller creates a poller with empty state.
func NewSessionPoller(cfg SessionPollerConfig) *SessionPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	sources := append([]ServerSource(nil), cfg.Sources...)
	return &SessionPoller{
		sources:   sources,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		interval:  cfg.Interval,
		now:       cfg.Now,
		state:     NewPollerState(),
	}
}

// String names the service in the supervisor tree.
func (p *SessionPoller) String() string { return "session-poller" }

// Serve polls on every tick until ctx is canceled. An in-flight cycle is
// waited for before returning.
func (p *SessionPoller) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", p.interval).Int("servers", len(p.sources)).Msg("Session poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.TryCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Session poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.TryCycle(ctx)
		}
	}
}

// TryCycle starts a cycle in the background unless one is running. It
// reports whether a cycle was started.
func (p *SessionPoller) TryCycle(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		metrics.SessionPollSkipped.Inc()
		logging.Debug().Msg("Session poll still running, skipping tick")
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		p.RunCycle(ctx)
	}()
	return true
}

// Skipped returns the number of ticks dropped by the overlap guard.
func (p *SessionPoller) Skipped() int64 { return p.skipped.Load() }

// Running reports whether a cycle is in progress.
func (p *SessionPoller) Running() bool { return p.running.Load() }

// RunCycle polls every server once, in order. A server whose session list
// cannot be fetched keeps its tracked sessions until the next cycle.
func (p *SessionPoller) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	var report CycleReport

	for _, src := range p.sources {
		if ctx.Err() != nil {
			break
		}
		report.Servers++

		sessions, err := src.Client.GetSessions(ctx)
		if err != nil {
			report.Failed++
			if !errors.Is(err, context.Canceled) {
				logging.Warn().Err(err).Str("server_id", src.ServerID).Msg("Failed to fetch sessions")
			}
			continue
		}

		started, updated, ended := p.observe(src.ServerID, sessions, p.now())
		report.Started += started
		report.Updated += updated
		report.Ended += len(ended)

		for _, t := range ended {
			if p.persist(ctx, t) {
				report.Persisted++
			}
		}
	}

	metrics.SessionPollCycles.Inc()
	metrics.SessionPollDuration.Observe(time.Since(start).Seconds())
	p.publish(ctx, events.TopicSessionsSnapshot, &models.SessionsSnapshotEvent{
		Time:     p.now().UTC(),
		Sessions: p.Snapshot(),
	})
	return report
}

// observe applies one session list to the server's tracked sessions, first
// starting new keys, then updating kept ones, then ending vanished ones.
// The ended sessions are returned with their final state.
func (p *SessionPoller) observe(serverID string, sessions []models.JellyfinSession, now time.Time) (started, updated int, ended []*models.TrackedSession) {
	current := make(map[string]*models.JellyfinSession, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if !isTrackable(s) {
			continue
		}
		current[sessionKeyOf(s)] = s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	tracked := p.state.server(serverID)

	fresh := make(map[string]struct{})
	for key, s := range current {
		if _, ok := tracked[key]; !ok {
			tracked[key] = newTrackedSession(serverID, key, s, now)
			fresh[key] = struct{}{}
			started++
			logging.Debug().Str("server_id", serverID).Str("session_key", key).Msg("Session started")
		}
	}
	for key, s := range current {
		if _, ok := fresh[key]; ok {
			continue
		}
		tracked[key] = updateTrackedSession(tracked[key], s, now)
		updated++
	}
	for key, t := range tracked {
		if _, ok := current[key]; !ok {
			ended = append(ended, t)
			delete(tracked, key)
		}
	}

	metrics.SessionsActive.WithLabelValues(serverID).Set(float64(len(tracked)))
	return started, updated, ended
}

// persist writes an ended session when it played long enough. It reports
// whether a row was stored.
func (p *SessionPoller) persist(ctx context.Context, t *models.TrackedSession) bool {
	session := endTrackedSession(t, p.now())
	if session == nil {
		logging.Debug().Str("server_id", t.ServerID).Str("session_key", t.Key).Msg("Session too short, not recorded")
		return false
	}

	if t.UserID != "" {
		exists, err := p.store.UserExists(ctx, t.ServerID, t.UserID)
		switch {
		case err != nil:
			logging.Warn().Err(err).Str("user_id", t.UserID).Msg("Failed to resolve session user")
		case exists:
			id := t.UserID
			session.UserID = &id
		}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	if err := p.store.InsertSession(writeCtx, session); err != nil {
		logging.Error().Err(err).Str("server_id", t.ServerID).Str("session_key", t.Key).Msg("Failed to record session")
		return false
	}

	metrics.RecordSessionPersisted(session.Completed)
	logging.Info().
		Str("server_id", session.ServerID).
		Str("item_id", session.ItemID).
		Dur("play_duration", session.PlayDuration).
		Float64("percent_complete", session.PercentComplete).
		Bool("completed", session.Completed).
		Msg("Session recorded")
	p.publish(ctx, events.TopicSessionsEnded, &models.SessionEndedEvent{Session: session, Persisted: true})
	return true
}

// Snapshot returns deep copies of all tracked sessions, per server, ordered
// by start time.
func (p *SessionPoller) Snapshot() map[string][]models.TrackedSession {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string][]models.TrackedSession, len(p.state.servers))
	for serverID, tracked := range p.state.servers {
		list := make([]models.TrackedSession, 0, len(tracked))
		for _, t := range tracked {
			list = append(list, *t.Clone())
		}
		sort.Slice(list, func(i, j int) bool {
			if !list[i].StartTime.Equal(list[j].StartTime) {
				return list[i].StartTime.Before(list[j].StartTime)
			}
			return list[i].Key < list[j].Key
		})
		out[serverID] = list
	}
	return out
}

// Tracked returns a copy of one tracked session.
func (p *SessionPoller) Tracked(serverID, key string) (*models.TrackedSession, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.state.servers[serverID][key]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (p *SessionPoller) publish(ctx context.Context, topic string, payload any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, topic, payload); err != nil {
		logging.Warn().Err(err).Str("topic", topic).Msg("Failed to publish session event")
	}
}

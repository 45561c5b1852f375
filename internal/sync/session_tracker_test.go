// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/mediasync/internal/models"
)

const testRuntimeTicks = int64(72_000_000_000) // 2h

func liveSession(userID, deviceID, itemID string, positionTicks int64, paused bool) models.JellyfinSession {
	runtime := testRuntimeTicks
	method := "DirectPlay"
	return models.JellyfinSession{
		ID:         "sess-" + userID + "-" + deviceID,
		UserID:     userID,
		UserName:   "User " + userID,
		DeviceID:   deviceID,
		DeviceName: "Device " + deviceID,
		Client:     "Jellyfin Web",
		NowPlayingItem: &models.JellyfinNowPlayingItem{
			ID:           itemID,
			Name:         "Item " + itemID,
			Type:         "Movie",
			RunTimeTicks: &runtime,
		},
		PlayState: &models.JellyfinPlayState{
			PositionTicks: &positionTicks,
			IsPaused:      &paused,
			PlayMethod:    &method,
		},
	}
}

func TestSessionKey(t *testing.T) {
	t.Parallel()

	checkStringEqual(t, "with series", SessionKey("u1", "d1", "s1", "i1"), "u1|d1|s1|i1")
	checkStringEqual(t, "without series", SessionKey("u1", "d1", "", "i1"), "u1|d1|i1")
	checkStringEqual(t, "pure", SessionKey("u1", "d1", "s1", "i1"), SessionKey("u1", "d1", "s1", "i1"))
}

func TestIsTrackable(t *testing.T) {
	t.Parallel()

	playing := liveSession("u1", "d1", "i1", 0, false)

	idle := playing
	idle.NowPlayingItem = nil

	trailer := liveSession("u1", "d1", "i1", 0, false)
	trailer.NowPlayingItem.Type = "Trailer"

	preroll := liveSession("u1", "d1", "i1", 0, false)
	preroll.NowPlayingItem.ProviderIDs = map[string]string{"prerolls.video": "42"}

	tests := []struct {
		name    string
		session models.JellyfinSession
		want    bool
	}{
		{"playing movie", playing, true},
		{"nothing playing", idle, false},
		{"trailer", trailer, false},
		{"preroll", preroll, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTrackable(&tt.session); got != tt.want {
				t.Errorf("isTrackable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateTrackedSession_Duration(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := base.Add(d); return &v }

	tests := []struct {
		name       string
		prevPaused bool
		nowPaused  bool
		activity   *time.Time
		pausedAt   *time.Time
		want       time.Duration
	}{
		{name: "playing to paused adds until pause", nowPaused: true, pausedAt: at(30 * time.Second), want: 130 * time.Second},
		{name: "playing to playing adds until last activity", activity: at(10 * time.Second), want: 110 * time.Second},
		{name: "paused to playing adds nothing", prevPaused: true, activity: at(10 * time.Second), want: 100 * time.Second},
		{name: "paused to paused adds nothing", prevPaused: true, nowPaused: true, pausedAt: at(5 * time.Second), want: 100 * time.Second},
		{name: "clock skew clamps to zero", activity: at(-20 * time.Second), want: 100 * time.Second},
		{name: "missing dates add nothing", want: 100 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prev := &models.TrackedSession{
				Key:            "u1|d1|i1",
				PlayDuration:   100 * time.Second,
				IsPaused:       tt.prevPaused,
				LastUpdateTime: base,
			}
			s := liveSession("u1", "d1", "i1", 0, tt.nowPaused)
			s.LastActivityDate = tt.activity
			s.LastPausedDate = tt.pausedAt

			now := base.Add(time.Minute)
			next := updateTrackedSession(prev, &s, now)
			checkDurationEqual(t, "PlayDuration", next.PlayDuration, tt.want)
			checkTrue(t, "LastUpdateTime", next.LastUpdateTime.Equal(now))
			checkDurationEqual(t, "prev untouched", prev.PlayDuration, 100*time.Second)
		})
	}
}

func TestUpdateTrackedSession_KeepsMissingValues(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	first := liveSession("u1", "d1", "i1", 1_000, false)
	first.RemoteEndPoint = "10.0.0.2"
	tracked := newTrackedSession(testServerID, "u1|d1|i1", &first, now)

	bare := models.JellyfinSession{UserID: "u1", DeviceID: "d1", NowPlayingItem: first.NowPlayingItem}
	next := updateTrackedSession(tracked, &bare, now.Add(time.Second))

	if next.PositionTicks != 1_000 {
		t.Errorf("PositionTicks = %d, want 1000", next.PositionTicks)
	}
	checkStringEqual(t, "RemoteEndPoint", next.RemoteEndPoint, "10.0.0.2")
	checkStringEqual(t, "PlayMethod", next.PlayMethod, "DirectPlay")
	if next.RuntimeTicks != testRuntimeTicks {
		t.Errorf("RuntimeTicks = %d", next.RuntimeTicks)
	}
}

func TestEndTrackedSession(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	tests := []struct {
		name          string
		played        time.Duration
		paused        bool
		sinceUpdate   time.Duration
		position      int64
		runtime       int64
		wantPersist   bool
		wantDuration  time.Duration
		wantPercent   float64
		wantCompleted bool
	}{
		{
			name: "finished movie", played: 100 * time.Minute, sinceUpdate: 5 * time.Second,
			position: testRuntimeTicks * 95 / 100, runtime: testRuntimeTicks,
			wantPersist: true, wantDuration: 100*time.Minute + 5*time.Second, wantPercent: 95, wantCompleted: true,
		},
		{
			name: "paused session adds no gap", played: 10 * time.Minute, paused: true, sinceUpdate: time.Hour,
			position: testRuntimeTicks / 4, runtime: testRuntimeTicks,
			wantPersist: true, wantDuration: 10 * time.Minute, wantPercent: 25,
		},
		{
			name: "exactly ninety percent is not completed", played: time.Hour,
			position: testRuntimeTicks * 90 / 100, runtime: testRuntimeTicks,
			wantPersist: true, wantDuration: time.Hour, wantPercent: 90,
		},
		{
			name: "unknown runtime", played: time.Minute,
			wantPersist: true, wantDuration: time.Minute,
		},
		{name: "one second is too short", sinceUpdate: time.Second},
		{name: "zero", paused: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tracked := &models.TrackedSession{
				Key:            "u1|d1|i1",
				ServerID:       testServerID,
				UserID:         "u1",
				ItemID:         "i1",
				StartTime:      start,
				LastUpdateTime: start.Add(2 * time.Hour),
				PlayDuration:   tt.played,
				IsPaused:       tt.paused,
				PositionTicks:  tt.position,
				RuntimeTicks:   tt.runtime,
			}
			got := endTrackedSession(tracked, tracked.LastUpdateTime.Add(tt.sinceUpdate))
			if !tt.wantPersist {
				if got != nil {
					t.Fatalf("expected no record, got duration %v", got.PlayDuration)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a record")
			}
			checkDurationEqual(t, "PlayDuration", got.PlayDuration, tt.wantDuration)
			if math.Abs(got.PercentComplete-tt.wantPercent) > 0.001 {
				t.Errorf("PercentComplete = %v, want %v", got.PercentComplete, tt.wantPercent)
			}
			if got.Completed != tt.wantCompleted {
				t.Errorf("Completed = %v, want %v", got.Completed, tt.wantCompleted)
			}
			checkStringEqual(t, "ExternalUserID", got.ExternalUserID, "u1")
			checkTrue(t, "UserID resolved by caller", got.UserID == nil)
		})
	}
}

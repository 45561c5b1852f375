// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"strings"
	"time"

	"github.com/tomtom215/mediasync/internal/models"
)

const (
	// minPersistDuration is the play time a session must exceed to be stored.
	minPersistDuration = time.Second

	// completedPercent is the progress above which playback counts as completed.
	completedPercent = 90.0

	prerollProvider = "prerolls.video"
)

// isTrackable filters out sessions that are not user playback: nothing
// playing, trailers, and preroll videos.
func isTrackable(s *models.JellyfinSession) bool {
	item := s.NowPlayingItem
	if item == nil {
		return false
	}
	if strings.EqualFold(item.Type, "Trailer") {
		return false
	}
	for provider := range item.ProviderIDs {
		if strings.EqualFold(provider, prerollProvider) {
			return false
		}
	}
	return true
}

// newTrackedSession starts tracking at now with zero play time.
func newTrackedSession(serverID, key string, s *models.JellyfinSession, now time.Time) *models.TrackedSession {
	item := s.NowPlayingItem
	t := &models.TrackedSession{
		Key:                key,
		ServerID:           serverID,
		SessionID:          s.ID,
		UserID:             s.UserID,
		UserName:           s.UserName,
		DeviceID:           s.DeviceID,
		DeviceName:         s.DeviceName,
		Client:             s.Client,
		ApplicationVersion: s.ApplicationVersion,
		RemoteEndPoint:     s.RemoteEndPoint,
		ItemID:             item.ID,
		ItemName:           item.Name,
		ItemType:           item.Type,
		SeriesID:           item.SeriesID,
		SeriesName:         item.SeriesName,
		SeasonID:           item.SeasonID,
		StartTime:          now,
		LastUpdateTime:     now,
		LastActivityDate:   cloneTimePtr(s.LastActivityDate),
		LastPausedDate:     cloneTimePtr(s.LastPausedDate),
		Transcoding:        s.TranscodingInfo.ToTranscoding(),
		RawData:            s.Raw,
	}
	if item.RunTimeTicks != nil {
		t.RuntimeTicks = *item.RunTimeTicks
	}
	applyPlayState(t, s.PlayState)
	return t
}

// playDurationDelta is the play time between the previous poll and this
// one, by previous and current pause state:
//
//	playing -> paused, LastPausedDate known:  LastPausedDate - LastUpdateTime
//	playing -> playing, LastActivityDate known: LastActivityDate - LastUpdateTime
//	anything else: 0
//
// Negative deltas from clock skew count as 0.
func playDurationDelta(prev *models.TrackedSession, s *models.JellyfinSession) time.Duration {
	if prev.IsPaused {
		return 0
	}
	nowPaused := prev.IsPaused
	if s.PlayState != nil && s.PlayState.IsPaused != nil {
		nowPaused = *s.PlayState.IsPaused
	}

	var delta time.Duration
	switch {
	case nowPaused && s.LastPausedDate != nil:
		delta = s.LastPausedDate.Sub(prev.LastUpdateTime)
	case !nowPaused && s.LastActivityDate != nil:
		delta = s.LastActivityDate.Sub(prev.LastUpdateTime)
	}
	if delta < 0 {
		return 0
	}
	return delta
}

// updateTrackedSession returns prev advanced by one observation. Values
// missing from s keep their previous value.
func updateTrackedSession(prev *models.TrackedSession, s *models.JellyfinSession, now time.Time) *models.TrackedSession {
	next := prev.Clone()
	next.PlayDuration += playDurationDelta(prev, s)
	next.LastUpdateTime = now

	if s.LastActivityDate != nil {
		next.LastActivityDate = cloneTimePtr(s.LastActivityDate)
	}
	if s.LastPausedDate != nil {
		next.LastPausedDate = cloneTimePtr(s.LastPausedDate)
	}
	if s.RemoteEndPoint != "" {
		next.RemoteEndPoint = s.RemoteEndPoint
	}
	if s.NowPlayingItem != nil && s.NowPlayingItem.RunTimeTicks != nil {
		next.RuntimeTicks = *s.NowPlayingItem.RunTimeTicks
	}
	if tc := s.TranscodingInfo.ToTranscoding(); tc != nil {
		next.Transcoding = tc
	}
	if len(s.Raw) > 0 {
		next.RawData = s.Raw
	}
	applyPlayState(next, s.PlayState)
	return next
}

// applyPlayState copies the present PlayState fields onto t.
func applyPlayState(t *models.TrackedSession, ps *models.JellyfinPlayState) {
	if ps == nil {
		return
	}
	if ps.PositionTicks != nil {
		t.PositionTicks = *ps.PositionTicks
	}
	if ps.IsPaused != nil {
		t.IsPaused = *ps.IsPaused
	}
	if ps.IsMuted != nil {
		t.IsMuted = *ps.IsMuted
	}
	if ps.VolumeLevel != nil {
		v := *ps.VolumeLevel
		t.VolumeLevel = &v
	}
	if ps.AudioStreamIndex != nil {
		v := *ps.AudioStreamIndex
		t.AudioStreamIndex = &v
	}
	if ps.SubtitleStreamIndex != nil {
		v := *ps.SubtitleStreamIndex
		t.SubtitleStreamIndex = &v
	}
	if ps.PlayMethod != nil {
		t.PlayMethod = *ps.PlayMethod
	}
}

// endTrackedSession closes a vanished session at now. It returns nil when
// the session is too short to keep. UserID is left for the caller to
// resolve.
func endTrackedSession(t *models.TrackedSession, now time.Time) *models.Session {
	final := t.PlayDuration
	if !t.IsPaused {
		if gap := now.Sub(t.LastUpdateTime); gap > 0 {
			final += gap
		}
	}
	if final <= minPersistDuration {
		return nil
	}

	var percent float64
	if t.RuntimeTicks > 0 {
		percent = float64(t.PositionTicks) / float64(t.RuntimeTicks) * 100
	}

	var transcoding *models.Transcoding
	if t.Transcoding != nil {
		tc := *t.Transcoding
		tc.TranscodeReasons = append([]string(nil), t.Transcoding.TranscodeReasons...)
		transcoding = &tc
	}

	return &models.Session{
		ServerID:           t.ServerID,
		SessionKey:         t.Key,
		ExternalUserID:     t.UserID,
		UserName:           t.UserName,
		ItemID:             t.ItemID,
		ItemName:           t.ItemName,
		ItemType:           t.ItemType,
		SeriesID:           t.SeriesID,
		SeriesName:         t.SeriesName,
		SeasonID:           t.SeasonID,
		DeviceID:           t.DeviceID,
		DeviceName:         t.DeviceName,
		Client:             t.Client,
		ApplicationVersion: t.ApplicationVersion,
		RemoteEndPoint:     t.RemoteEndPoint,
		StartTime:          t.StartTime,
		EndTime:            now,
		PlayDuration:       final,
		PositionTicks:      t.PositionTicks,
		RuntimeTicks:       t.RuntimeTicks,
		PercentComplete:    percent,
		Completed:          percent > completedPercent,
		PlayMethod:         t.PlayMethod,
		Transcoding:        transcoding,
		RawData:            t.RawData,
	}
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

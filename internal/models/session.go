// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Transcoding describes how a stream was delivered. Nil on a session means
// direct play.
type Transcoding struct {
	VideoCodec               string   `json:"video_codec,omitempty"`
	AudioCodec               string   `json:"audio_codec,omitempty"`
	Container                string   `json:"container,omitempty"`
	IsVideoDirect            bool     `json:"is_video_direct"`
	IsAudioDirect            bool     `json:"is_audio_direct"`
	Bitrate                  int      `json:"bitrate,omitempty"`
	Width                    int      `json:"width,omitempty"`
	Height                   int      `json:"height,omitempty"`
	AudioChannels            int      `json:"audio_channels,omitempty"`
	HardwareAccelerationType string   `json:"hardware_acceleration_type,omitempty"`
	TranscodeReasons         []string `json:"transcode_reasons,omitempty"`
}

// Session is a completed playback record. Rows are inserted once when the
// live session ends and never updated.
type Session struct {
	ID             string  `json:"id"`
	ServerID       string  `json:"server_id"`
	SessionKey     string  `json:"session_key"`
	UserID         *string `json:"user_id,omitempty"`
	ExternalUserID string  `json:"external_user_id"`
	UserName       string  `json:"user_name,omitempty"`

	ItemID     string `json:"item_id"`
	ItemName   string `json:"item_name,omitempty"`
	ItemType   string `json:"item_type,omitempty"`
	SeriesID   string `json:"series_id,omitempty"`
	SeriesName string `json:"series_name,omitempty"`
	SeasonID   string `json:"season_id,omitempty"`

	DeviceID           string `json:"device_id"`
	DeviceName         string `json:"device_name,omitempty"`
	Client             string `json:"client,omitempty"`
	ApplicationVersion string `json:"application_version,omitempty"`
	RemoteEndPoint     string `json:"remote_end_point,omitempty"`

	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	PlayDuration    time.Duration `json:"play_duration"`
	PositionTicks   int64         `json:"position_ticks"`
	RuntimeTicks    int64         `json:"runtime_ticks"`
	PercentComplete float64       `json:"percent_complete"`
	Completed       bool          `json:"completed"`

	PlayMethod  string          `json:"play_method,omitempty"`
	Transcoding *Transcoding    `json:"transcoding,omitempty"`
	RawData     json.RawMessage `json:"-"`
}

// TrackedSession is the in-memory state of a session that is currently
// playing. It lives only in the session poller.
type TrackedSession struct {
	Key      string `json:"key"`
	ServerID string `json:"server_id"`

	SessionID          string `json:"session_id"`
	UserID             string `json:"user_id"`
	UserName           string `json:"user_name,omitempty"`
	DeviceID           string `json:"device_id"`
	DeviceName         string `json:"device_name,omitempty"`
	Client             string `json:"client,omitempty"`
	ApplicationVersion string `json:"application_version,omitempty"`
	RemoteEndPoint     string `json:"remote_end_point,omitempty"`

	ItemID     string `json:"item_id"`
	ItemName   string `json:"item_name,omitempty"`
	ItemType   string `json:"item_type,omitempty"`
	SeriesID   string `json:"series_id,omitempty"`
	SeriesName string `json:"series_name,omitempty"`
	SeasonID   string `json:"season_id,omitempty"`

	StartTime        time.Time     `json:"start_time"`
	LastUpdateTime   time.Time     `json:"last_update_time"`
	LastActivityDate *time.Time    `json:"last_activity_date,omitempty"`
	LastPausedDate   *time.Time    `json:"last_paused_date,omitempty"`
	PlayDuration     time.Duration `json:"play_duration"`

	PositionTicks       int64        `json:"position_ticks"`
	RuntimeTicks        int64        `json:"runtime_ticks"`
	IsPaused            bool         `json:"is_paused"`
	IsMuted             bool         `json:"is_muted"`
	VolumeLevel         *int         `json:"volume_level,omitempty"`
	AudioStreamIndex    *int         `json:"audio_stream_index,omitempty"`
	SubtitleStreamIndex *int         `json:"subtitle_stream_index,omitempty"`
	PlayMethod          string       `json:"play_method,omitempty"`
	Transcoding         *Transcoding `json:"transcoding,omitempty"`

	RawData json.RawMessage `json:"-"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *TrackedSession) Clone() *TrackedSession {
	c := *t
	c.LastActivityDate = cloneTime(t.LastActivityDate)
	c.LastPausedDate = cloneTime(t.LastPausedDate)
	c.VolumeLevel = cloneInt(t.VolumeLevel)
	c.AudioStreamIndex = cloneInt(t.AudioStreamIndex)
	c.SubtitleStreamIndex = cloneInt(t.SubtitleStreamIndex)
	if t.Transcoding != nil {
		tc := *t.Transcoding
		tc.TranscodeReasons = append([]string(nil), t.Transcoding.TranscodeReasons...)
		c.Transcoding = &tc
	}
	c.RawData = append(json.RawMessage(nil), t.RawData...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ============================================================================
// Jellyfin REST API models
// ============================================================================
// Each record type keeps the exact bytes it was decoded from in Raw so the
// store can persist the original payload.

// JellyfinUser is an entry of GET /Users.
type JellyfinUser struct {
	ID               string              `json:"Id"`
	Name             string              `json:"Name"`
	ServerID         string              `json:"ServerId,omitempty"`
	PrimaryImageTag  string              `json:"PrimaryImageTag,omitempty"`
	LastLoginDate    *time.Time          `json:"LastLoginDate,omitempty"`
	LastActivityDate *time.Time          `json:"LastActivityDate,omitempty"`
	Policy           *JellyfinUserPolicy `json:"Policy,omitempty"`
	Raw              json.RawMessage     `json:"-"`
}

// JellyfinUserPolicy carries the account flags we mirror.
type JellyfinUserPolicy struct {
	IsAdministrator bool `json:"IsAdministrator"`
	IsDisabled      bool `json:"IsDisabled"`
}

// UnmarshalJSON keeps the raw record.
func (u *JellyfinUser) UnmarshalJSON(data []byte) error {
	type alias JellyfinUser
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*u = JellyfinUser(a)
	u.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JellyfinLibrary is an entry of GET /Library/MediaFolders.
type JellyfinLibrary struct {
	ID             string            `json:"Id"`
	Name           string            `json:"Name"`
	CollectionType string            `json:"CollectionType,omitempty"`
	Type           string            `json:"Type,omitempty"`
	ImageTags      map[string]string `json:"ImageTags,omitempty"`
	Raw            json.RawMessage   `json:"-"`
}

// UnmarshalJSON keeps the raw record.
func (l *JellyfinLibrary) UnmarshalJSON(data []byte) error {
	type alias JellyfinLibrary
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*l = JellyfinLibrary(a)
	l.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JellyfinItem is a library item from GET /Items or GET /Items/{id}.
type JellyfinItem struct {
	ID                string                       `json:"Id"`
	Name              string                       `json:"Name"`
	OriginalTitle     string                       `json:"OriginalTitle,omitempty"`
	SortName          string                       `json:"SortName,omitempty"`
	Overview          string                       `json:"Overview,omitempty"`
	Etag              string                       `json:"Etag,omitempty"`
	ServerID          string                       `json:"ServerId,omitempty"`
	Type              string                       `json:"Type"`
	MediaType         string                       `json:"MediaType,omitempty"`
	PremiereDate      *time.Time                   `json:"PremiereDate,omitempty"`
	DateCreated       *time.Time                   `json:"DateCreated,omitempty"`
	EndDate           *time.Time                   `json:"EndDate,omitempty"`
	ProductionYear    *int                         `json:"ProductionYear,omitempty"`
	CommunityRating   *float64                     `json:"CommunityRating,omitempty"`
	CriticRating      *float64                     `json:"CriticRating,omitempty"`
	OfficialRating    string                       `json:"OfficialRating,omitempty"`
	RunTimeTicks      *int64                       `json:"RunTimeTicks,omitempty"`
	IsFolder          bool                         `json:"IsFolder"`
	ParentID          string                       `json:"ParentId,omitempty"`
	SeriesID          string                       `json:"SeriesId,omitempty"`
	SeriesName        string                       `json:"SeriesName,omitempty"`
	SeasonID          string                       `json:"SeasonId,omitempty"`
	SeasonName        string                       `json:"SeasonName,omitempty"`
	IndexNumber       *int                         `json:"IndexNumber,omitempty"`
	ParentIndexNumber *int                         `json:"ParentIndexNumber,omitempty"`
	Genres            []string                     `json:"Genres,omitempty"`
	Tags              []string                     `json:"Tags,omitempty"`
	ProviderIDs       map[string]string            `json:"ProviderIds,omitempty"`
	ImageTags         map[string]string            `json:"ImageTags,omitempty"`
	BackdropImageTags []string                     `json:"BackdropImageTags,omitempty"`
	ImageBlurHashes   map[string]map[string]string `json:"ImageBlurHashes,omitempty"`
	Raw               json.RawMessage              `json:"-"`
}

// UnmarshalJSON keeps the raw record.
func (i *JellyfinItem) UnmarshalJSON(data []byte) error {
	type alias JellyfinItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = JellyfinItem(a)
	i.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JellyfinItemsPage is the paged envelope of GET /Items.
type JellyfinItemsPage struct {
	Items            []JellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
	StartIndex       int            `json:"StartIndex"`
}

// JellyfinActivity is an entry of GET /System/ActivityLog/Entries.
type JellyfinActivity struct {
	ID            int64           `json:"Id"`
	Name          string          `json:"Name"`
	Overview      string          `json:"Overview,omitempty"`
	ShortOverview string          `json:"ShortOverview,omitempty"`
	Type          string          `json:"Type"`
	ItemID        string          `json:"ItemId,omitempty"`
	Date          time.Time       `json:"Date"`
	UserID        string          `json:"UserId,omitempty"`
	Severity      string          `json:"Severity"`
	Raw           json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw record.
func (a *JellyfinActivity) UnmarshalJSON(data []byte) error {
	type alias JellyfinActivity
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = JellyfinActivity(v)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JellyfinActivityPage is the paged envelope of the activity log.
type JellyfinActivityPage struct {
	Items            []JellyfinActivity `json:"Items"`
	TotalRecordCount int                `json:"TotalRecordCount"`
	StartIndex       int                `json:"StartIndex"`
}

// JellyfinSession is an entry of GET /Sessions.
type JellyfinSession struct {
	ID                 string                   `json:"Id"`
	Client             string                   `json:"Client"`
	DeviceID           string                   `json:"DeviceId"`
	DeviceName         string                   `json:"DeviceName"`
	ApplicationVersion string                   `json:"ApplicationVersion"`
	UserID             string                   `json:"UserId"`
	UserName           string                   `json:"UserName"`
	RemoteEndPoint     string                   `json:"RemoteEndPoint"`
	LastActivityDate   *time.Time               `json:"LastActivityDate,omitempty"`
	LastPausedDate     *time.Time               `json:"LastPausedDate,omitempty"`
	NowPlayingItem     *JellyfinNowPlayingItem  `json:"NowPlayingItem,omitempty"`
	PlayState          *JellyfinPlayState       `json:"PlayState,omitempty"`
	TranscodingInfo    *JellyfinTranscodingInfo `json:"TranscodingInfo,omitempty"`
	Raw                json.RawMessage          `json:"-"`
}

// UnmarshalJSON keeps the raw record.
func (s *JellyfinSession) UnmarshalJSON(data []byte) error {
	type alias JellyfinSession
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = JellyfinSession(a)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JellyfinNowPlayingItem is the content of a playing session.
type JellyfinNowPlayingItem struct {
	ID           string            `json:"Id"`
	Name         string            `json:"Name"`
	Type         string            `json:"Type"`
	MediaType    string            `json:"MediaType,omitempty"`
	SeriesID     string            `json:"SeriesId,omitempty"`
	SeriesName   string            `json:"SeriesName,omitempty"`
	SeasonID     string            `json:"SeasonId,omitempty"`
	RunTimeTicks *int64            `json:"RunTimeTicks,omitempty"`
	ProviderIDs  map[string]string `json:"ProviderIds,omitempty"`
}

// JellyfinPlayState is the playback state of a session. Fields are pointers
// so a missing value does not clear the tracked one.
type JellyfinPlayState struct {
	PositionTicks       *int64  `json:"PositionTicks,omitempty"`
	IsPaused            *bool   `json:"IsPaused,omitempty"`
	IsMuted             *bool   `json:"IsMuted,omitempty"`
	VolumeLevel         *int    `json:"VolumeLevel,omitempty"`
	AudioStreamIndex    *int    `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int    `json:"SubtitleStreamIndex,omitempty"`
	PlayMethod          *string `json:"PlayMethod,omitempty"`
}

// JellyfinTranscodingInfo describes an active transcode.
type JellyfinTranscodingInfo struct {
	AudioCodec               string   `json:"AudioCodec,omitempty"`
	VideoCodec               string   `json:"VideoCodec,omitempty"`
	Container                string   `json:"Container,omitempty"`
	IsVideoDirect            bool     `json:"IsVideoDirect"`
	IsAudioDirect            bool     `json:"IsAudioDirect"`
	Bitrate                  int      `json:"Bitrate,omitempty"`
	Width                    int      `json:"Width,omitempty"`
	Height                   int      `json:"Height,omitempty"`
	AudioChannels            int      `json:"AudioChannels,omitempty"`
	HardwareAccelerationType string   `json:"HardwareAccelerationType,omitempty"`
	TranscodeReasons         []string `json:"TranscodeReasons,omitempty"`
}

// ToTranscoding converts the wire form, returning nil for nil input.
func (t *JellyfinTranscodingInfo) ToTranscoding() *Transcoding {
	if t == nil {
		return nil
	}
	return &Transcoding{
		VideoCodec:               t.VideoCodec,
		AudioCodec:               t.AudioCodec,
		Container:                t.Container,
		IsVideoDirect:            t.IsVideoDirect,
		IsAudioDirect:            t.IsAudioDirect,
		Bitrate:                  t.Bitrate,
		Width:                    t.Width,
		Height:                   t.Height,
		AudioChannels:            t.AudioChannels,
		HardwareAccelerationType: t.HardwareAccelerationType,
		TranscodeReasons:         append([]string(nil), t.TranscodeReasons...),
	}
}

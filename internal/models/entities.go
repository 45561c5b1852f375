// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Library is a top-level media folder on a server.
type Library struct {
	ID              string          `json:"id"`
	ServerID        string          `json:"server_id"`
	Name            string          `json:"name"`
	CollectionType  string          `json:"collection_type,omitempty"`
	Type            string          `json:"type,omitempty"`
	PrimaryImageTag string          `json:"primary_image_tag,omitempty"`
	RawData         json.RawMessage `json:"-"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// User mirrors a media server account.
type User struct {
	ID               string          `json:"id"`
	ServerID         string          `json:"server_id"`
	Name             string          `json:"name"`
	IsAdministrator  bool            `json:"is_administrator"`
	IsDisabled       bool            `json:"is_disabled"`
	LastLoginDate    *time.Time      `json:"last_login_date,omitempty"`
	LastActivityDate *time.Time      `json:"last_activity_date,omitempty"`
	PrimaryImageTag  string          `json:"primary_image_tag,omitempty"`
	RawData          json.RawMessage `json:"-"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Item is a library item: movie, series, season, episode, track and so on.
//
// RawData holds the API record as first inserted. Updates only touch the
// tracked columns and UpdatedAt.
type Item struct {
	ID        string `json:"id"`
	ServerID  string `json:"server_id"`
	LibraryID string `json:"library_id"`
	Etag      string `json:"etag,omitempty"`

	Name           string     `json:"name"`
	OriginalTitle  string     `json:"original_title,omitempty"`
	SortName       string     `json:"sort_name,omitempty"`
	Overview       string     `json:"overview,omitempty"`
	Type           string     `json:"type"`
	MediaType      string     `json:"media_type,omitempty"`
	PremiereDate   *time.Time `json:"premiere_date,omitempty"`
	DateCreated    *time.Time `json:"date_created,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	ProductionYear *int       `json:"production_year,omitempty"`

	CommunityRating *float64 `json:"community_rating,omitempty"`
	CriticRating    *float64 `json:"critic_rating,omitempty"`
	OfficialRating  string   `json:"official_rating,omitempty"`
	RunTimeTicks    *int64   `json:"run_time_ticks,omitempty"`

	IsFolder          bool   `json:"is_folder"`
	ParentID          string `json:"parent_id,omitempty"`
	SeriesID          string `json:"series_id,omitempty"`
	SeriesName        string `json:"series_name,omitempty"`
	SeasonID          string `json:"season_id,omitempty"`
	SeasonName        string `json:"season_name,omitempty"`
	IndexNumber       *int   `json:"index_number,omitempty"`
	ParentIndexNumber *int   `json:"parent_index_number,omitempty"`

	Genres      []string          `json:"genres,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	ProviderIDs map[string]string `json:"provider_ids,omitempty"`

	PrimaryImageTag   string                       `json:"primary_image_tag,omitempty"`
	ThumbImageTag     string                       `json:"thumb_image_tag,omitempty"`
	LogoImageTag      string                       `json:"logo_image_tag,omitempty"`
	BackdropImageTags []string                     `json:"backdrop_image_tags,omitempty"`
	ImageBlurHashes   map[string]map[string]string `json:"image_blur_hashes,omitempty"`

	Processed bool            `json:"processed"`
	RawData   json.RawMessage `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Activity is one entry of the server activity log.
type Activity struct {
	ID            string          `json:"id"`
	ServerID      string          `json:"server_id"`
	Name          string          `json:"name"`
	ShortOverview string          `json:"short_overview,omitempty"`
	Type          string          `json:"type"`
	Date          time.Time       `json:"date"`
	UserID        *string         `json:"user_id,omitempty"`
	ItemID        *string         `json:"item_id,omitempty"`
	Severity      string          `json:"severity"`
	RawData       json.RawMessage `json:"-"`
}

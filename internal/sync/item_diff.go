// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package sync

import (
	"reflect"
	"time"

	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/models"
)

// FieldKind is the comparison class of a tracked field.
type FieldKind int

// Field kinds.
const (
	KindString FieldKind = iota
	KindTime
	KindInt
	KindFloat
	KindBool
	KindStringSlice
	KindJSON
)

// TrackedField is one column participating in change detection.
type TrackedField struct {
	Column database.ItemColumn
	Kind   FieldKind
	equal  func(a, b *models.Item) bool
}

// Equal reports whether the field holds the same value on a and b.
func (f TrackedField) Equal(a, b *models.Item) bool {
	return f.equal(a, b)
}

func stringField(col database.ItemColumn, get func(*models.Item) string) TrackedField {
	return TrackedField{Column: col, Kind: KindString, equal: func(a, b *models.Item) bool {
		return get(a) == get(b)
	}}
}

func timeField(col database.ItemColumn, get func(*models.Item) *time.Time) TrackedField {
	return TrackedField{Column: col, Kind: KindTime, equal: func(a, b *models.Item) bool {
		return timesEqual(get(a), get(b))
	}}
}

func intField(col database.ItemColumn, get func(*models.Item) *int) TrackedField {
	return TrackedField{Column: col, Kind: KindInt, equal: func(a, b *models.Item) bool {
		return ptrEqual(get(a), get(b))
	}}
}

func int64Field(col database.ItemColumn, get func(*models.Item) *int64) TrackedField {
	return TrackedField{Column: col, Kind: KindInt, equal: func(a, b *models.Item) bool {
		return ptrEqual(get(a), get(b))
	}}
}

func floatField(col database.ItemColumn, get func(*models.Item) *float64) TrackedField {
	return TrackedField{Column: col, Kind: KindFloat, equal: func(a, b *models.Item) bool {
		return ptrEqual(get(a), get(b))
	}}
}

func boolField(col database.ItemColumn, get func(*models.Item) bool) TrackedField {
	return TrackedField{Column: col, Kind: KindBool, equal: func(a, b *models.Item) bool {
		return get(a) == get(b)
	}}
}

func stringSliceField(col database.ItemColumn, get func(*models.Item) []string) TrackedField {
	return TrackedField{Column: col, Kind: KindStringSlice, equal: func(a, b *models.Item) bool {
		x, y := get(a), get(b)
		if len(x) == 0 && len(y) == 0 {
			return true
		}
		return reflect.DeepEqual(x, y)
	}}
}

// jsonField compares nested values with nil and empty treated alike.
func jsonField[T any](col database.ItemColumn, get func(*models.Item) T, empty func(T) bool) TrackedField {
	return TrackedField{Column: col, Kind: KindJSON, equal: func(a, b *models.Item) bool {
		x, y := get(a), get(b)
		if empty(x) && empty(y) {
			return true
		}
		return reflect.DeepEqual(x, y)
	}}
}

// itemTrackedFields are the metadata columns compared on every changed item.
var itemTrackedFields = []TrackedField{
	stringField(database.ItemColName, func(i *models.Item) string { return i.Name }),
	stringField(database.ItemColOriginalTitle, func(i *models.Item) string { return i.OriginalTitle }),
	stringField(database.ItemColSortName, func(i *models.Item) string { return i.SortName }),
	stringField(database.ItemColOverview, func(i *models.Item) string { return i.Overview }),
	stringField(database.ItemColType, func(i *models.Item) string { return i.Type }),
	stringField(database.ItemColMediaType, func(i *models.Item) string { return i.MediaType }),
	timeField(database.ItemColPremiereDate, func(i *models.Item) *time.Time { return i.PremiereDate }),
	timeField(database.ItemColDateCreated, func(i *models.Item) *time.Time { return i.DateCreated }),
	timeField(database.ItemColEndDate, func(i *models.Item) *time.Time { return i.EndDate }),
	intField(database.ItemColProductionYear, func(i *models.Item) *int { return i.ProductionYear }),
	floatField(database.ItemColCommunityRating, func(i *models.Item) *float64 { return i.CommunityRating }),
	floatField(database.ItemColCriticRating, func(i *models.Item) *float64 { return i.CriticRating }),
	stringField(database.ItemColOfficialRating, func(i *models.Item) string { return i.OfficialRating }),
	int64Field(database.ItemColRunTimeTicks, func(i *models.Item) *int64 { return i.RunTimeTicks }),
	boolField(database.ItemColIsFolder, func(i *models.Item) bool { return i.IsFolder }),
	stringField(database.ItemColParentID, func(i *models.Item) string { return i.ParentID }),
	stringField(database.ItemColSeriesID, func(i *models.Item) string { return i.SeriesID }),
	stringField(database.ItemColSeriesName, func(i *models.Item) string { return i.SeriesName }),
	stringField(database.ItemColSeasonID, func(i *models.Item) string { return i.SeasonID }),
	stringField(database.ItemColSeasonName, func(i *models.Item) string { return i.SeasonName }),
	intField(database.ItemColIndexNumber, func(i *models.Item) *int { return i.IndexNumber }),
	intField(database.ItemColParentIndexNumber, func(i *models.Item) *int { return i.ParentIndexNumber }),
	stringSliceField(database.ItemColGenres, func(i *models.Item) []string { return i.Genres }),
	stringSliceField(database.ItemColTags, func(i *models.Item) []string { return i.Tags }),
	jsonField(database.ItemColProviderIDs,
		func(i *models.Item) map[string]string { return i.ProviderIDs },
		func(m map[string]string) bool { return len(m) == 0 }),
}

// itemImageFields are compared separately so image churn is visible in logs.
var itemImageFields = []TrackedField{
	stringField(database.ItemColPrimaryImageTag, func(i *models.Item) string { return i.PrimaryImageTag }),
	stringField(database.ItemColThumbImageTag, func(i *models.Item) string { return i.ThumbImageTag }),
	stringField(database.ItemColLogoImageTag, func(i *models.Item) string { return i.LogoImageTag }),
	stringSliceField(database.ItemColBackdropImageTags, func(i *models.Item) []string { return i.BackdropImageTags }),
	jsonField(database.ItemColImageBlurHashes,
		func(i *models.Item) map[string]map[string]string { return i.ImageBlurHashes },
		func(m map[string]map[string]string) bool { return len(m) == 0 }),
}

// ItemDiff lists the columns that differ between a stored and an incoming
// item.
type ItemDiff struct {
	Fields []database.ItemColumn
	Images []database.ItemColumn
}

// Changed reports whether any column differs.
func (d ItemDiff) Changed() bool {
	return len(d.Fields) > 0 || len(d.Images) > 0
}

// Columns returns every differing column.
func (d ItemDiff) Columns() []database.ItemColumn {
	out := make([]database.ItemColumn, 0, len(d.Fields)+len(d.Images))
	out = append(out, d.Fields...)
	return append(out, d.Images...)
}

// DiffItem compares the tracked and image fields of stored and incoming.
func DiffItem(stored, incoming *models.Item) ItemDiff {
	var d ItemDiff
	for _, f := range itemTrackedFields {
		if !f.equal(stored, incoming) {
			d.Fields = append(d.Fields, f.Column)
		}
	}
	for _, f := range itemImageFields {
		if !f.equal(stored, incoming) {
			d.Images = append(d.Images, f.Column)
		}
	}
	return d
}

// timesEqual compares at the store's microsecond precision; Jellyfin sends
// 100ns ticks.
func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

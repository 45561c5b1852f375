// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/mediasync/internal/models"
)

const itemColumns = `server_id, id, library_id, etag, name, original_title, sort_name, overview,
	type, media_type, premiere_date, date_created, end_date, production_year,
	community_rating, critic_rating, official_rating, run_time_ticks,
	is_folder, parent_id, series_id, series_name, season_id, season_name,
	index_number, parent_index_number, genres, tags, provider_ids,
	primary_image_tag, thumb_image_tag, logo_image_tag, backdrop_image_tags,
	image_blur_hashes, processed, created_at, updated_at`

// ItemColumn names a tracked items column that UpdateItemFields may write.
type ItemColumn string

// Tracked item columns.
const (
	ItemColName              ItemColumn = "name"
	ItemColOriginalTitle     ItemColumn = "original_title"
	ItemColEtag              ItemColumn = "etag"
	ItemColSortName          ItemColumn = "sort_name"
	ItemColOverview          ItemColumn = "overview"
	ItemColType              ItemColumn = "type"
	ItemColMediaType         ItemColumn = "media_type"
	ItemColPremiereDate      ItemColumn = "premiere_date"
	ItemColDateCreated       ItemColumn = "date_created"
	ItemColEndDate           ItemColumn = "end_date"
	ItemColProductionYear    ItemColumn = "production_year"
	ItemColCommunityRating   ItemColumn = "community_rating"
	ItemColCriticRating      ItemColumn = "critic_rating"
	ItemColOfficialRating    ItemColumn = "official_rating"
	ItemColRunTimeTicks      ItemColumn = "run_time_ticks"
	ItemColIsFolder          ItemColumn = "is_folder"
	ItemColParentID          ItemColumn = "parent_id"
	ItemColSeriesID          ItemColumn = "series_id"
	ItemColSeriesName        ItemColumn = "series_name"
	ItemColSeasonID          ItemColumn = "season_id"
	ItemColSeasonName        ItemColumn = "season_name"
	ItemColIndexNumber       ItemColumn = "index_number"
	ItemColParentIndexNumber ItemColumn = "parent_index_number"
	ItemColGenres            ItemColumn = "genres"
	ItemColTags              ItemColumn = "tags"
	ItemColProviderIDs       ItemColumn = "provider_ids"
	ItemColPrimaryImageTag   ItemColumn = "primary_image_tag"
	ItemColThumbImageTag     ItemColumn = "thumb_image_tag"
	ItemColLogoImageTag      ItemColumn = "logo_image_tag"
	ItemColBackdropImageTags ItemColumn = "backdrop_image_tags"
	ItemColImageBlurHashes   ItemColumn = "image_blur_hashes"
)

var trackedItemColumns = map[ItemColumn]struct{}{
	ItemColName: {}, ItemColOriginalTitle: {}, ItemColEtag: {}, ItemColSortName: {},
	ItemColOverview: {}, ItemColType: {}, ItemColMediaType: {}, ItemColPremiereDate: {},
	ItemColDateCreated: {}, ItemColEndDate: {}, ItemColProductionYear: {},
	ItemColCommunityRating: {}, ItemColCriticRating: {}, ItemColOfficialRating: {},
	ItemColRunTimeTicks: {}, ItemColIsFolder: {}, ItemColParentID: {}, ItemColSeriesID: {},
	ItemColSeriesName: {}, ItemColSeasonID: {}, ItemColSeasonName: {}, ItemColIndexNumber: {},
	ItemColParentIndexNumber: {}, ItemColGenres: {}, ItemColTags: {}, ItemColProviderIDs: {},
	ItemColPrimaryImageTag: {}, ItemColThumbImageTag: {}, ItemColLogoImageTag: {},
	ItemColBackdropImageTags: {}, ItemColImageBlurHashes: {},
}

// ErrUnknownItemColumn is returned when an update names a column outside
// the tracked set.
var ErrUnknownItemColumn = errors.New("unknown item column")

// ItemValue returns the bindable argument for column c of item.
func ItemValue(item *models.Item, c ItemColumn) (any, error) {
	switch c {
	case ItemColName:
		return emptyToNull(item.Name), nil
	case ItemColOriginalTitle:
		return emptyToNull(item.OriginalTitle), nil
	case ItemColEtag:
		return emptyToNull(item.Etag), nil
	case ItemColSortName:
		return emptyToNull(item.SortName), nil
	case ItemColOverview:
		return emptyToNull(item.Overview), nil
	case ItemColType:
		return emptyToNull(item.Type), nil
	case ItemColMediaType:
		return emptyToNull(item.MediaType), nil
	case ItemColPremiereDate:
		return nullableTime(item.PremiereDate), nil
	case ItemColDateCreated:
		return nullableTime(item.DateCreated), nil
	case ItemColEndDate:
		return nullableTime(item.EndDate), nil
	case ItemColProductionYear:
		return nullableInt(item.ProductionYear), nil
	case ItemColCommunityRating:
		return nullableFloat(item.CommunityRating), nil
	case ItemColCriticRating:
		return nullableFloat(item.CriticRating), nil
	case ItemColOfficialRating:
		return emptyToNull(item.OfficialRating), nil
	case ItemColRunTimeTicks:
		return nullableInt64(item.RunTimeTicks), nil
	case ItemColIsFolder:
		return item.IsFolder, nil
	case ItemColParentID:
		return emptyToNull(item.ParentID), nil
	case ItemColSeriesID:
		return emptyToNull(item.SeriesID), nil
	case ItemColSeriesName:
		return emptyToNull(item.SeriesName), nil
	case ItemColSeasonID:
		return emptyToNull(item.SeasonID), nil
	case ItemColSeasonName:
		return emptyToNull(item.SeasonName), nil
	case ItemColIndexNumber:
		return nullableInt(item.IndexNumber), nil
	case ItemColParentIndexNumber:
		return nullableInt(item.ParentIndexNumber), nil
	case ItemColGenres:
		return jsonText(item.Genres)
	case ItemColTags:
		return jsonText(item.Tags)
	case ItemColProviderIDs:
		return jsonText(item.ProviderIDs)
	case ItemColPrimaryImageTag:
		return emptyToNull(item.PrimaryImageTag), nil
	case ItemColThumbImageTag:
		return emptyToNull(item.ThumbImageTag), nil
	case ItemColLogoImageTag:
		return emptyToNull(item.LogoImageTag), nil
	case ItemColBackdropImageTags:
		return jsonText(item.BackdropImageTags)
	case ItemColImageBlurHashes:
		return jsonText(item.ImageBlurHashes)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownItemColumn, c)
}

// GetItem returns a stored item or ErrNotFound. RawData is not loaded.
func (db *DB) GetItem(ctx context.Context, serverID, id string) (*models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE server_id = ? AND id = ?`, serverID, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// InsertItem stores a new item including its raw payload.
func (db *DB) InsertItem(ctx context.Context, item *models.Item) error {
	genres, err := jsonText(item.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}
	tags, err := jsonText(item.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	providers, err := jsonText(item.ProviderIDs)
	if err != nil {
		return fmt.Errorf("failed to encode provider ids: %w", err)
	}
	backdrops, err := jsonText(item.BackdropImageTags)
	if err != nil {
		return fmt.Errorf("failed to encode backdrop tags: %w", err)
	}
	blurHashes, err := jsonText(item.ImageBlurHashes)
	if err != nil {
		return fmt.Errorf("failed to encode blur hashes: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.execWithConflictRetry(ctx, `
		INSERT INTO items (`+itemColumns+`, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ServerID, item.ID, item.LibraryID, emptyToNull(item.Etag),
		emptyToNull(item.Name), emptyToNull(item.OriginalTitle), emptyToNull(item.SortName),
		emptyToNull(item.Overview), emptyToNull(item.Type), emptyToNull(item.MediaType),
		nullableTime(item.PremiereDate), nullableTime(item.DateCreated), nullableTime(item.EndDate),
		nullableInt(item.ProductionYear), nullableFloat(item.CommunityRating),
		nullableFloat(item.CriticRating), emptyToNull(item.OfficialRating),
		nullableInt64(item.RunTimeTicks), item.IsFolder, emptyToNull(item.ParentID),
		emptyToNull(item.SeriesID), emptyToNull(item.SeriesName), emptyToNull(item.SeasonID),
		emptyToNull(item.SeasonName), nullableInt(item.IndexNumber),
		nullableInt(item.ParentIndexNumber), genres, tags, providers,
		emptyToNull(item.PrimaryImageTag), emptyToNull(item.ThumbImageTag),
		emptyToNull(item.LogoImageTag), backdrops, blurHashes, item.Processed,
		now, now, emptyToNull(string(item.RawData)))
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	return nil
}

// UpdateItemFields writes the given tracked columns from item plus
// updated_at. raw_data and library_id are never rewritten. Columns are
// applied in sorted order.
func (db *DB) UpdateItemFields(ctx context.Context, item *models.Item, columns []ItemColumn) error {
	if len(columns) == 0 {
		return nil
	}

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+3)
	for _, c := range sortedColumns(columns) {
		if _, ok := trackedItemColumns[c]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownItemColumn, c)
		}
		v, err := ItemValue(item, c)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", c, err)
		}
		sets = append(sets, string(c)+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), item.ServerID, item.ID)

	res, err := db.execWithConflictRetry(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE server_id = ? AND id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItemRawData returns the raw payload stored for an item.
func (db *DB) GetItemRawData(ctx context.Context, serverID, id string) ([]byte, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var raw sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT raw_data FROM items WHERE server_id = ? AND id = ?`, serverID, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item raw data: %w", err)
	}
	return []byte(raw.String), nil
}

// CountItems returns the number of items stored for a server.
func (db *DB) CountItems(ctx context.Context, serverID string) (int, error) {
	return db.count(ctx, "items", serverID)
}

func sortedColumns(cols []ItemColumn) []ItemColumn {
	out := slices.Clone(cols)
	slices.Sort(out)
	return slices.Compact(out)
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it                                                models.Item
		etag, name, origTitle, sortName, overview, typ    sql.NullString
		mediaType, officialRating, parentID, seriesID     sql.NullString
		seriesName, seasonID, seasonName                  sql.NullString
		genres, tags, providers, backdrops, blurHashes    sql.NullString
		primaryTag, thumbTag, logoTag                     sql.NullString
		premiere, dateCreated, endDate                    sql.NullTime
		productionYear, runTime, indexNum, parentIndexNum sql.NullInt64
		communityRating, criticRating                     sql.NullFloat64
	)
	if err := row.Scan(&it.ServerID, &it.ID, &it.LibraryID, &etag, &name, &origTitle,
		&sortName, &overview, &typ, &mediaType, &premiere, &dateCreated, &endDate,
		&productionYear, &communityRating, &criticRating, &officialRating, &runTime,
		&it.IsFolder, &parentID, &seriesID, &seriesName, &seasonID, &seasonName,
		&indexNum, &parentIndexNum, &genres, &tags, &providers,
		&primaryTag, &thumbTag, &logoTag, &backdrops, &blurHashes,
		&it.Processed, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}

	it.Etag = etag.String
	it.Name = name.String
	it.OriginalTitle = origTitle.String
	it.SortName = sortName.String
	it.Overview = overview.String
	it.Type = typ.String
	it.MediaType = mediaType.String
	it.PremiereDate = timePtr(premiere)
	it.DateCreated = timePtr(dateCreated)
	it.EndDate = timePtr(endDate)
	it.ProductionYear = intPtr(productionYear)
	it.CommunityRating = floatPtr(communityRating)
	it.CriticRating = floatPtr(criticRating)
	it.OfficialRating = officialRating.String
	it.RunTimeTicks = int64Ptr(runTime)
	it.ParentID = parentID.String
	it.SeriesID = seriesID.String
	it.SeriesName = seriesName.String
	it.SeasonID = seasonID.String
	it.SeasonName = seasonName.String
	it.IndexNumber = intPtr(indexNum)
	it.ParentIndexNumber = intPtr(parentIndexNum)
	it.PrimaryImageTag = primaryTag.String
	it.ThumbImageTag = thumbTag.String
	it.LogoImageTag = logoTag.String
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()

	for _, dec := range []struct {
		src  sql.NullString
		dest any
	}{
		{genres, &it.Genres},
		{tags, &it.Tags},
		{providers, &it.ProviderIDs},
		{backdrops, &it.BackdropImageTags},
		{blurHashes, &it.ImageBlurHashes},
	} {
		if err := decodeJSONText(dec.src, dec.dest); err != nil {
			return nil, fmt.Errorf("failed to decode item %s json column: %w", it.ID, err)
		}
	}
	return &it, nil
}

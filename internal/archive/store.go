// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/osintwire/intelhub/internal/metrics"
	"github.com/osintwire/intelhub/internal/models"
)

// ErrNotFound is returned when no archived record exists for a UUID.
var ErrNotFound = errors.New("archived record not found")

// defaultOrder is the stable sort for query results: publication time
// descending, insertion sequence descending as tie-break.
const defaultOrder = "ORDER BY pub_time DESC, seq DESC"

const selectColumns = `uuid, informant, pub_time, pub_time_raw, times, locations,
	peoples, organizations, event_title, event_brief, event_text, rate, impact,
	tips, raw_data, submitter, time_got, time_post, time_done, time_archived,
	retry_count, max_rate_class, max_rate_score, link_items, parent_item`

// Insert persists an archived record. The resolved publication time is
// computed from the record (collected pub_time, model string, fallbacks) and
// stored alongside the raw PUB_TIME string.
func (db *DB) Insert(ctx context.Context, item *models.ArchivedItem) error {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveStoreOp("archive", "insert", start, err) }()

	times, err := marshalJSONText(item.Times)
	if err != nil {
		return err
	}
	locations, err := marshalJSONText(item.Locations)
	if err != nil {
		return err
	}
	peoples, err := marshalJSONText(item.Peoples)
	if err != nil {
		return err
	}
	organizations, err := marshalJSONText(item.Organizations)
	if err != nil {
		return err
	}
	rate, err := marshalJSONText(item.Rate)
	if err != nil {
		return err
	}
	linkItems, err := marshalJSONText(item.Appendix.LinkItems)
	if err != nil {
		return err
	}

	var rawData interface{}
	if item.RawData != nil {
		data, merr := json.Marshal(item.RawData)
		if merr != nil {
			err = fmt.Errorf("marshal raw data: %w", merr)
			return err
		}
		rawData = string(data)
	}

	pubTime := item.ResolvePubTime()
	var pubTimeVal interface{}
	if !pubTime.IsZero() {
		pubTimeVal = pubTime
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO intelligence (
			uuid, informant, pub_time, pub_time_raw, times, locations, peoples,
			organizations, event_title, event_brief, event_text, rate, impact,
			tips, raw_data, submitter, time_got, time_post, time_done,
			time_archived, retry_count, max_rate_class, max_rate_score,
			link_items, parent_item
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.UUID, item.Informant, pubTimeVal, item.PubTime,
		times, locations, peoples, organizations,
		item.EventTitle, item.EventBrief, item.EventText,
		rate, item.Impact, item.Tips, rawData, item.Submitter,
		timePtr(item.Appendix.TimeGot), timePtr(item.Appendix.TimePost),
		timePtr(item.Appendix.TimeDone), derefTime(item.Appendix.TimeArchived),
		item.Appendix.RetryCount, item.Appendix.MaxRateClass,
		item.Appendix.MaxRateScore, linkItems, item.Appendix.ParentItem,
	)
	if err != nil {
		err = fmt.Errorf("insert archived record: %w", err)
	}
	return err
}

// Get returns the archived record for a UUID, or ErrNotFound.
func (db *DB) Get(ctx context.Context, uuid string) (*models.ArchivedItem, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM intelligence WHERE uuid = ?", uuid)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// Find returns archived records matching the filter, sorted by publication
// time descending with insertion sequence as tie-break.
func (db *DB) Find(ctx context.Context, f *Filter) ([]*models.ArchivedItem, error) {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveStoreOp("archive", "find", start, err) }()

	where, args := f.compile().Build()
	query := "SELECT " + selectColumns + " FROM intelligence " + where +
		" " + defaultOrder + f.pagination()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("query archive: %w", err)
		return nil, err
	}
	defer rows.Close()

	var items []*models.ArchivedItem
	for rows.Next() {
		item, serr := scanItem(rows)
		if serr != nil {
			err = serr
			return nil, err
		}
		items = append(items, item)
	}
	err = rows.Err()
	return items, err
}

// Count returns the number of records matching the filter, ignoring
// pagination.
func (db *DB) Count(ctx context.Context, f *Filter) (int64, error) {
	where, args := f.compile().Build()
	var n int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM intelligence "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count archive: %w", err)
	}
	return n, nil
}

// Summary is the pagination anchor: total record count plus the UUID of the
// newest record in the standard sort order.
type Summary struct {
	Total      int64  `json:"total"`
	NewestUUID string `json:"newest_uuid"`
}

// GetSummary returns the archive summary.
func (db *DB) GetSummary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM intelligence").Scan(&s.Total)
	if err != nil {
		return nil, fmt.Errorf("count archive: %w", err)
	}
	if s.Total == 0 {
		return &s, nil
	}
	err = db.conn.QueryRowContext(ctx,
		"SELECT uuid FROM intelligence "+defaultOrder+" LIMIT 1").Scan(&s.NewestUUID)
	if err != nil {
		return nil, fmt.Errorf("query newest record: %w", err)
	}
	return &s, nil
}

// Paginate returns a stable page anchored on baseUUID: the base record's
// publication time and sequence form an upper bound, so concurrent inserts
// of newer records do not shift pages.
func (db *DB) Paginate(ctx context.Context, baseUUID string, offset, limit int) ([]*models.ArchivedItem, error) {
	var basePub sql.NullTime
	var baseSeq int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT pub_time, seq FROM intelligence WHERE uuid = ?", baseUUID).
		Scan(&basePub, &baseSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve pagination anchor: %w", err)
	}

	query := "SELECT " + selectColumns + ` FROM intelligence
		WHERE pub_time < ? OR (pub_time = ? AND seq <= ?) OR (pub_time IS NULL AND seq <= ?)
		` + defaultOrder + " LIMIT ? OFFSET ?"
	rows, err := db.conn.QueryContext(ctx, query,
		basePub, basePub, baseSeq, baseSeq, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("paginate archive: %w", err)
	}
	defer rows.Close()

	var items []*models.ArchivedItem
	for rows.Next() {
		item, serr := scanItem(rows)
		if serr != nil {
			return nil, serr
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s scanner) (*models.ArchivedItem, error) {
	var (
		item          models.ArchivedItem
		pubTime       sql.NullTime
		pubTimeRaw    sql.NullString
		times         sql.NullString
		locations     sql.NullString
		peoples       sql.NullString
		organizations sql.NullString
		rate          sql.NullString
		rawData       sql.NullString
		timeGot       sql.NullTime
		timePost      sql.NullTime
		timeDone      sql.NullTime
		timeArchived  time.Time
		linkItems     sql.NullString
		informant     sql.NullString
		eventTitle    sql.NullString
		eventBrief    sql.NullString
		eventText     sql.NullString
		impact        sql.NullString
		tips          sql.NullString
		submitter     sql.NullString
		maxRateClass  sql.NullString
		parentItem    sql.NullString
	)

	err := s.Scan(
		&item.UUID, &informant, &pubTime, &pubTimeRaw, &times, &locations,
		&peoples, &organizations, &eventTitle, &eventBrief, &eventText,
		&rate, &impact, &tips, &rawData, &submitter, &timeGot, &timePost,
		&timeDone, &timeArchived, &item.Appendix.RetryCount, &maxRateClass,
		&item.Appendix.MaxRateScore, &linkItems, &parentItem,
	)
	if err != nil {
		return nil, err
	}

	item.Informant = informant.String
	item.PubTime = pubTimeRaw.String
	item.EventTitle = eventTitle.String
	item.EventBrief = eventBrief.String
	item.EventText = eventText.String
	item.Impact = impact.String
	item.Tips = tips.String
	item.Submitter = submitter.String
	item.Appendix.MaxRateClass = maxRateClass.String
	item.Appendix.ParentItem = parentItem.String
	item.Appendix.TimeArchived = &timeArchived
	item.Appendix.ArchivedFlag = models.FlagArchived

	if timeGot.Valid {
		item.Appendix.TimeGot = &timeGot.Time
	}
	if timePost.Valid {
		item.Appendix.TimePost = &timePost.Time
	}
	if timeDone.Valid {
		item.Appendix.TimeDone = &timeDone.Time
	}

	if err := unmarshalJSONText(times, &item.Times); err != nil {
		return nil, err
	}
	if err := unmarshalJSONText(locations, &item.Locations); err != nil {
		return nil, err
	}
	if err := unmarshalJSONText(peoples, &item.Peoples); err != nil {
		return nil, err
	}
	if err := unmarshalJSONText(organizations, &item.Organizations); err != nil {
		return nil, err
	}
	if err := unmarshalJSONText(rate, &item.Rate); err != nil {
		return nil, err
	}
	if err := unmarshalJSONText(linkItems, &item.Appendix.LinkItems); err != nil {
		return nil, err
	}
	if rawData.Valid && rawData.String != "" {
		var raw models.CollectedItem
		if err := json.Unmarshal([]byte(rawData.String), &raw); err != nil {
			return nil, fmt.Errorf("decode raw data for %s: %w", item.UUID, err)
		}
		item.RawData = &raw
	}

	return &item, nil
}

// marshalJSONText encodes a value as JSON text for storage, mapping empty
// collections to NULL.
func marshalJSONText(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case models.Rate:
		if len(t) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(data), nil
}

func unmarshalJSONText(col sql.NullString, dst interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func timePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// derefTime maps a nil archival time to now; the column is NOT NULL.
func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Now().UTC()
	}
	return *t
}

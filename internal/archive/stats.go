// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package archive

import (
	"context"
	"fmt"
	"time"
)

// Bucket is a time-bucketing granularity for archive statistics.
type Bucket string

const (
	BucketHour  Bucket = "hour"
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// Valid reports whether b is a supported granularity.
func (b Bucket) Valid() bool {
	switch b {
	case BucketHour, BucketDay, BucketWeek, BucketMonth:
		return true
	}
	return false
}

// PeriodCount is one time bucket's record count.
type PeriodCount struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
}

// CountByPeriod groups archived records by TIME_ARCHIVED bucket within the
// range. Empty buckets are omitted.
func (db *DB) CountByPeriod(ctx context.Context, start, end time.Time, bucket Bucket) ([]PeriodCount, error) {
	if !bucket.Valid() {
		return nil, fmt.Errorf("unsupported bucket %q", bucket)
	}

	// bucket is validated against the fixed set above, safe to interpolate
	query := fmt.Sprintf(`
		SELECT date_trunc('%s', time_archived) AS bucket, count(*) AS n
		FROM intelligence
		WHERE time_archived >= ? AND time_archived <= ?
		GROUP BY bucket
		ORDER BY bucket`, bucket)

	rows, err := db.conn.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("count by period: %w", err)
	}
	defer rows.Close()

	var out []PeriodCount
	for rows.Next() {
		var pc PeriodCount
		if err := rows.Scan(&pc.Bucket, &pc.Count); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// ScoreDistribution buckets MAX_RATE_SCORE into integer bins 1..10 within
// the range. Every bin is present in the result, zero-filled.
func (db *DB) ScoreDistribution(ctx context.Context, start, end time.Time) (map[int]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT CAST(least(greatest(ceil(max_rate_score), 1), 10) AS INTEGER) AS bin,
		       count(*) AS n
		FROM intelligence
		WHERE time_archived >= ? AND time_archived <= ?
		GROUP BY bin`, start, end)
	if err != nil {
		return nil, fmt.Errorf("score distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[int]int64, 10)
	for i := 1; i <= 10; i++ {
		dist[i] = 0
	}
	for rows.Next() {
		var bin int
		var n int64
		if err := rows.Scan(&bin, &n); err != nil {
			return nil, err
		}
		dist[bin] = n
	}
	return dist, rows.Err()
}

// InformantCount is one informant's record count.
type InformantCount struct {
	Informant string `json:"informant"`
	Count     int64  `json:"count"`
}

// TopInformants returns the n informants with the most archived records in
// the range, ties broken alphabetically. Records without an informant are
// excluded.
func (db *DB) TopInformants(ctx context.Context, start, end time.Time, n int) ([]InformantCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT informant, count(*) AS n
		FROM intelligence
		WHERE time_archived >= ? AND time_archived <= ?
		  AND informant IS NOT NULL AND informant <> ''
		GROUP BY informant
		ORDER BY n DESC, informant
		LIMIT ?`, start, end, n)
	if err != nil {
		return nil, fmt.Errorf("top informants: %w", err)
	}
	defer rows.Close()

	var out []InformantCount
	for rows.Next() {
		var ic InformantCount
		if err := rows.Scan(&ic.Informant, &ic.Count); err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, rows.Err()
}

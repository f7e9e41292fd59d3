// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/osintwire/intelhub/internal/models"
)

// UpsertRecommendationSet persists a recommendation set keyed by its
// generation hour. Re-generating within the same hour replaces the stored
// set, making the hourly job idempotent.
func (db *DB) UpsertRecommendationSet(ctx context.Context, set *models.RecommendationSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal recommendation set: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO recommendation_sets (hour_key, generated_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT (hour_key) DO UPDATE SET
			generated_at = excluded.generated_at,
			payload = excluded.payload`,
		set.HourKey(), set.GeneratedAt, string(payload))
	if err != nil {
		return fmt.Errorf("upsert recommendation set: %w", err)
	}
	return nil
}

// RecommendationSets returns the sets generated within the range, newest
// first.
func (db *DB) RecommendationSets(ctx context.Context, start, end time.Time) ([]*models.RecommendationSet, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT payload FROM recommendation_sets
		WHERE generated_at >= ? AND generated_at <= ?
		ORDER BY generated_at DESC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query recommendation sets: %w", err)
	}
	defer rows.Close()

	var sets []*models.RecommendationSet
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var set models.RecommendationSet
		if err := json.Unmarshal([]byte(payload), &set); err != nil {
			return nil, fmt.Errorf("decode recommendation set: %w", err)
		}
		sets = append(sets, &set)
	}
	return sets, rows.Err()
}

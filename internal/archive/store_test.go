// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/osintwire/intelhub/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:      filepath.Join(t.TempDir(), "archive.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func archivedAt(uuid string, at time.Time) *models.ArchivedItem {
	return &models.ArchivedItem{
		ProcessedItem: models.ProcessedItem{
			UUID:       uuid,
			EventTitle: "title " + uuid,
			EventBrief: "brief " + uuid,
			EventText:  "text " + uuid,
		},
		Appendix: models.Appendix{TimeArchived: &at},
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	pub := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	archived := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	item := &models.ArchivedItem{
		ProcessedItem: models.ProcessedItem{
			UUID:          "u1",
			Informant:     "reuters",
			Locations:     []string{"US", "CN"},
			Peoples:       []string{"Alice"},
			Organizations: []string{"UN"},
			EventTitle:    "T",
			EventBrief:    "B",
			EventText:     "full text",
			Rate:          models.Rate{{Class: "military", Score: 7}, {Class: "accuracy", Score: 9}},
		},
		RawData:   &models.CollectedItem{UUID: "u1", Content: "raw", PubTime: &pub},
		Submitter: "crawler-1",
		Appendix: models.Appendix{
			TimeArchived: &archived,
			MaxRateClass: "military",
			MaxRateScore: 7,
		},
	}

	if err := db.Insert(ctx, item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EventText != "full text" || got.Informant != "reuters" {
		t.Errorf("fields did not round-trip: %+v", got)
	}
	if len(got.Locations) != 2 || got.Locations[0] != "US" {
		t.Errorf("locations did not round-trip: %v", got.Locations)
	}
	if len(got.Rate) != 2 || got.Rate[0].Class != "military" {
		t.Errorf("rate order did not round-trip: %v", got.Rate)
	}
	if got.RawData == nil || got.RawData.Content != "raw" {
		t.Errorf("raw data did not round-trip: %+v", got.RawData)
	}
	if got.Appendix.MaxRateScore != 7 {
		t.Errorf("max rate score did not round-trip: %v", got.Appendix.MaxRateScore)
	}
	if !got.ResolvePubTime().Equal(pub) {
		t.Errorf("pub time resolution changed: %v", got.ResolvePubTime())
	}
}

func TestGetMissing(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByLocationAndPeriod(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)
	t3 := t0.Add(3 * time.Hour)

	us := archivedAt("u1", t1)
	us.Locations = []string{"US"}
	us.RawData = &models.CollectedItem{UUID: "u1", Content: "x", PubTime: &t1}
	cn := archivedAt("u2", t2)
	cn.Locations = []string{"CN"}
	cn.RawData = &models.CollectedItem{UUID: "u2", Content: "x", PubTime: &t2}

	for _, it := range []*models.ArchivedItem{us, cn} {
		if err := db.Insert(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	f := &Filter{ArchiveStart: &t0, ArchiveEnd: &t3, Locations: []string{"US"}}
	items, err := db.Find(ctx, f)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(items) != 1 || items[0].UUID != "u1" {
		t.Fatalf("expected exactly u1, got %+v", items)
	}
	n, err := db.Count(ctx, f)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
}

func TestFindKeywordsAndThreshold(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	hit := archivedAt("u1", now)
	hit.EventBrief = "Missile strike reported near the port"
	hit.Appendix.MaxRateScore = 8
	miss := archivedAt("u2", now)
	miss.EventBrief = "Trade talks resume"
	miss.Appendix.MaxRateScore = 8
	lowScore := archivedAt("u3", now)
	lowScore.EventBrief = "missile test"
	lowScore.Appendix.MaxRateScore = 2

	for _, it := range []*models.ArchivedItem{hit, miss, lowScore} {
		if err := db.Insert(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	threshold := 5.0
	items, err := db.Find(ctx, &Filter{Keywords: []string{"missile"}, Threshold: &threshold})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(items) != 1 || items[0].UUID != "u1" {
		t.Fatalf("expected u1 only, got %+v", items)
	}
}

func TestSummaryAndPaginate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, u := range []string{"u1", "u2", "u3"} {
		pub := base.Add(time.Duration(i) * time.Hour)
		it := archivedAt(u, pub)
		it.RawData = &models.CollectedItem{UUID: u, Content: "x", PubTime: &pub}
		if err := db.Insert(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	sum, err := db.GetSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Total != 3 || sum.NewestUUID != "u3" {
		t.Fatalf("unexpected summary %+v", sum)
	}

	// page anchored at the newest record covers all three in pub_time order
	page, err := db.Paginate(ctx, sum.NewestUUID, 0, 10)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(page) != 3 || page[0].UUID != "u3" || page[2].UUID != "u1" {
		t.Fatalf("unexpected page %+v", page)
	}

	// offset walks down the same anchored view
	page, err = db.Paginate(ctx, sum.NewestUUID, 1, 1)
	if err != nil {
		t.Fatalf("paginate offset: %v", err)
	}
	if len(page) != 1 || page[0].UUID != "u2" {
		t.Fatalf("unexpected offset page %+v", page)
	}
}

func TestStatistics(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	specs := []struct {
		uuid      string
		at        time.Time
		score     float64
		informant string
	}{
		{"u1", day.Add(1 * time.Hour), 7, "reuters"},
		{"u2", day.Add(1*time.Hour + 30*time.Minute), 7.5, "reuters"},
		{"u3", day.Add(5 * time.Hour), 2, "ap"},
	}
	for _, s := range specs {
		it := archivedAt(s.uuid, s.at)
		it.Appendix.MaxRateScore = s.score
		it.Informant = s.informant
		if err := db.Insert(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	counts, err := db.CountByPeriod(ctx, day, day.Add(24*time.Hour), BucketHour)
	if err != nil {
		t.Fatalf("count by period: %v", err)
	}
	if len(counts) != 2 || counts[0].Count != 2 || counts[1].Count != 1 {
		t.Fatalf("unexpected hourly counts %+v", counts)
	}

	dist, err := db.ScoreDistribution(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("score distribution: %v", err)
	}
	if dist[7] != 1 || dist[8] != 1 || dist[2] != 1 {
		t.Fatalf("unexpected distribution %v", dist)
	}
	if len(dist) != 10 {
		t.Errorf("expected all 10 bins present, got %d", len(dist))
	}

	top, err := db.TopInformants(ctx, day, day.Add(24*time.Hour), 5)
	if err != nil {
		t.Fatalf("top informants: %v", err)
	}
	if len(top) != 2 || top[0].Informant != "reuters" || top[0].Count != 2 {
		t.Fatalf("unexpected top informants %+v", top)
	}
}

func TestRecommendationSetUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 17, 0, 0, time.UTC)
	set := &models.RecommendationSet{
		GeneratedAt:     at,
		Recommendations: []models.ArchivedItem{{ProcessedItem: models.ProcessedItem{UUID: "u1"}}},
		CandidateUUIDs:  []string{"u1", "u2"},
	}
	if err := db.UpsertRecommendationSet(ctx, set); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// same hour replaces, not duplicates
	set2 := &models.RecommendationSet{
		GeneratedAt:     at.Add(10 * time.Minute),
		Recommendations: []models.ArchivedItem{{ProcessedItem: models.ProcessedItem{UUID: "u2"}}},
	}
	if err := db.UpsertRecommendationSet(ctx, set2); err != nil {
		t.Fatalf("upsert same hour: %v", err)
	}

	sets, err := db.RecommendationSets(ctx, at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("query sets: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected 1 set after same-hour upsert, got %d", len(sets))
	}
	if sets[0].Recommendations[0].UUID != "u2" {
		t.Errorf("expected replacement to win: %+v", sets[0])
	}
}

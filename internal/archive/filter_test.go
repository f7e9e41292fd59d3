// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package archive

import (
	"strings"
	"testing"
	"time"
)

func TestWhereBuilder_Empty(t *testing.T) {
	where, args := NewWhereBuilder().Build()
	if where != "" {
		t.Errorf("expected empty clause, got %q", where)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestWhereBuilder_TimeRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	where, args := NewWhereBuilder().AddTimeRange("time_archived", &start, &end).Build()
	if where != "WHERE time_archived >= ? AND time_archived <= ?" {
		t.Errorf("unexpected clause %q", where)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}

	where, args = NewWhereBuilder().AddTimeRange("pub_time", &start, nil).Build()
	if where != "WHERE pub_time >= ?" {
		t.Errorf("unexpected clause %q", where)
	}
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(args))
	}
}

func TestWhereBuilder_ContainsAny(t *testing.T) {
	where, args := NewWhereBuilder().AddContainsAny("locations", []string{"US", "CN"}).Build()
	want := `WHERE (json_contains(locations, ?) OR json_contains(locations, ?))`
	if where != want {
		t.Errorf("unexpected clause %q", where)
	}
	if args[0] != `"US"` || args[1] != `"CN"` {
		t.Errorf("expected JSON string literals, got %v", args)
	}

	// empty list adds nothing
	where, _ = NewWhereBuilder().AddContainsAny("locations", nil).Build()
	if where != "" {
		t.Errorf("expected empty clause, got %q", where)
	}
}

func TestWhereBuilder_ContainsAnyEscaping(t *testing.T) {
	_, args := NewWhereBuilder().AddContainsAny("peoples", []string{`O"Brien`}).Build()
	if args[0] != `"O\"Brien"` {
		t.Errorf("quote not escaped: %v", args[0])
	}
}

func TestWhereBuilder_Keywords(t *testing.T) {
	where, args := NewWhereBuilder().AddKeywords([]string{"missile", "port"}).Build()

	// terms AND-combined, each OR-combined across brief and text
	if strings.Count(where, "AND") != 1 {
		t.Errorf("expected terms AND-combined: %q", where)
	}
	if strings.Count(where, "regexp_matches(event_brief") != 2 ||
		strings.Count(where, "regexp_matches(event_text") != 2 {
		t.Errorf("expected both columns per term: %q", where)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[0] != `\bmissile\b` {
		t.Errorf("expected word-boundary pattern, got %v", args[0])
	}
}

func TestWhereBuilder_KeywordsEscaped(t *testing.T) {
	_, args := NewWhereBuilder().AddKeywords([]string{"a.b"}).Build()
	if args[0] != `\ba\.b\b` {
		t.Errorf("regex metacharacters not escaped: %v", args[0])
	}
}

func TestFilter_Compile(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	threshold := 5.0
	f := &Filter{
		ArchiveStart: &start,
		Locations:    []string{"US"},
		Keywords:     []string{"missile"},
		Threshold:    &threshold,
	}

	where, args := f.compile().Build()
	for _, frag := range []string{
		"time_archived >= ?",
		"json_contains(locations, ?)",
		"regexp_matches(event_brief, ?, 'i')",
		"max_rate_score >= ?",
	} {
		if !strings.Contains(where, frag) {
			t.Errorf("missing fragment %q in %q", frag, where)
		}
	}
	if len(args) != 5 {
		t.Errorf("expected 5 args, got %d", len(args))
	}
}

func TestFilter_Pagination(t *testing.T) {
	if got := (&Filter{}).pagination(); got != "" {
		t.Errorf("expected no pagination, got %q", got)
	}
	if got := (&Filter{Limit: 10}).pagination(); got != " LIMIT 10" {
		t.Errorf("unexpected %q", got)
	}
	if got := (&Filter{Limit: 10, Skip: 20}).pagination(); got != " LIMIT 10 OFFSET 20" {
		t.Errorf("unexpected %q", got)
	}
}

func TestBucket_Valid(t *testing.T) {
	for _, b := range []Bucket{BucketHour, BucketDay, BucketWeek, BucketMonth} {
		if !b.Valid() {
			t.Errorf("expected %q valid", b)
		}
	}
	if Bucket("year").Valid() {
		t.Error("unsupported bucket accepted")
	}
}

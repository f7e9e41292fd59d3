// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package archive

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Filter is a composable query over the intelligence table. Zero values
// mean "no constraint".
type Filter struct {
	// ArchivePeriod constrains APPENDIX.TIME_ARCHIVED.
	ArchiveStart *time.Time `json:"archive_start,omitempty"`
	ArchiveEnd   *time.Time `json:"archive_end,omitempty"`

	// PubPeriod constrains the resolved publication time.
	PubStart *time.Time `json:"pub_start,omitempty"`
	PubEnd   *time.Time `json:"pub_end,omitempty"`

	// Array-contains-any: a record matches when its array field contains
	// at least one of the listed values.
	Locations     []string `json:"locations,omitempty"`
	Peoples       []string `json:"peoples,omitempty"`
	Organizations []string `json:"organizations,omitempty"`

	// Keywords are AND-combined; each term matches case-insensitively on a
	// word boundary in EVENT_BRIEF or EVENT_TEXT.
	Keywords []string `json:"keywords,omitempty"`

	// Threshold constrains APPENDIX.MAX_RATE_SCORE >= Threshold.
	Threshold *float64 `json:"threshold,omitempty"`

	Skip  int `json:"skip,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// WhereBuilder constructs parameterized WHERE clauses. Clauses are
// AND-combined in the order they are added.
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause appends a raw condition fragment with its bound arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddTimeRange adds range conditions on a timestamp column. Nil bounds are
// skipped.
func (wb *WhereBuilder) AddTimeRange(column string, start, end *time.Time) *WhereBuilder {
	if start != nil {
		wb.AddClause(column+" >= ?", *start)
	}
	if end != nil {
		wb.AddClause(column+" <= ?", *end)
	}
	return wb
}

// AddContainsAny adds an array-contains-any condition over a JSON-array
// column: the stored array must contain at least one of the values.
func (wb *WhereBuilder) AddContainsAny(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("json_contains(%s, ?)", column)
		wb.args = append(wb.args, jsonStringLiteral(v))
	}
	wb.clauses = append(wb.clauses, "("+strings.Join(parts, " OR ")+")")
	return wb
}

// AddKeywords adds the keyword conditions: terms AND-combined, each term
// OR-combined across the brief and text columns with a case-insensitive
// word-boundary regexp.
func (wb *WhereBuilder) AddKeywords(terms []string) *WhereBuilder {
	for _, term := range terms {
		if term == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(term) + `\b`
		wb.clauses = append(wb.clauses,
			"(regexp_matches(event_brief, ?, 'i') OR regexp_matches(event_text, ?, 'i'))")
		wb.args = append(wb.args, pattern, pattern)
	}
	return wb
}

// Build returns the WHERE clause (empty string when unconstrained) and the
// bound arguments.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(wb.clauses, " AND "), wb.args
}

// jsonStringLiteral encodes a value as a JSON string for json_contains.
func jsonStringLiteral(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// compile translates a Filter into a WhereBuilder.
func (f *Filter) compile() *WhereBuilder {
	wb := NewWhereBuilder()
	wb.AddTimeRange("time_archived", f.ArchiveStart, f.ArchiveEnd)
	wb.AddTimeRange("pub_time", f.PubStart, f.PubEnd)
	wb.AddContainsAny("locations", f.Locations)
	wb.AddContainsAny("peoples", f.Peoples)
	wb.AddContainsAny("organizations", f.Organizations)
	wb.AddKeywords(f.Keywords)
	if f.Threshold != nil {
		wb.AddClause("max_rate_score >= ?", *f.Threshold)
	}
	return wb
}

// pagination returns LIMIT/OFFSET SQL for the filter. A zero Limit means no
// limit; Skip without Limit still applies an offset.
func (f *Filter) pagination() string {
	var sb strings.Builder
	if f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", f.Limit)
	}
	if f.Skip > 0 {
		// DuckDB accepts OFFSET without LIMIT
		fmt.Fprintf(&sb, " OFFSET %d", f.Skip)
	}
	return sb.String()
}

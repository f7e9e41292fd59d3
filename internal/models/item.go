// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package models defines the data shapes an intelligence record takes as it
// moves through the pipeline: Collected (raw submission), Processed (LLM
// analysis output), and Archived (finalized record with bookkeeping), plus
// the supporting records for key rotation, recommendations, and crawl state.
package models

import (
	"time"
)

// ArchivedFlag is the single-character terminal state written onto a cache
// row to record the eventual outcome of a submission.
type ArchivedFlag string

const (
	// FlagArchived marks a row whose item reached the archive store.
	FlagArchived ArchivedFlag = "A"
	// FlagDrop marks a row the analysis judged not worth archiving.
	FlagDrop ArchivedFlag = "D"
	// FlagError marks a row that failed during analysis or archival.
	FlagError ArchivedFlag = "E"
	// FlagRetry marks a row eligible for a future retry pass.
	// No retry worker ships with the hub; the flag is treated as terminal.
	FlagRetry ArchivedFlag = "R"
)

// Terminal reports whether f is a terminal flag value.
func (f ArchivedFlag) Terminal() bool {
	switch f {
	case FlagArchived, FlagDrop, FlagError, FlagRetry:
		return true
	}
	return false
}

// CollectedItem is a raw submission from a crawler or collector.
// Immutable once accepted; only the cache row's Appendix changes afterwards.
type CollectedItem struct {
	// UUID uniquely identifies the item across all stores.
	// Auto-filled at submission when empty.
	UUID string `json:"uuid" validate:"required"`

	// Token identifies the submitter. Checked against the collector token
	// set; copied into the archived record as SUBMITTER.
	Token string `json:"token,omitempty"`

	// Source and Target are opaque routing hints set by the submitter.
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	// Prompt optionally overrides the analysis system prompt for this item.
	Prompt string `json:"prompt,omitempty"`

	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`

	// Content is the raw text to analyze. Required, non-empty.
	Content string `json:"content" validate:"required"`

	PubTime   *time.Time `json:"pub_time,omitempty"`
	Informant string     `json:"informant,omitempty"`
}

// ProcessedItem is the validated output of the LLM analysis step.
// Field names mirror the uppercase keys the analysis prompt requires in the
// model's JSON reply.
type ProcessedItem struct {
	UUID      string `json:"UUID" validate:"required"`
	Informant string `json:"INFORMANT,omitempty"`

	// PubTime is the publication time as reported by the model, free-form.
	// The archive resolves it against the collected item's pub_time.
	PubTime string `json:"PUB_TIME,omitempty"`

	Times         []string `json:"TIME,omitempty"`
	Locations     []string `json:"LOCATION,omitempty"`
	Peoples       []string `json:"PEOPLE,omitempty"`
	Organizations []string `json:"ORGANIZATION,omitempty"`

	EventTitle string `json:"EVENT_TITLE,omitempty"`
	EventBrief string `json:"EVENT_BRIEF,omitempty"`

	// EventText absent means the model judged the item unworthy; the
	// pipeline drops it.
	EventText string `json:"EVENT_TEXT,omitempty"`

	Rate   Rate   `json:"RATE,omitempty"`
	Impact string `json:"IMPACT,omitempty"`
	Tips   string `json:"TIPS,omitempty"`
}

// Appendix carries per-item bookkeeping attached to cache rows and archived
// records.
type Appendix struct {
	TimeGot      *time.Time `json:"TIME_GOT,omitempty"`
	TimePost     *time.Time `json:"TIME_POST,omitempty"`
	TimeDone     *time.Time `json:"TIME_DONE,omitempty"`
	TimeArchived *time.Time `json:"TIME_ARCHIVED,omitempty"`

	RetryCount   int          `json:"RETRY_COUNT,omitempty"`
	ArchivedFlag ArchivedFlag `json:"ARCHIVED_FLAG,omitempty"`
	DropReason   string       `json:"DROP_REASON,omitempty"`

	MaxRateClass string  `json:"MAX_RATE_CLASS,omitempty"`
	MaxRateScore float64 `json:"MAX_RATE_SCORE,omitempty"`

	// LinkItems and ParentItem relate records to each other. Declared for
	// wire compatibility; the pipeline stores them verbatim.
	LinkItems  []string `json:"LINK_ITEMS,omitempty"`
	ParentItem string   `json:"PARENT_ITEM,omitempty"`
}

// ArchivedItem is the finalized intelligence record persisted to the
// archive store: the processed fields plus the originating raw data and
// bookkeeping.
type ArchivedItem struct {
	ProcessedItem

	RawData   *CollectedItem `json:"RAW_DATA,omitempty"`
	Submitter string         `json:"SUBMITTER,omitempty"`
	Appendix  Appendix       `json:"APPENDIX"`
}

// pubTimeLayouts are tried in order when resolving a model-reported
// publication time string.
var pubTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ResolvePubTime returns the best-known publication timestamp for the item:
// the collected pub_time when present, else the parsed PUB_TIME string,
// else the time the submission arrived, else the archival time.
func (a *ArchivedItem) ResolvePubTime() time.Time {
	if a.RawData != nil && a.RawData.PubTime != nil {
		return *a.RawData.PubTime
	}
	for _, layout := range pubTimeLayouts {
		if t, err := time.Parse(layout, a.PubTime); err == nil {
			return t
		}
	}
	if a.Appendix.TimeGot != nil {
		return *a.Appendix.TimeGot
	}
	if a.Appendix.TimeArchived != nil {
		return *a.Appendix.TimeArchived
	}
	return time.Time{}
}

// CacheRow is the durable form of an accepted submission in the cache
// store: the immutable collected item plus its mutable appendix.
type CacheRow struct {
	Collected CollectedItem `json:"collected"`
	Appendix  Appendix      `json:"appendix"`
}

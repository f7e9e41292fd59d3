// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package models

import (
	"time"
)

// RecommendationSet is one periodically-generated short list of the most
// important recent archives. Sets are keyed by their generation hour; a
// regeneration within the same hour replaces the previous set.
type RecommendationSet struct {
	// GeneratedAt is the generation time truncated to the top of the hour.
	GeneratedAt time.Time `json:"generated_datetime"`

	Recommendations []ArchivedItem `json:"recommendations"`

	// CandidateUUIDs records the full candidate list the selection saw.
	CandidateUUIDs []string `json:"candidate_uuids"`
}

// HourKey returns the canonical storage key for the set: its generation
// hour in UTC, RFC3339.
func (s *RecommendationSet) HourKey() string {
	return s.GeneratedAt.UTC().Truncate(time.Hour).Format(time.RFC3339)
}

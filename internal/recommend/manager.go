// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package recommend generates the hourly recommendation sets: an LLM pass
// over recent high-scoring archives that picks the handful most worth a
// reader's attention.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/llm"
	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/models"
)

// ErrGenerationRunning is returned when a generation is requested while a
// previous one is still in flight.
var ErrGenerationRunning = errors.New("recommendation generation already running")

// Selector is the slice of the LLM client the manager needs.
type Selector interface {
	Configured() bool
	Chat(ctx context.Context, kind, systemPrompt, userMessage string) (string, error)
}

// SetStore persists and lists recommendation sets.
type SetStore interface {
	Find(ctx context.Context, f *archive.Filter) ([]*models.ArchivedItem, error)
	UpsertRecommendationSet(ctx context.Context, set *models.RecommendationSet) error
	RecommendationSets(ctx context.Context, start, end time.Time) ([]*models.RecommendationSet, error)
}

// Config holds recommendation settings.
type Config struct {
	// SystemPrompt instructs the selection model.
	SystemPrompt string
	// Window bounds how far back Latest and CountIntelligence look.
	Window time.Duration
	// Period bounds how far back candidate archives are drawn from.
	Period time.Duration
	// ScoreThreshold is the minimum MAX_RATE_SCORE for a candidate.
	ScoreThreshold float64
	// CandidateLimit caps how many candidates the selection model sees.
	CandidateLimit int
}

// Manager generates, persists, and serves recommendation sets. One
// generation runs at a time; an overlapping trigger is skipped.
type Manager struct {
	cfg      Config
	store    SetStore
	selector Selector
	log      zerolog.Logger

	genMu sync.Mutex

	mu   sync.RWMutex
	sets []*models.RecommendationSet // oldest first
}

// NewManager wires a recommendation manager.
func NewManager(cfg Config, store SetStore, selector Selector) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = 48 * time.Hour
	}
	if cfg.Period <= 0 {
		cfg.Period = 24 * time.Hour
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 50
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		selector: selector,
		log:      logging.With().Str("component", "recommend").Logger(),
	}
}

// Restore loads the in-window recommendation sets from the store, e.g.
// after a restart.
func (m *Manager) Restore(ctx context.Context) error {
	now := time.Now().UTC()
	sets, err := m.store.RecommendationSets(ctx, now.Add(-m.cfg.Window), now)
	if err != nil {
		return fmt.Errorf("restore recommendation sets: %w", err)
	}
	// The store lists newest first; the in-memory window is oldest first.
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].GeneratedAt.Before(sets[j].GeneratedAt)
	})
	m.mu.Lock()
	m.sets = sets
	m.mu.Unlock()
	if len(sets) > 0 {
		m.log.Info().Int("sets", len(sets)).Msg("restored recommendation sets")
	}
	return nil
}

// Generate produces and persists a recommendation set for the current hour.
// Returns ErrGenerationRunning when a generation is already in flight.
func (m *Manager) Generate(ctx context.Context) (*models.RecommendationSet, error) {
	if !m.genMu.TryLock() {
		return nil, ErrGenerationRunning
	}
	defer m.genMu.Unlock()

	if m.selector == nil || !m.selector.Configured() {
		return nil, errors.New("no selection model configured")
	}

	now := time.Now().UTC()
	start := now.Add(-m.cfg.Period)
	candidates, err := m.store.Find(ctx, &archive.Filter{
		ArchiveStart: &start,
		ArchiveEnd:   &now,
		Threshold:    &m.cfg.ScoreThreshold,
		Limit:        m.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load recommendation candidates: %w", err)
	}
	if len(candidates) == 0 {
		m.log.Debug().Msg("no recommendation candidates in period")
		return nil, nil
	}

	picked, err := m.selectUUIDs(ctx, candidates)
	if err != nil {
		return nil, err
	}

	byUUID := make(map[string]*models.ArchivedItem, len(candidates))
	candidateUUIDs := make([]string, len(candidates))
	for i, c := range candidates {
		byUUID[c.UUID] = c
		candidateUUIDs[i] = c.UUID
	}

	set := &models.RecommendationSet{
		GeneratedAt:    now.Truncate(time.Hour),
		CandidateUUIDs: candidateUUIDs,
	}
	for _, u := range picked {
		if item, ok := byUUID[u]; ok {
			set.Recommendations = append(set.Recommendations, *item)
		} else {
			m.log.Warn().Str("uuid", u).Msg("selection returned unknown candidate, skipping")
		}
	}
	if len(set.Recommendations) == 0 {
		return nil, errors.New("selection produced no usable recommendations")
	}

	if err := m.store.UpsertRecommendationSet(ctx, set); err != nil {
		return nil, err
	}
	m.install(set)

	m.log.Info().
		Int("candidates", len(candidates)).
		Int("picked", len(set.Recommendations)).
		Str("hour", set.HourKey()).
		Msg("recommendation set generated")
	return set, nil
}

// selectUUIDs asks the model to pick the most important candidates and
// parses the UUID array out of its reply.
func (m *Manager) selectUUIDs(ctx context.Context, candidates []*models.ArchivedItem) ([]string, error) {
	var b strings.Builder
	for _, c := range candidates {
		entry := struct {
			UUID       string `json:"UUID"`
			EventTitle string `json:"EVENT_TITLE"`
			EventBrief string `json:"EVENT_BRIEF"`
		}{c.UUID, c.EventTitle, c.EventBrief}
		line, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("marshal candidate: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	reply, err := m.selector.Chat(ctx, "recommend", m.cfg.SystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("recommendation selection: %w", err)
	}

	raw, err := llm.ExtractJSONArray(reply)
	if err != nil {
		return nil, fmt.Errorf("selection reply: %w", err)
	}
	var uuids []string
	if err := json.Unmarshal(raw, &uuids); err != nil {
		return nil, fmt.Errorf("parse selection reply: %w", err)
	}
	return uuids, nil
}

// install merges a set into the in-memory window, replacing a set with the
// same hour key and pruning expired sets.
func (m *Manager) install(set *models.RecommendationSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.sets[:0]
	cutoff := time.Now().UTC().Add(-m.cfg.Window)
	for _, s := range m.sets {
		if s.GeneratedAt.Before(cutoff) || s.HourKey() == set.HourKey() {
			continue
		}
		kept = append(kept, s)
	}
	m.sets = append(kept, set)
}

// Latest returns the most recent in-window set, or nil when none exists.
func (m *Manager) Latest() *models.RecommendationSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-m.cfg.Window)
	for i := len(m.sets) - 1; i >= 0; i-- {
		if !m.sets[i].GeneratedAt.Before(cutoff) {
			return m.sets[i]
		}
	}
	return nil
}

// CountIntelligence returns, per UUID, how many in-period sets recommended
// it. A UUID recommended in several consecutive sets is a persistent lead.
func (m *Manager) CountIntelligence(period time.Duration) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-period)
	counts := map[string]int{}
	for _, s := range m.sets {
		if s.GeneratedAt.Before(cutoff) {
			continue
		}
		for _, r := range s.Recommendations {
			counts[r.UUID]++
		}
	}
	return counts
}

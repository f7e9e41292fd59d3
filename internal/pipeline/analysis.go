// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/llm"
	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/models"
	"github.com/osintwire/intelhub/internal/validation"
)

// AnalysisClient is the slice of the LLM client the analysis worker needs.
type AnalysisClient interface {
	Configured() bool
	Chat(ctx context.Context, kind, systemPrompt, userMessage string) (string, error)
}

// FlagStore marks cache rows with their terminal outcome.
type FlagStore interface {
	MarkArchived(uuid string, flag models.ArchivedFlag, reason string) error
}

// AnalysisConfig holds analysis worker settings.
type AnalysisConfig struct {
	// SystemPrompt is the default analysis prompt; a collected item's own
	// Prompt field overrides it.
	SystemPrompt string
	// ExcludedRateClass is left out when computing the maximum rate score.
	ExcludedRateClass string
}

// AnalysisWorker drains the ingestion queue: it sends each collected item
// through the LLM, validates and enriches the reply, and hands survivors
// to the post-process queue.
type AnalysisWorker struct {
	cfg      AnalysisConfig
	ingest   *Queue[*models.CacheRow]
	post     *Queue[*models.ArchivedItem]
	client   AnalysisClient
	flags    FlagStore
	table    *ProcessingTable
	counters *Counters
	log      zerolog.Logger
}

// NewAnalysisWorker wires an analysis worker. client may be nil when no
// analyzer is configured; items are then dropped with a reason.
func NewAnalysisWorker(cfg AnalysisConfig, ingest *Queue[*models.CacheRow], post *Queue[*models.ArchivedItem],
	client AnalysisClient, flags FlagStore, table *ProcessingTable, counters *Counters) *AnalysisWorker {
	return &AnalysisWorker{
		cfg:      cfg,
		ingest:   ingest,
		post:     post,
		client:   client,
		flags:    flags,
		table:    table,
		counters: counters,
		log:      logging.With().Str("component", "analysis").Logger(),
	}
}

// Serve loops until ctx is cancelled. Safe to run from several goroutines
// sharing the same queues and table.
func (w *AnalysisWorker) Serve(ctx context.Context) error {
	for {
		row, err := w.ingest.Get(ctx)
		if err != nil {
			return err
		}
		w.processOne(ctx, row)
	}
}

func (w *AnalysisWorker) processOne(ctx context.Context, row *models.CacheRow) {
	uuid := row.Collected.UUID
	if !w.table.Add(uuid) {
		w.log.Warn().Str("uuid", uuid).Msg("duplicate item already in processing, skipping")
		return
	}
	defer w.table.Remove(uuid)

	if w.client == nil || !w.client.Configured() {
		w.terminate(uuid, models.FlagDrop, "no analyzer configured")
		w.counters.Dropped()
		return
	}

	prompt := w.cfg.SystemPrompt
	if row.Collected.Prompt != "" {
		prompt = row.Collected.Prompt
	}

	timePost := time.Now().UTC()
	reply, err := w.client.Chat(ctx, "analysis", prompt, buildUserMessage(&row.Collected))
	if err != nil {
		w.log.Error().Err(err).Str("uuid", uuid).Msg("analysis call failed")
		w.terminate(uuid, models.FlagError, fmt.Sprintf("analysis call: %v", err))
		w.counters.Errored()
		return
	}

	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		w.log.Warn().Err(err).Str("uuid", uuid).Msg("no JSON object in analysis reply")
		w.terminate(uuid, models.FlagDrop, "unparseable analysis reply")
		w.counters.Dropped()
		return
	}

	processed, err := validation.SanitizeProcessedWithUUID(raw, uuid)
	if err != nil {
		w.log.Warn().Err(err).Str("uuid", uuid).Msg("analysis reply failed validation")
		w.terminate(uuid, models.FlagDrop, fmt.Sprintf("invalid analysis reply: %v", err))
		w.counters.Dropped()
		return
	}

	if strings.TrimSpace(processed.EventText) == "" {
		w.terminate(uuid, models.FlagDrop, "analysis judged item unworthy")
		w.counters.Dropped()
		return
	}

	timeDone := time.Now().UTC()
	item := &models.ArchivedItem{
		ProcessedItem: *processed,
		RawData:       &row.Collected,
		Submitter:     row.Collected.Token,
		Appendix:      row.Appendix,
	}
	item.Appendix.TimePost = &timePost
	item.Appendix.TimeDone = &timeDone
	if class, score, ok := processed.Rate.Max(w.cfg.ExcludedRateClass); ok {
		item.Appendix.MaxRateClass = class
		item.Appendix.MaxRateScore = score
	}

	if err := w.post.Put(ctx, item); err != nil {
		w.log.Error().Err(err).Str("uuid", uuid).Msg("post-process queue rejected item")
		w.terminate(uuid, models.FlagError, "post-process queue full")
		w.counters.Errored()
	}
}

func (w *AnalysisWorker) terminate(uuid string, flag models.ArchivedFlag, reason string) {
	if err := w.flags.MarkArchived(uuid, flag, reason); err != nil {
		w.log.Error().Err(err).Str("uuid", uuid).Msg("failed to flag cache row")
	}
}

// buildUserMessage renders the collected item as the analysis user message:
// a metadata preamble followed by the raw content.
func buildUserMessage(item *models.CollectedItem) string {
	var b strings.Builder
	if item.Title != "" {
		fmt.Fprintf(&b, "TITLE: %s\n", item.Title)
	}
	if len(item.Authors) > 0 {
		fmt.Fprintf(&b, "AUTHORS: %s\n", strings.Join(item.Authors, ", "))
	}
	if item.Informant != "" {
		fmt.Fprintf(&b, "INFORMANT: %s\n", item.Informant)
	}
	if item.PubTime != nil {
		fmt.Fprintf(&b, "PUB_TIME: %s\n", item.PubTime.UTC().Format(time.RFC3339))
	}
	if item.Source != "" {
		fmt.Fprintf(&b, "SOURCE: %s\n", item.Source)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(item.Content)
	return b.String()
}

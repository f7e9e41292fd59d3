// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/models"
	"github.com/osintwire/intelhub/internal/rss"
	"github.com/osintwire/intelhub/internal/validation"
)

// ArchiveStore persists finalized intelligence records.
type ArchiveStore interface {
	Insert(ctx context.Context, item *models.ArchivedItem) error
}

// VectorIndexer adds archived text to the semantic index. Nil when the
// vector index is disabled.
type VectorIndexer interface {
	AddText(ctx context.Context, uuid, text string) error
	Save() error
}

// FeedPublisher receives archived items for the RSS feed.
type FeedPublisher interface {
	AddItem(item rss.Item)
}

// ResultCacher receives archived items for the hot result cache.
type ResultCacher interface {
	Encache(item *models.ArchivedItem)
}

// Broadcaster pushes archived-item notifications to live subscribers.
// Nil when the websocket surface is disabled.
type Broadcaster interface {
	BroadcastArchived(item *models.ArchivedItem)
}

// ArchivalConfig holds archival worker settings.
type ArchivalConfig struct {
	// RSSHostPrefix is prepended to /intelligence/<uuid> to form feed links.
	RSSHostPrefix string
	// VectorSaveEvery snapshots the vector index after this many additions.
	VectorSaveEvery int
}

// ArchivalWorker drains the post-process queue: it re-validates each
// finalized record, persists it to the archive, feeds the vector index,
// and fans the record out to the RSS feed, result cache, and live
// subscribers.
type ArchivalWorker struct {
	cfg      ArchivalConfig
	post     *Queue[*models.ArchivedItem]
	archive  ArchiveStore
	vectors  VectorIndexer
	feed     FeedPublisher
	results  ResultCacher
	live     Broadcaster
	flags    FlagStore
	counters *Counters
	log      zerolog.Logger

	sinceSave int
}

// NewArchivalWorker wires an archival worker. vectors, feed, results, and
// live may each be nil; the corresponding fan-out step is skipped.
func NewArchivalWorker(cfg ArchivalConfig, post *Queue[*models.ArchivedItem], archive ArchiveStore,
	vectors VectorIndexer, feed FeedPublisher, results ResultCacher, live Broadcaster,
	flags FlagStore, counters *Counters) *ArchivalWorker {
	if cfg.VectorSaveEvery <= 0 {
		cfg.VectorSaveEvery = 10
	}
	return &ArchivalWorker{
		cfg:      cfg,
		post:     post,
		archive:  archive,
		vectors:  vectors,
		feed:     feed,
		results:  results,
		live:     live,
		flags:    flags,
		counters: counters,
		log:      logging.With().Str("component", "archival").Logger(),
	}
}

// Serve loops until ctx is cancelled. Run from a single goroutine; the
// archive sequence assigns ordering at insert time.
func (w *ArchivalWorker) Serve(ctx context.Context) error {
	for {
		item, err := w.post.Get(ctx)
		if err != nil {
			return err
		}
		w.archiveOne(ctx, item)
	}
}

func (w *ArchivalWorker) archiveOne(ctx context.Context, item *models.ArchivedItem) {
	uuid := item.UUID

	if err := validation.Struct(item); err != nil {
		w.log.Warn().Err(err).Str("uuid", uuid).Msg("finalized record failed validation")
		w.terminate(uuid, models.FlagError, fmt.Sprintf("invalid finalized record: %v", err))
		w.counters.Errored()
		return
	}

	now := time.Now().UTC()
	item.Appendix.TimeArchived = &now
	item.Appendix.ArchivedFlag = models.FlagArchived

	if err := w.archive.Insert(ctx, item); err != nil {
		w.log.Error().Err(err).Str("uuid", uuid).Msg("archive insert failed")
		w.terminate(uuid, models.FlagError, fmt.Sprintf("archive insert: %v", err))
		w.counters.Errored()
		return
	}

	// Vector indexing is best-effort: a failure degrades semantic search
	// but never loses an archived record.
	if w.vectors != nil {
		if err := w.vectors.AddText(ctx, uuid, item.EventText); err != nil {
			w.log.Warn().Err(err).Str("uuid", uuid).Msg("vector index add failed")
		} else {
			w.sinceSave++
			if w.sinceSave >= w.cfg.VectorSaveEvery {
				if err := w.vectors.Save(); err != nil {
					w.log.Warn().Err(err).Msg("vector index snapshot failed")
				}
				w.sinceSave = 0
			}
		}
	}

	w.terminate(uuid, models.FlagArchived, "")
	w.counters.Archived()

	title := item.EventTitle
	if title == "" {
		title = item.EventBrief
	}
	if w.feed != nil {
		w.feed.AddItem(rss.Item{
			Title:       title,
			Link:        w.cfg.RSSHostPrefix + "/intelligence/" + uuid,
			Description: item.EventBrief,
			GUID:        uuid,
			PubDate:     item.ResolvePubTime(),
		})
	}
	if w.results != nil {
		w.results.Encache(item)
	}
	if w.live != nil {
		w.live.BroadcastArchived(item)
	}

	w.log.Info().
		Str("uuid", uuid).
		Str("title", title).
		Float64("score", item.Appendix.MaxRateScore).
		Msg("item archived")
}

func (w *ArchivalWorker) terminate(uuid string, flag models.ArchivedFlag, reason string) {
	if err := w.flags.MarkArchived(uuid, flag, reason); err != nil {
		w.log.Error().Err(err).Str("uuid", uuid).Msg("failed to flag cache row")
	}
}

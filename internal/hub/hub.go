// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package hub ties the stores, queues, workers, and auxiliary services
// together behind the submission and RPC surface the API layer exposes.
package hub

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/cachestore"
	"github.com/osintwire/intelhub/internal/config"
	"github.com/osintwire/intelhub/internal/keyring"
	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/models"
	"github.com/osintwire/intelhub/internal/pipeline"
	"github.com/osintwire/intelhub/internal/recommend"
	"github.com/osintwire/intelhub/internal/resultcache"
	"github.com/osintwire/intelhub/internal/rss"
	"github.com/osintwire/intelhub/internal/validation"
	"github.com/osintwire/intelhub/internal/vecindex"
)

var (
	// ErrInvalidToken is returned when a submission carries a token outside
	// the allowed set.
	ErrInvalidToken = errors.New("invalid token")
	// ErrBusy is returned when the ingestion queue cannot accept a
	// submission in time; the submitter should retry later.
	ErrBusy = errors.New("hub busy, retry later")
)

// Deps are the wired components a Hub serves. Optional components
// (Rotator, Vectors, Recommender) may be nil.
type Deps struct {
	Loader      *config.Loader
	Cache       *cachestore.Store
	Archive     *archive.DB
	Ingest      *pipeline.Queue[*models.CacheRow]
	Post        *pipeline.Queue[*models.ArchivedItem]
	Table       *pipeline.ProcessingTable
	Counters    *pipeline.Counters
	Results     *resultcache.Cache
	Feed        *rss.Publisher
	Vectors     *vecindex.Index
	Rotator     *keyring.Rotator
	Recommender *recommend.Manager
}

// Hub is the submission and query facade over the pipeline.
type Hub struct {
	deps Deps
	cfg  *config.Config
	log  zerolog.Logger

	running    atomic.Bool
	replayDone atomic.Bool
	rpcMethods map[string]rpcHandler
}

// New builds a hub over the wired components.
func New(deps Deps) *Hub {
	h := &Hub{
		deps: deps,
		cfg:  deps.Loader.Config(),
		log:  logging.With().Str("component", "hub").Logger(),
	}
	h.rpcMethods = h.buildMethodTable()
	return h
}

// SetRunning records whether the pipeline workers are up; reflected in
// Status and the readiness probe.
func (h *Hub) SetRunning(v bool) { h.running.Store(v) }

// SetReplayDone records that the startup replay finished.
func (h *Hub) SetReplayDone() { h.replayDone.Store(true) }

// Ready reports whether the hub can accept traffic: replay finished and
// the archive store answers.
func (h *Hub) Ready(ctx context.Context) bool {
	if !h.replayDone.Load() {
		return false
	}
	return h.deps.Archive.Ping(ctx) == nil
}

// tokenAllowed checks a submitted token against an allowed set. An empty
// set denies everything when DenyOnEmpty is set, otherwise allows all.
func (h *Hub) tokenAllowed(token string, allowed []string) bool {
	if len(allowed) == 0 {
		return !h.cfg.Auth.DenyOnEmpty
	}
	for _, t := range allowed {
		if token != "" && token == t {
			return true
		}
	}
	return false
}

// SubmitCollected accepts a raw collected submission body: sanitize,
// authenticate, persist to the cache store, and enqueue for analysis.
// The returned UUID identifies the item even when it was auto-generated.
func (h *Hub) SubmitCollected(ctx context.Context, body []byte) (*models.SubmitResponse, error) {
	item, err := validation.SanitizeCollected(body)
	if err != nil {
		return &models.SubmitResponse{Resp: models.RespError}, err
	}

	if !h.tokenAllowed(item.Token, h.cfg.Auth.CollectorTokens) {
		h.log.Warn().Str("uuid", item.UUID).Msg("collected submission with invalid token")
		return &models.SubmitResponse{Resp: models.RespInvalidToken}, ErrInvalidToken
	}

	row, err := h.deps.Cache.Insert(item)
	if err != nil {
		if errors.Is(err, cachestore.ErrDuplicate) {
			// Re-submission of a known item is acknowledged, not re-queued.
			h.log.Debug().Str("uuid", item.UUID).Msg("duplicate submission acknowledged")
			return &models.SubmitResponse{Resp: models.RespQueued, UUID: item.UUID}, nil
		}
		return &models.SubmitResponse{Resp: models.RespError, UUID: item.UUID}, err
	}

	if err := h.deps.Ingest.Put(ctx, row); err != nil {
		// The row stays in the cache without a terminal flag; the next
		// startup replay will pick it up even if the submitter never
		// retries.
		if errors.Is(err, pipeline.ErrQueueFull) {
			h.log.Warn().Str("uuid", item.UUID).Msg("ingestion queue full, deferring to replay")
			return &models.SubmitResponse{Resp: models.RespError, UUID: item.UUID}, ErrBusy
		}
		return &models.SubmitResponse{Resp: models.RespError, UUID: item.UUID}, err
	}

	h.deps.Counters.Accepted()
	return &models.SubmitResponse{Resp: models.RespQueued, UUID: item.UUID}, nil
}

// SubmitProcessed accepts an externally-analyzed record, bypassing the
// analysis step: authenticate, persist a cache row for crash bookkeeping,
// and enqueue straight onto the post-process queue.
func (h *Hub) SubmitProcessed(ctx context.Context, body []byte, token string) (*models.SubmitResponse, error) {
	if !h.tokenAllowed(token, h.cfg.Auth.ProcessorTokens) {
		h.log.Warn().Msg("processed submission with invalid token")
		return &models.SubmitResponse{Resp: models.RespInvalidToken}, ErrInvalidToken
	}

	item, err := validation.SanitizeProcessed(body)
	if err != nil {
		return &models.SubmitResponse{Resp: models.RespError}, err
	}

	collected := &models.CollectedItem{
		UUID:    item.UUID,
		Token:   token,
		Content: item.EventText,
	}
	row, err := h.deps.Cache.Insert(collected)
	if err != nil {
		if errors.Is(err, cachestore.ErrDuplicate) {
			return &models.SubmitResponse{Resp: models.RespQueued, UUID: item.UUID}, nil
		}
		return &models.SubmitResponse{Resp: models.RespError, UUID: item.UUID}, err
	}

	now := time.Now().UTC()
	archived := &models.ArchivedItem{
		ProcessedItem: *item,
		RawData:       collected,
		Submitter:     token,
		Appendix:      row.Appendix,
	}
	archived.Appendix.TimePost = &now
	archived.Appendix.TimeDone = &now
	if class, score, ok := item.Rate.Max(h.cfg.Pipeline.ExcludedRateClass); ok {
		archived.Appendix.MaxRateClass = class
		archived.Appendix.MaxRateScore = score
	}

	if err := h.deps.Post.Put(ctx, archived); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			return &models.SubmitResponse{Resp: models.RespError, UUID: item.UUID}, ErrBusy
		}
		return &models.SubmitResponse{Resp: models.RespError, UUID: item.UUID}, err
	}

	h.deps.Counters.Accepted()
	return &models.SubmitResponse{Resp: models.RespQueued, UUID: item.UUID}, nil
}

// RPCTokenAllowed checks a token against the RPC API token set. The read
// endpoints outside POST /api share this check.
func (h *Hub) RPCTokenAllowed(token string) bool {
	return h.tokenAllowed(token, h.cfg.Auth.RPCAPITokens)
}

// GetIntelligence returns an archived record, served from the hot result
// cache when present, else from the archive store.
func (h *Hub) GetIntelligence(ctx context.Context, uuid string) (*models.ArchivedItem, error) {
	hits := h.deps.Results.Get(func(it *models.ArchivedItem) bool { return it.UUID == uuid }, nil, 1)
	if len(hits) == 1 {
		if item, ok := hits[0].(*models.ArchivedItem); ok {
			return item, nil
		}
	}
	return h.deps.Archive.Get(ctx, uuid)
}

// Status assembles the hub's observable state snapshot.
func (h *Hub) Status() models.HubStatus {
	st := models.HubStatus{
		Running:        h.running.Load(),
		IngestQueue:    h.deps.Ingest.Len(),
		PostQueue:      h.deps.Post.Len(),
		InProcessing:   h.deps.Table.Len(),
		Counters:       h.deps.Counters.Snapshot(),
		ResultCacheLen: h.deps.Results.Len(),
	}
	if h.deps.Rotator != nil {
		st.Keyring = h.deps.Rotator.Status()
	}
	return st
}

// Feed returns the RSS publisher for the feed endpoint.
func (h *Hub) Feed() *rss.Publisher { return h.deps.Feed }

// Archive returns the archive store for the read endpoints.
func (h *Hub) Archive() *archive.DB { return h.deps.Archive }

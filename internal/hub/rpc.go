// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/cachestore"
	"github.com/osintwire/intelhub/internal/models"
)

// RPC dispatch statuses.
const (
	RPCStatusOK    = "ok"
	RPCStatusError = "error"
)

type rpcHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Dispatch executes one RPC request against the method table. Every reply
// is an RPCResponse; transport-level errors never escape.
func (h *Hub) Dispatch(ctx context.Context, req *models.RPCRequest) *models.RPCResponse {
	if !h.tokenAllowed(req.Token, h.cfg.Auth.RPCAPITokens) {
		return &models.RPCResponse{Status: RPCStatusError, Reason: models.RespInvalidToken}
	}

	handler, ok := h.rpcMethods[req.Method]
	if !ok {
		return &models.RPCResponse{Status: RPCStatusError, Reason: fmt.Sprintf("unknown method %q", req.Method)}
	}

	data, err := handler(ctx, req.Params)
	if err != nil {
		h.log.Warn().Err(err).Str("method", req.Method).Msg("rpc method failed")
		return &models.RPCResponse{Status: RPCStatusError, Reason: err.Error()}
	}
	return &models.RPCResponse{Status: RPCStatusOK, Data: data}
}

// Methods lists the dispatchable method names.
func (h *Hub) Methods() []string {
	names := make([]string, 0, len(h.rpcMethods))
	for name := range h.rpcMethods {
		names = append(names, name)
	}
	return names
}

func (h *Hub) buildMethodTable() map[string]rpcHandler {
	return map[string]rpcHandler{
		"hub.status":       h.rpcStatus,
		"hub.counters":     h.rpcCounters,
		"keyring.status":   h.rpcKeyringStatus,
		"query.get":        h.rpcQueryGet,
		"query.find":       h.rpcQueryFind,
		"query.summary":    h.rpcQuerySummary,
		"query.paginate":   h.rpcQueryPaginate,
		"cache.get":        h.rpcCacheGet,
		"recommend.latest": h.rpcRecommendLatest,
		"recommend.count":  h.rpcRecommendCount,
		"stats.archive":    h.rpcStatsArchive,
		"stats.scores":     h.rpcStatsScores,
		"stats.informants": h.rpcStatsInformants,
		"config.get":       h.rpcConfigGet,
		"vector.search":    h.rpcVectorSearch,
	}
}

func (h *Hub) rpcStatus(context.Context, json.RawMessage) (interface{}, error) {
	return h.Status(), nil
}

func (h *Hub) rpcCounters(context.Context, json.RawMessage) (interface{}, error) {
	return h.deps.Counters.Snapshot(), nil
}

func (h *Hub) rpcKeyringStatus(context.Context, json.RawMessage) (interface{}, error) {
	if h.deps.Rotator == nil {
		return models.KeyringStatus{}, nil
	}
	return h.deps.Rotator.Status(), nil
}

type uuidParams struct {
	UUID string `json:"uuid"`
}

func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return errors.New("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("malformed params: %w", err)
	}
	return nil
}

func (h *Hub) rpcQueryGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p uuidParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	item, err := h.GetIntelligence(ctx, p.UUID)
	if errors.Is(err, archive.ErrNotFound) {
		return nil, fmt.Errorf("no archived record for %s", p.UUID)
	}
	return item, err
}

func (h *Hub) rpcQueryFind(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var f archive.Filter
	if err := decodeParams(params, &f); err != nil {
		return nil, err
	}
	return h.deps.Archive.Find(ctx, &f)
}

func (h *Hub) rpcQuerySummary(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return h.deps.Archive.GetSummary(ctx)
}

func (h *Hub) rpcQueryPaginate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		BaseUUID string `json:"base_uuid"`
		Skip     int    `json:"skip"`
		Limit    int    `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return h.deps.Archive.Paginate(ctx, p.BaseUUID, p.Skip, p.Limit)
}

func (h *Hub) rpcCacheGet(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p uuidParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	row, err := h.deps.Cache.Get(p.UUID)
	if errors.Is(err, cachestore.ErrNotFound) {
		return nil, fmt.Errorf("no cache row for %s", p.UUID)
	}
	return row, err
}

func (h *Hub) rpcRecommendLatest(context.Context, json.RawMessage) (interface{}, error) {
	if h.deps.Recommender == nil {
		return nil, errors.New("recommendations disabled")
	}
	return h.deps.Recommender.Latest(), nil
}

func (h *Hub) rpcRecommendCount(_ context.Context, params json.RawMessage) (interface{}, error) {
	if h.deps.Recommender == nil {
		return nil, errors.New("recommendations disabled")
	}
	p := struct {
		Period time.Duration `json:"period"`
	}{Period: 24 * time.Hour}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("malformed params: %w", err)
		}
	}
	return h.deps.Recommender.CountIntelligence(p.Period), nil
}

type statsParams struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Bucket string    `json:"bucket"`
	N      int       `json:"n"`
}

func (p *statsParams) normalize() {
	if p.End.IsZero() {
		p.End = time.Now().UTC()
	}
	if p.Start.IsZero() {
		p.Start = p.End.Add(-30 * 24 * time.Hour)
	}
	if p.Bucket == "" {
		p.Bucket = string(archive.BucketDay)
	}
	if p.N <= 0 {
		p.N = 10
	}
}

func decodeStatsParams(params json.RawMessage) (*statsParams, error) {
	var p statsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("malformed params: %w", err)
		}
	}
	p.normalize()
	return &p, nil
}

func (h *Hub) rpcStatsArchive(ctx context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decodeStatsParams(params)
	if err != nil {
		return nil, err
	}
	return h.deps.Archive.CountByPeriod(ctx, p.Start, p.End, archive.Bucket(p.Bucket))
}

func (h *Hub) rpcStatsScores(ctx context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decodeStatsParams(params)
	if err != nil {
		return nil, err
	}
	return h.deps.Archive.ScoreDistribution(ctx, p.Start, p.End)
}

func (h *Hub) rpcStatsInformants(ctx context.Context, params json.RawMessage) (interface{}, error) {
	p, err := decodeStatsParams(params)
	if err != nil {
		return nil, err
	}
	return h.deps.Archive.TopInformants(ctx, p.Start, p.End, p.N)
}

func (h *Hub) rpcConfigGet(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Key string `json:"key"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if isSensitiveKey(p.Key) {
		return nil, fmt.Errorf("key %q is not readable", p.Key)
	}
	v := h.deps.Loader.Get(p.Key)
	if v == nil {
		return nil, fmt.Errorf("unknown config key %q", p.Key)
	}
	return v, nil
}

// isSensitiveKey guards token and credential material from the config
// read surface.
func isSensitiveKey(key string) bool {
	switch key {
	case "llm.token", "auth.rpc_api_tokens", "auth.collector_tokens", "auth.processor_tokens", "keyring.path":
		return true
	}
	return false
}

func (h *Hub) rpcVectorSearch(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if h.deps.Vectors == nil {
		return nil, errors.New("vector index disabled")
	}
	p := struct {
		Text      string  `json:"text"`
		TopN      int     `json:"top_n"`
		Threshold float64 `json:"threshold"`
	}{TopN: h.cfg.Vector.SearchTopN, Threshold: h.cfg.Vector.SearchThreshold}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Text == "" {
		return nil, errors.New("empty search text")
	}
	return h.deps.Vectors.Search(ctx, p.Text, p.TopN, p.Threshold)
}

// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package hub

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/cachestore"
	"github.com/osintwire/intelhub/internal/config"
	"github.com/osintwire/intelhub/internal/models"
	"github.com/osintwire/intelhub/internal/pipeline"
	"github.com/osintwire/intelhub/internal/resultcache"
	"github.com/osintwire/intelhub/internal/rss"
)

func testHub(t *testing.T) *Hub {
	t.Helper()

	loader, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	loader.Config().Auth.CollectorTokens = []string{"collector-token"}
	loader.Config().Auth.ProcessorTokens = []string{"processor-token"}
	loader.Config().Auth.RPCAPITokens = []string{"api-token"}

	cache, err := cachestore.Open(cachestore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	db, err := archive.Open(archive.Config{Path: filepath.Join(t.TempDir(), "test.duckdb")})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var counters pipeline.Counters
	return New(Deps{
		Loader:   loader,
		Cache:    cache,
		Archive:  db,
		Ingest:   pipeline.NewQueue[*models.CacheRow]("ingest", 4, 50*time.Millisecond),
		Post:     pipeline.NewQueue[*models.ArchivedItem]("post", 4, 50*time.Millisecond),
		Table:    pipeline.NewProcessingTable(),
		Counters: &counters,
		Results:  resultcache.New(resultcache.Config{}),
		Feed:     rss.New(10),
	})
}

func TestSubmitCollected(t *testing.T) {
	h := testHub(t)

	body := []byte(`{"token": "collector-token", "content": "raw intel text"}`)
	resp, err := h.SubmitCollected(context.Background(), body)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Resp != models.RespQueued {
		t.Errorf("expected queued, got %q", resp.Resp)
	}
	if resp.UUID == "" {
		t.Error("expected auto-generated uuid in response")
	}
	if h.deps.Ingest.Len() != 1 {
		t.Errorf("expected 1 queued item, got %d", h.deps.Ingest.Len())
	}

	// the row must be durably cached before queuing
	if _, err := h.deps.Cache.Get(resp.UUID); err != nil {
		t.Errorf("expected cache row for %s: %v", resp.UUID, err)
	}
}

func TestSubmitCollected_InvalidToken(t *testing.T) {
	h := testHub(t)

	body := []byte(`{"token": "wrong", "content": "raw intel text"}`)
	resp, err := h.SubmitCollected(context.Background(), body)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if resp.Resp != models.RespInvalidToken {
		t.Errorf("expected invalid token response, got %q", resp.Resp)
	}
	if h.deps.Ingest.Len() != 0 {
		t.Error("rejected submission must not be queued")
	}
}

func TestSubmitCollected_Malformed(t *testing.T) {
	h := testHub(t)
	if _, err := h.SubmitCollected(context.Background(), []byte(`{"token": "collector-token"}`)); err == nil {
		t.Fatal("expected validation error for missing content")
	}
}

func TestSubmitCollected_Duplicate(t *testing.T) {
	h := testHub(t)

	body := []byte(`{"uuid": "u1", "token": "collector-token", "content": "text"}`)
	if _, err := h.SubmitCollected(context.Background(), body); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	resp, err := h.SubmitCollected(context.Background(), body)
	if err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if resp.Resp != models.RespQueued {
		t.Errorf("duplicate must be acknowledged, got %q", resp.Resp)
	}
	if h.deps.Ingest.Len() != 1 {
		t.Errorf("duplicate must not be re-queued, depth %d", h.deps.Ingest.Len())
	}
}

func TestSubmitProcessed(t *testing.T) {
	h := testHub(t)

	body := []byte(`{
		"UUID": "p1",
		"EVENT_TITLE": "External analysis",
		"EVENT_TEXT": "Pre-analyzed intel.",
		"RATE": {"significance": 6}
	}`)
	resp, err := h.SubmitProcessed(context.Background(), body, "processor-token")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Resp != models.RespQueued || resp.UUID != "p1" {
		t.Errorf("unexpected response %+v", resp)
	}

	item, err := h.deps.Post.Get(context.Background())
	if err != nil {
		t.Fatalf("post queue empty: %v", err)
	}
	if item.UUID != "p1" || item.Submitter != "processor-token" {
		t.Errorf("unexpected queued item %+v", item)
	}
	if item.Appendix.MaxRateScore != 6 {
		t.Errorf("expected max rate precomputed, got %v", item.Appendix.MaxRateScore)
	}
}

func TestSubmitProcessed_InvalidToken(t *testing.T) {
	h := testHub(t)
	if _, err := h.SubmitProcessed(context.Background(), []byte(`{}`), "wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDispatch_TokenCheck(t *testing.T) {
	h := testHub(t)

	resp := h.Dispatch(context.Background(), &models.RPCRequest{Method: "hub.status", Token: "wrong"})
	if resp.Status != RPCStatusError || resp.Reason != models.RespInvalidToken {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	h := testHub(t)

	resp := h.Dispatch(context.Background(), &models.RPCRequest{Method: "nope", Token: "api-token"})
	if resp.Status != RPCStatusError {
		t.Errorf("expected error status, got %+v", resp)
	}
}

func TestDispatch_Status(t *testing.T) {
	h := testHub(t)
	h.SetRunning(true)

	resp := h.Dispatch(context.Background(), &models.RPCRequest{Method: "hub.status", Token: "api-token"})
	if resp.Status != RPCStatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	st, ok := resp.Data.(models.HubStatus)
	if !ok {
		t.Fatalf("unexpected data type %T", resp.Data)
	}
	if !st.Running {
		t.Error("expected running status")
	}
}

func TestDispatch_QuerySummary(t *testing.T) {
	h := testHub(t)

	now := time.Now().UTC()
	item := &models.ArchivedItem{
		ProcessedItem: models.ProcessedItem{UUID: "a1", EventText: "text"},
		Appendix:      models.Appendix{TimeArchived: &now},
	}
	if err := h.deps.Archive.Insert(context.Background(), item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	resp := h.Dispatch(context.Background(), &models.RPCRequest{Method: "query.summary", Token: "api-token"})
	if resp.Status != RPCStatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	summary, ok := resp.Data.(*archive.Summary)
	if !ok {
		t.Fatalf("unexpected data type %T", resp.Data)
	}
	if summary.Total != 1 || summary.NewestUUID != "a1" {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestDispatch_QueryGet(t *testing.T) {
	h := testHub(t)

	now := time.Now().UTC()
	item := &models.ArchivedItem{
		ProcessedItem: models.ProcessedItem{UUID: "a1", EventTitle: "title", EventText: "text"},
		Appendix:      models.Appendix{TimeArchived: &now},
	}
	if err := h.deps.Archive.Insert(context.Background(), item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	params, _ := json.Marshal(map[string]string{"uuid": "a1"})
	resp := h.Dispatch(context.Background(), &models.RPCRequest{
		Method: "query.get", Params: params, Token: "api-token",
	})
	if resp.Status != RPCStatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	got, ok := resp.Data.(*models.ArchivedItem)
	if !ok {
		t.Fatalf("unexpected data type %T", resp.Data)
	}
	if got.EventTitle != "title" {
		t.Errorf("unexpected item %+v", got)
	}
}

func TestDispatch_ConfigGet(t *testing.T) {
	h := testHub(t)

	params, _ := json.Marshal(map[string]string{"key": "pipeline.ingest_capacity"})
	resp := h.Dispatch(context.Background(), &models.RPCRequest{
		Method: "config.get", Params: params, Token: "api-token",
	})
	if resp.Status != RPCStatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}

	// sensitive keys are not readable
	params, _ = json.Marshal(map[string]string{"key": "llm.token"})
	resp = h.Dispatch(context.Background(), &models.RPCRequest{
		Method: "config.get", Params: params, Token: "api-token",
	})
	if resp.Status != RPCStatusError {
		t.Error("expected sensitive key to be refused")
	}
}

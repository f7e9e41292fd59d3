// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/cachestore"
	"github.com/osintwire/intelhub/internal/config"
	"github.com/osintwire/intelhub/internal/hub"
	"github.com/osintwire/intelhub/internal/models"
	"github.com/osintwire/intelhub/internal/pipeline"
	"github.com/osintwire/intelhub/internal/resultcache"
	"github.com/osintwire/intelhub/internal/rss"
)

func testServer(t *testing.T) (*Server, *hub.Hub) {
	t.Helper()

	loader, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg := loader.Config()
	cfg.Auth.CollectorTokens = []string{"collector-token"}
	cfg.Auth.ProcessorTokens = []string{"processor-token"}
	cfg.Auth.RPCAPITokens = []string{"api-token"}

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
	h := hub.New(hub.Deps{
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
	return NewServer(cfg.Server, cfg.RSS, h, NewLiveFeed()), h
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestCollectEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/collect",
		`{"token": "collector-token", "content": "field report"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Resp != models.RespQueued || resp.UUID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCollectEndpoint_InvalidToken(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/collect",
		`{"token": "wrong", "content": "field report"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var resp models.SubmitResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Resp != models.RespInvalidToken {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestProcessedEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/processed",
		strings.NewReader(`{"UUID": "p1", "EVENT_TEXT": "pre-analyzed"}`))
	req.Header.Set("Authorization", "Bearer processor-token")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRPCEndpoint(t *testing.T) {
	srv, h := testServer(t)
	h.SetRunning(true)

	rec := doRequest(t, srv, http.MethodPost, "/api",
		`{"method": "hub.status", "token": "api-token"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string           `json:"status"`
		Data   models.HubStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != hub.RPCStatusOK || !resp.Data.Running {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRPCEndpoint_InvalidToken(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api",
		`{"method": "hub.status", "token": "wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestFeedEndpoint(t *testing.T) {
	srv, h := testServer(t)
	h.Feed().AddItem(rss.Item{
		Title: "Port closure", Link: "http://hub/intelligence/u1",
		GUID: "u1", PubDate: time.Now(),
	})

	rec := doRequest(t, srv, http.MethodGet, "/rssfeed.xml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "rss+xml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Port closure") {
		t.Error("expected item title in feed")
	}
}

func TestIntelligenceEndpoint(t *testing.T) {
	srv, h := testServer(t)

	now := time.Now().UTC()
	item := &models.ArchivedItem{
		ProcessedItem: models.ProcessedItem{UUID: "a1", EventTitle: "title", EventText: "text"},
		Appendix:      models.Appendix{TimeArchived: &now},
	}
	if err := h.Archive().Insert(context.Background(), item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/intelligence/a1?token=api-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/intelligence/missing?token=api-token", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	// the read surface requires the rpc token
	rec = doRequest(t, srv, http.MethodGet, "/intelligence/a1", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, h := testServer(t)

	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health: status %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("live: status %d", rec.Code)
	}

	// not ready until replay is done
	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/health/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before replay: status %d", rec.Code)
	}
	h.SetReplayDone()
	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/health/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("ready after replay: status %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "intelhub_") {
		t.Error("expected intelhub metrics in exposition")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/status?token=api-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var st models.HubStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/status", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestStatisticsEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{
		"/statistics/archive?token=api-token",
		"/statistics/scores?token=api-token",
		"/statistics/informants?token=api-token",
	} {
		if rec := doRequest(t, srv, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("%s: status %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

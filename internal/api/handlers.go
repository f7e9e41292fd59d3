// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/hub"
	"github.com/osintwire/intelhub/internal/models"
)

// maxBodyBytes caps submission bodies.
const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, models.SubmitResponse{Resp: models.RespError})
		return nil, false
	}
	return body, true
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	resp, err := s.hub.SubmitCollected(r.Context(), body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, hub.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, resp)
	case errors.Is(err, hub.ErrBusy):
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeJSON(w, http.StatusBadRequest, resp)
	}
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	token := r.Header.Get("Authorization")
	token = trimBearer(token)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	resp, err := s.hub.SubmitProcessed(r.Context(), body, token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, hub.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, resp)
	case errors.Is(err, hub.ErrBusy):
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeJSON(w, http.StatusBadRequest, resp)
	}
}

func trimBearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return h
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req models.RPCRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Method == "" {
		writeJSON(w, http.StatusBadRequest, models.RPCResponse{
			Status: hub.RPCStatusError, Reason: "malformed request",
		})
		return
	}

	resp := s.hub.Dispatch(r.Context(), &req)
	status := http.StatusOK
	if resp.Status != hub.RPCStatusOK {
		if resp.Reason == models.RespInvalidToken {
			status = http.StatusUnauthorized
		} else {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := s.hub.Feed().GenerateFeed(s.rss.ChannelTitle, s.rss.HostPrefix, s.rss.ChannelDesc)
	if err != nil {
		http.Error(w, "feed generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(feed)
}

func (s *Server) handleIntelligence(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	item, err := s.hub.GetIntelligence(r.Context(), uuid)
	if errors.Is(err, archive.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "archive lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// statsRange parses the optional start/end query parameters; defaults to
// the last 30 days.
func statsRange(r *http.Request) (time.Time, time.Time) {
	end := time.Now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			end = t
		}
	}
	start := end.Add(-30 * 24 * time.Hour)
	if v := r.URL.Query().Get("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			start = t
		}
	}
	return start, end
}

func (s *Server) handleStatsArchive(w http.ResponseWriter, r *http.Request) {
	start, end := statsRange(r)
	bucket := archive.Bucket(r.URL.Query().Get("bucket"))
	if bucket == "" {
		bucket = archive.BucketDay
	}
	counts, err := s.hub.Archive().CountByPeriod(r.Context(), start, end, bucket)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleStatsScores(w http.ResponseWriter, r *http.Request) {
	start, end := statsRange(r)
	dist, err := s.hub.Archive().ScoreDistribution(r.Context(), start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (s *Server) handleStatsInformants(w http.ResponseWriter, r *http.Request) {
	start, end := statsRange(r)
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	top, err := s.hub.Archive().TopInformants(r.Context(), start, end, n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.hub.Ready(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

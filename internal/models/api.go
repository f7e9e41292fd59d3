// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package models

import (
	"github.com/goccy/go-json"
)

// SubmitResponse is the reply shape for /collect and /processed.
type SubmitResponse struct {
	Resp string `json:"resp"`
	UUID string `json:"uuid"`
}

// Submission outcomes carried in SubmitResponse.Resp.
const (
	RespQueued       = "queued"
	RespError        = "error"
	RespInvalidToken = "invalid token"
)

// RPCRequest is the generic dispatch envelope accepted on POST /api.
type RPCRequest struct {
	Method string          `json:"method" validate:"required"`
	Params json.RawMessage `json:"params,omitempty"`
	Token  string          `json:"token"`
}

// RPCResponse is the generic dispatch reply envelope.
type RPCResponse struct {
	Status string      `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// HubCounters are the per-session outcome counters. Accepted equals the
// sum of queued, in-flight, and terminal outcomes at any instant.
type HubCounters struct {
	Accepted int64 `json:"accepted"`
	Archived int64 `json:"archived"`
	Dropped  int64 `json:"dropped"`
	Errored  int64 `json:"errored"`
}

// HubStatus is the hub's observable state snapshot.
type HubStatus struct {
	Running        bool          `json:"running"`
	IngestQueue    int           `json:"ingest_queue"`
	PostQueue      int           `json:"post_queue"`
	InProcessing   int           `json:"in_processing"`
	Counters       HubCounters   `json:"counters"`
	Keyring        KeyringStatus `json:"keyring"`
	ResultCacheLen int           `json:"result_cache_len"`
}

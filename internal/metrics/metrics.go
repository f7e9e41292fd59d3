// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the hub:
// - pipeline throughput and queue pressure
// - LLM call latency and key balance
// - store operation latency
// - API endpoint latency and throughput

var (
	// Pipeline metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intelhub_queue_depth",
			Help: "Current number of items in a pipeline queue",
		},
		[]string{"queue"}, // "ingest", "post"
	)

	ItemsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelhub_items_accepted_total",
			Help: "Total number of submissions accepted into the pipeline",
		},
	)

	ItemsOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelhub_items_outcome_total",
			Help: "Total number of items reaching a terminal outcome",
		},
		[]string{"outcome"}, // "archived", "dropped", "error"
	)

	InProcessing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelhub_items_in_processing",
			Help: "Number of items currently held by the analysis worker",
		},
	)

	ReplayedItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelhub_replayed_items_total",
			Help: "Total number of unflagged cache rows replayed at startup",
		},
	)

	// LLM metrics
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelhub_llm_call_duration_seconds",
			Help:    "Duration of LLM calls in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "status"}, // kind: "analysis", "recommend", "embedding"
	)

	LLMRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intelhub_llm_retries_total",
			Help: "Total number of retried LLM calls",
		},
	)

	KeyBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelhub_key_balance",
			Help: "Balance of the currently active LLM key",
		},
	)

	UsableKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelhub_usable_keys",
			Help: "Number of non-disabled keys in the keyring",
		},
	)

	// Store metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelhub_store_op_duration_seconds",
			Help:    "Duration of cache/archive store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"}, // store: "cache", "archive", "crawl"
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelhub_store_op_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"store", "operation"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intelhub_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intelhub_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelhub_websocket_clients",
			Help: "Number of connected websocket live-feed clients",
		},
	)

	RSSRevision = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intelhub_rss_revision",
			Help: "Current RSS feed revision counter",
		},
	)
)

// ObserveStoreOp records one store operation's duration and outcome.
func ObserveStoreOp(store, operation string, start time.Time, err error) {
	StoreOpDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreOpErrors.WithLabelValues(store, operation).Inc()
	}
}

// ObserveAPIRequest records one HTTP request.
func ObserveAPIRequest(method, path string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}

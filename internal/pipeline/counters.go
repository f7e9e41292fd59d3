// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/osintwire/intelhub/internal/metrics"
	"github.com/osintwire/intelhub/internal/models"
)

// Counters are the per-session outcome counters. At any instant, accepted
// equals queued + in-flight + archived + dropped + errored.
type Counters struct {
	accepted atomic.Int64
	archived atomic.Int64
	dropped  atomic.Int64
	errored  atomic.Int64
}

// Accepted records one accepted submission.
func (c *Counters) Accepted() {
	c.accepted.Add(1)
	metrics.ItemsAccepted.Inc()
}

// Archived records one archived outcome.
func (c *Counters) Archived() {
	c.archived.Add(1)
	metrics.ItemsOutcome.WithLabelValues("archived").Inc()
}

// Dropped records one dropped outcome.
func (c *Counters) Dropped() {
	c.dropped.Add(1)
	metrics.ItemsOutcome.WithLabelValues("dropped").Inc()
}

// Errored records one errored outcome.
func (c *Counters) Errored() {
	c.errored.Add(1)
	metrics.ItemsOutcome.WithLabelValues("error").Inc()
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() models.HubCounters {
	return models.HubCounters{
		Accepted: c.accepted.Load(),
		Archived: c.archived.Load(),
		Dropped:  c.dropped.Load(),
		Errored:  c.errored.Load(),
	}
}

// ProcessingTable tracks items currently held by analysis workers, keyed
// by UUID. The lock is never held across the LLM call.
type ProcessingTable struct {
	mu sync.Mutex
	m  map[string]time.Time
}

// NewProcessingTable creates an empty table.
func NewProcessingTable() *ProcessingTable {
	return &ProcessingTable{m: map[string]time.Time{}}
}

// Add registers a UUID as in-flight. Returns false when the UUID was
// already present (duplicate in-flight).
func (t *ProcessingTable) Add(uuid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.m[uuid]; dup {
		return false
	}
	t.m[uuid] = time.Now()
	metrics.InProcessing.Set(float64(len(t.m)))
	return true
}

// Remove unregisters a UUID.
func (t *ProcessingTable) Remove(uuid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, uuid)
	metrics.InProcessing.Set(float64(len(t.m)))
}

// Len returns the number of in-flight items.
func (t *ProcessingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

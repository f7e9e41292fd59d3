// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package resultcache keeps an in-memory, time- and count-bounded view of
// recent high-scoring archived items, sorted by archival time descending.
package resultcache

import (
	"sort"
	"sync"
	"time"

	"github.com/osintwire/intelhub/internal/models"
)

// Config holds result cache settings.
type Config struct {
	// CountLimit caps the number of cached items.
	CountLimit int
	// PeriodLimit caps item age relative to the newest archival time.
	PeriodLimit time.Duration
	// ScoreThreshold is the minimum MAX_RATE_SCORE for admission.
	ScoreThreshold float64
}

// Cache is the bounded sorted view. Thread-safe under a single mutex.
type Cache struct {
	cfg Config

	mu    sync.Mutex
	items []*models.ArchivedItem // TIME_ARCHIVED descending
}

// New creates an empty cache.
func New(cfg Config) *Cache {
	if cfg.CountLimit <= 0 {
		cfg.CountLimit = 200
	}
	return &Cache{cfg: cfg}
}

func archivedTime(item *models.ArchivedItem) time.Time {
	if item.Appendix.TimeArchived == nil {
		return time.Time{}
	}
	return *item.Appendix.TimeArchived
}

// Encache inserts the item in sorted position when its score clears the
// threshold, then evicts from the tail until both the count and age caps
// hold. Insertion order does not matter: any order yields the same final
// list as inserting in time order.
func (c *Cache) Encache(item *models.ArchivedItem) {
	if item.Appendix.MaxRateScore < c.cfg.ScoreThreshold {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	at := archivedTime(item)
	// binary search for the first entry older than the new item
	idx := sort.Search(len(c.items), func(i int) bool {
		return archivedTime(c.items[i]).Before(at)
	})
	c.items = append(c.items, nil)
	copy(c.items[idx+1:], c.items[idx:])
	c.items[idx] = item

	c.evictLocked()
}

// evictLocked trims the tail to the count cap and drops entries older than
// the age cap measured from the newest entry. Caller holds the lock.
func (c *Cache) evictLocked() {
	if len(c.items) > c.cfg.CountLimit {
		c.items = c.items[:c.cfg.CountLimit]
	}
	if c.cfg.PeriodLimit <= 0 || len(c.items) == 0 {
		return
	}
	cutoff := archivedTime(c.items[0]).Add(-c.cfg.PeriodLimit)
	for len(c.items) > 0 && archivedTime(c.items[len(c.items)-1]).Before(cutoff) {
		c.items = c.items[:len(c.items)-1]
	}
}

// Install replaces the cache contents with items loaded from the archive;
// they are sorted and trimmed to the caps.
func (c *Cache) Install(items []*models.ArchivedItem) {
	sorted := make([]*models.ArchivedItem, 0, len(items))
	for _, it := range items {
		if it.Appendix.MaxRateScore >= c.cfg.ScoreThreshold {
			sorted = append(sorted, it)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return archivedTime(sorted[i]).After(archivedTime(sorted[j]))
	})

	c.mu.Lock()
	c.items = sorted
	c.evictLocked()
	c.mu.Unlock()
}

// Len returns the current item count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Get returns a filtered, mapped snapshot, newest first, terminating early
// at limit. A nil filter accepts everything; a nil mapFn returns items
// unchanged. Limit <= 0 means no limit.
func (c *Cache) Get(filter func(*models.ArchivedItem) bool, mapFn func(*models.ArchivedItem) interface{}, limit int) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []interface{}
	for _, it := range c.items {
		if filter != nil && !filter(it) {
			continue
		}
		if mapFn != nil {
			out = append(out, mapFn(it))
		} else {
			out = append(out, it)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package crawlrec provides the per-URL crawl status store shared with
// upstream crawler plugins: durable Badger rows fronted by a small bounded
// in-memory cache with insertion-order FIFO eviction.
package crawlrec

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/metrics"
	"github.com/osintwire/intelhub/internal/models"
)

const (
	keyPrefix        = "crawl:"
	defaultCacheSize = 1000
)

// Config holds crawl record store settings.
type Config struct {
	Path      string
	CacheSize int
	// InMemory runs badger without files. Tests only.
	InMemory bool
}

// Store is the crawl record store. All public operations serialize through
// a single lock; the in-memory cache is consulted first for reads.
type Store struct {
	db  *badger.DB
	log zerolog.Logger

	mu        sync.Mutex
	cache     map[string]*models.CrawlRecord
	fifo      []string // insertion order for eviction
	cacheSize int
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open crawl record store: %w", err)
	}

	return &Store{
		db:        db,
		log:       logging.With().Str("component", "crawlrec").Logger(),
		cache:     make(map[string]*models.CrawlRecord, size),
		cacheSize: size,
	}, nil
}

// Close shuts down the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func rowKey(url string) []byte { return []byte(keyPrefix + url) }

// encache stores a record in the in-memory cache, evicting the oldest
// insertion on overflow. Caller holds the lock.
func (s *Store) encache(rec *models.CrawlRecord) {
	if _, exists := s.cache[rec.URL]; !exists {
		if len(s.fifo) >= s.cacheSize {
			oldest := s.fifo[0]
			s.fifo = s.fifo[1:]
			delete(s.cache, oldest)
		}
		s.fifo = append(s.fifo, rec.URL)
	}
	s.cache[rec.URL] = rec
}

// loadRow reads a record from the database. Caller holds the lock.
func (s *Store) loadRow(url string) (*models.CrawlRecord, error) {
	var rec models.CrawlRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowKey(url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// saveRow writes a record to the database. Caller holds the lock.
func (s *Store) saveRow(rec *models.CrawlRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(rec.URL), data)
	})
}

// RecordStatus inserts or updates the row for a URL with the given status.
// Extra, when non-empty, replaces the stored extra payload.
func (s *Store) RecordStatus(url string, status int, extra string) error {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveStoreOp("crawl", "record_status", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := s.cache[url]
	if !ok {
		if loaded, lerr := s.loadRow(url); lerr == nil {
			rec = loaded
		} else if !errors.Is(lerr, badger.ErrKeyNotFound) {
			err = fmt.Errorf("load crawl row: %w", lerr)
			return err
		}
	}
	if rec == nil {
		rec = &models.CrawlRecord{URL: url, CreatedTime: now}
	}

	rec.Status = status
	rec.UpdatedTime = now
	if extra != "" {
		rec.Extra = extra
	}

	if err = s.saveRow(rec); err != nil {
		err = fmt.Errorf("save crawl row: %w", err)
		return err
	}
	s.encache(rec)
	return nil
}

// GetStatus returns the status for a URL. The in-memory cache is consulted
// first unless fromDB forces a database read. Unknown URLs return
// CrawlNotExist; a read failure returns CrawlDBError.
func (s *Store) GetStatus(url string, fromDB bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fromDB {
		if rec, ok := s.cache[url]; ok {
			return rec.Status
		}
	}

	rec, err := s.loadRow(url)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.CrawlNotExist
	}
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("crawl status read failed")
		return models.CrawlDBError
	}
	s.encache(rec)
	return rec.Status
}

// IncrementErrorCount bumps the error counter for a URL and sets its
// status to CrawlError, creating the row when absent.
func (s *Store) IncrementErrorCount(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := s.cache[url]
	if !ok {
		if loaded, err := s.loadRow(url); err == nil {
			rec = loaded
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("load crawl row: %w", err)
		}
	}
	if rec == nil {
		rec = &models.CrawlRecord{URL: url, CreatedTime: now}
	}

	rec.ErrorCount++
	rec.Status = models.CrawlError
	rec.UpdatedTime = now

	if err := s.saveRow(rec); err != nil {
		return fmt.Errorf("save crawl row: %w", err)
	}
	s.encache(rec)
	return nil
}

// GetErrorCount returns the error counter for a URL; unknown URLs return 0.
func (s *Store) GetErrorCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.cache[url]; ok {
		return rec.ErrorCount
	}
	rec, err := s.loadRow(url)
	if err != nil {
		return 0
	}
	s.encache(rec)
	return rec.ErrorCount
}

// ClearErrorCount resets the error counter for a URL. A missing row is a
// no-op.
func (s *Store) ClearErrorCount(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.cache[url]
	if !ok {
		loaded, err := s.loadRow(url)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load crawl row: %w", err)
		}
		rec = loaded
	}

	rec.ErrorCount = 0
	rec.UpdatedTime = time.Now().UTC()
	if err := s.saveRow(rec); err != nil {
		return fmt.Errorf("save crawl row: %w", err)
	}
	s.encache(rec)
	return nil
}

// CacheLen returns the in-memory cache occupancy.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

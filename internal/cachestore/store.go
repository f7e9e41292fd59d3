// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package cachestore provides the durable cache of raw submissions.
// Every accepted submission is persisted here (fsync when SyncWrites is
// enabled) before it is enqueued for analysis, so a crash is recovered by
// replaying the rows that never reached a terminal archived flag.
package cachestore

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

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("cache store is closed")
	// ErrNotFound is returned when no row exists for a UUID.
	ErrNotFound = errors.New("cache row not found")
	// ErrDuplicate is returned when inserting a UUID that already exists.
	ErrDuplicate = errors.New("cache row already exists")
)

const keyPrefix = "item:"

// Config holds cache store settings.
type Config struct {
	Path       string
	SyncWrites bool
	// InMemory runs badger without files. Tests only.
	InMemory bool
}

// Store is the Badger-backed durable cache store.
type Store struct {
	db  *badger.DB
	log zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the cache store at the configured path.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	s := &Store{
		db:  db,
		log: logging.With().Str("component", "cachestore").Logger(),
	}
	s.log.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("cache store opened")
	return s, nil
}

// Close shuts down the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func rowKey(uuid string) []byte { return []byte(keyPrefix + uuid) }

// Insert durably persists a new cache row for the collected item, stamping
// Appendix.TIME_GOT, and returns the written row. Inserting an existing
// UUID fails with ErrDuplicate.
func (s *Store) Insert(item *models.CollectedItem) (*models.CacheRow, error) {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveStoreOp("cache", "insert", start, err) }()

	if s.isClosed() {
		return nil, ErrClosed
	}

	now := time.Now().UTC()
	row := &models.CacheRow{
		Collected: *item,
		Appendix:  models.Appendix{TimeGot: &now},
	}
	data, merr := json.Marshal(row)
	if merr != nil {
		err = fmt.Errorf("marshal cache row: %w", merr)
		return nil, err
	}

	key := rowKey(item.UUID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, gerr := txn.Get(key); gerr == nil {
			return ErrDuplicate
		} else if !errors.Is(gerr, badger.ErrKeyNotFound) {
			return gerr
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicate) {
			err = fmt.Errorf("insert cache row: %w", err)
		}
		return nil, err
	}
	return row, nil
}

// Get returns the cache row for a UUID, or ErrNotFound.
func (s *Store) Get(uuid string) (*models.CacheRow, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	var row models.CacheRow
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowKey(uuid))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		})
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Find returns all rows matching the filter, in key (UUID) order.
func (s *Store) Find(match func(*models.CacheRow) bool) ([]*models.CacheRow, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	var rows []*models.CacheRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var row models.CacheRow
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			})
			if err != nil {
				return err
			}
			if match == nil || match(&row) {
				rows = append(rows, &row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan cache store: %w", err)
	}
	return rows, nil
}

// MarkArchived writes the terminal flag onto a row, stamping
// Appendix.TIME_DONE. Idempotent: the first terminal flag wins. Repeating
// the same flag is a no-op; a conflicting flag logs a warning and leaves
// the stored flag unchanged.
func (s *Store) MarkArchived(uuid string, flag models.ArchivedFlag, reason string) error {
	start := time.Now()
	var err error
	defer func() { metrics.ObserveStoreOp("cache", "mark_archived", start, err) }()

	if s.isClosed() {
		return ErrClosed
	}
	if !flag.Terminal() {
		err = fmt.Errorf("non-terminal flag %q", flag)
		return err
	}

	key := rowKey(uuid)
	err = s.db.Update(func(txn *badger.Txn) error {
		item, gerr := txn.Get(key)
		if errors.Is(gerr, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if gerr != nil {
			return gerr
		}

		var row models.CacheRow
		if verr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		}); verr != nil {
			return verr
		}

		if row.Appendix.ArchivedFlag.Terminal() {
			if row.Appendix.ArchivedFlag != flag {
				s.log.Warn().
					Str("uuid", uuid).
					Str("have", string(row.Appendix.ArchivedFlag)).
					Str("want", string(flag)).
					Msg("conflicting archived flag ignored")
			}
			return nil
		}

		now := time.Now().UTC()
		row.Appendix.ArchivedFlag = flag
		row.Appendix.TimeDone = &now
		if reason != "" {
			row.Appendix.DropReason = reason
		}

		data, merr := json.Marshal(&row)
		if merr != nil {
			return merr
		}
		return txn.Set(key, data)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("mark cache row: %w", err)
	}
	return err
}

// ScanUnflagged returns every row lacking a terminal archived flag. Used by
// the startup replay loop to rebuild the ingestion queue.
func (s *Store) ScanUnflagged() ([]*models.CacheRow, error) {
	return s.Find(func(row *models.CacheRow) bool {
		return !row.Appendix.ArchivedFlag.Terminal()
	})
}

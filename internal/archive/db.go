// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package archive provides the durable archive store for finalized
// intelligence records, the composable query engine over it, the
// statistics aggregations, and the persisted recommendation collection.
// Backed by an embedded DuckDB database accessed through database/sql.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/logging"
)

// Config holds archive store settings.
type Config struct {
	Path           string
	MaxMemory      string
	Threads        int
	ConnectTimeout time.Duration
}

// DB wraps the DuckDB connection pool.
type DB struct {
	conn *sql.DB
	log  zerolog.Logger
}

// schema creates the intelligence table, its secondary indexes, and the
// recommendation collection. Array-valued fields are stored as JSON text and
// queried with DuckDB's JSON functions.
var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS intelligence_seq START 1`,
	`CREATE TABLE IF NOT EXISTS intelligence (
		seq            BIGINT PRIMARY KEY DEFAULT nextval('intelligence_seq'),
		uuid           VARCHAR NOT NULL UNIQUE,
		informant      VARCHAR,
		pub_time       TIMESTAMP,
		pub_time_raw   VARCHAR,
		times          VARCHAR,
		locations      VARCHAR,
		peoples        VARCHAR,
		organizations  VARCHAR,
		event_title    VARCHAR,
		event_brief    VARCHAR,
		event_text     VARCHAR,
		rate           VARCHAR,
		impact         VARCHAR,
		tips           VARCHAR,
		raw_data       VARCHAR,
		submitter      VARCHAR,
		time_got       TIMESTAMP,
		time_post      TIMESTAMP,
		time_done      TIMESTAMP,
		time_archived  TIMESTAMP NOT NULL,
		retry_count    INTEGER DEFAULT 0,
		max_rate_class VARCHAR,
		max_rate_score DOUBLE DEFAULT 0,
		link_items     VARCHAR,
		parent_item    VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intel_time_archived ON intelligence(time_archived)`,
	`CREATE INDEX IF NOT EXISTS idx_intel_pub_time ON intelligence(pub_time)`,
	`CREATE INDEX IF NOT EXISTS idx_intel_max_rate_score ON intelligence(max_rate_score)`,
	`CREATE TABLE IF NOT EXISTS recommendation_sets (
		hour_key     VARCHAR PRIMARY KEY,
		generated_at TIMESTAMP NOT NULL,
		payload      VARCHAR NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recsets_generated_at ON recommendation_sets(generated_at)`,
}

// Open opens (or creates) the archive database, configures the pool, pings
// it within the connect timeout, and applies the schema. A failure here is
// fatal at startup.
func Open(cfg Config) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}

	db := &DB{
		conn: conn,
		log:  logging.With().Str("component", "archive").Logger(),
	}
	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	db.log.Info().Str("path", cfg.Path).Int("threads", threads).Msg("archive store opened")
	return db, nil
}

func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply archive schema: %w", err)
		}
	}
	return nil
}

// Ping reports database liveness; used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package keyring implements the LLM key rotator: a file-backed pool of
// credentials with balances, startup selection of the first solvent key,
// consumption-rate-aware balance polling, and in-place re-keying of the
// live LLM client when the active key drains.
package keyring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/metrics"
	"github.com/osintwire/intelhub/internal/models"
)

// ErrNoUsableKey is returned when every key in the pool is disabled or
// failing.
var ErrNoUsableKey = errors.New("no usable key in the pool")

// TokenSetter re-keys the live LLM client. Implemented by *llm.Client.
type TokenSetter interface {
	SetAPIToken(token string)
}

// BalanceQuerier queries the balance of an arbitrary key. Implemented by
// *llm.Client.
type BalanceQuerier interface {
	Balance(ctx context.Context, key string) (float64, error)
}

// Config holds rotator settings.
type Config struct {
	Path          string
	Threshold     float64
	MinInterval   time.Duration
	MaxInterval   time.Duration
	RetryAttempts int
}

// Rotator maintains the key pool. The pool file is a single JSON object
// {key: KeyRecord}; key order in the file is the selection order.
type Rotator struct {
	cfg     Config
	client  TokenSetter
	querier BalanceQuerier
	log     zerolog.Logger

	mu      sync.Mutex
	keys    map[string]*models.KeyRecord
	order   []string
	current string
	running bool

	// consumption tracking for the active key
	prevBalance float64
	prevCheck   time.Time
}

// New creates a rotator over the key file. client and querier are the live
// LLM client (both interfaces are satisfied by it).
func New(cfg Config, client TokenSetter, querier BalanceQuerier) *Rotator {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 30 * time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 1800 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	return &Rotator{
		cfg:     cfg,
		client:  client,
		querier: querier,
		log:     logging.With().Str("component", "keyring").Logger(),
		keys:    map[string]*models.KeyRecord{},
	}
}

// Load reads the key file. A missing file leaves the pool empty.
func (r *Rotator) Load() error {
	data, err := os.ReadFile(r.cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}

	keys, order, err := decodeKeyFile(data)
	if err != nil {
		return fmt.Errorf("decode key file: %w", err)
	}

	r.mu.Lock()
	r.keys = keys
	r.order = order
	r.mu.Unlock()
	r.log.Info().Int("keys", len(order)).Msg("key pool loaded")
	return nil
}

// decodeKeyFile parses {key: KeyRecord} preserving key order.
func decodeKeyFile(data []byte) (map[string]*models.KeyRecord, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("key file is not a json object")
	}

	keys := map[string]*models.KeyRecord{}
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, nil, errors.New("unexpected token in key file")
		}
		var rec models.KeyRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, nil, err
		}
		if rec.Key == "" {
			rec.Key = name
		}
		if rec.Status == "" {
			rec.Status = models.KeyUnknown
		}
		keys[name] = &rec
		order = append(order, name)
	}
	return keys, order, nil
}

// persist snapshots the pool under the lock and writes the snapshot after
// releasing it; the file write never blocks pool readers.
func (r *Rotator) persist() error {
	r.mu.Lock()
	data, err := r.encodePool()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.writePool(data)
}

func (r *Rotator) persistLogged() {
	if err := r.persist(); err != nil {
		r.log.Error().Err(err).Msg("persist key pool failed")
	}
}

// encodePool renders the pool as {key: KeyRecord}, preserving key order.
// Caller holds the lock.
func (r *Rotator) encodePool() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		nameJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		recJSON, err := json.Marshal(r.keys[name])
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteByte(':')
		buf.Write(recJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writePool writes the encoded pool atomically (temp file + rename).
func (r *Rotator) writePool(data []byte) error {
	dir := filepath.Dir(r.cfg.Path)
	tmp, err := os.CreateTemp(dir, ".keyring-*.json")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp key file: %w", err)
	}
	if err := os.Rename(tmpName, r.cfg.Path); err != nil {
		return fmt.Errorf("rename key file: %w", err)
	}
	return nil
}

// queryBalance checks one key's balance with bounded retries.
func (r *Rotator) queryBalance(ctx context.Context, key string) (float64, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(r.cfg.RetryAttempts)), ctx)

	var balance float64
	err := backoff.Retry(func() error {
		var qerr error
		balance, qerr = r.querier.Balance(ctx, key)
		return qerr
	}, policy)
	return balance, err
}

// SelectStartup walks the pool in file order and installs the first key
// whose balance clears the threshold. Keys below threshold are disabled and
// persisted; keys that fail the balance query are marked error and skipped.
func (r *Rotator) SelectStartup(ctx context.Context) error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range order {
		r.mu.Lock()
		rec := r.keys[name]
		skip := rec == nil || rec.Status == models.KeyDisabled
		r.mu.Unlock()
		if skip {
			continue
		}

		balance, err := r.queryBalance(ctx, name)
		if err != nil {
			r.log.Warn().Err(err).Str("key", redact(name)).Msg("balance query failed")
			r.mu.Lock()
			rec.Status = models.KeyError
			r.mu.Unlock()
			r.persistLogged()
			continue
		}

		r.mu.Lock()
		rec.Balance = balance
		if balance < r.cfg.Threshold {
			rec.Status = models.KeyDisabled
			r.mu.Unlock()
			r.log.Info().Str("key", redact(name)).Float64("balance", balance).
				Msg("key below threshold, disabled")
			r.persistLogged()
			continue
		}

		rec.Status = models.KeyValid
		rec.LastUsed = time.Now().UTC()
		r.current = name
		r.prevBalance = balance
		r.prevCheck = time.Now()
		r.mu.Unlock()
		r.persistLogged()

		r.client.SetAPIToken(name)
		metrics.KeyBalance.Set(balance)
		r.updateUsableGauge()
		r.log.Info().Str("key", redact(name)).Float64("balance", balance).Msg("key selected")
		return nil
	}
	return ErrNoUsableKey
}

// Serve runs the periodic balance check loop until the context is
// cancelled. Implements suture.Service.
func (r *Rotator) Serve(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if err := r.Load(); err != nil {
		return err
	}
	if err := r.SelectStartup(ctx); err != nil {
		if errors.Is(err, ErrNoUsableKey) {
			r.log.Error().Msg("no usable key at startup; rotator idle")
			<-ctx.Done()
			return ctx.Err()
		}
		return err
	}

	for {
		interval := r.checkOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// checkOnce polls the active key, rotates on drain, and returns the next
// check interval.
func (r *Rotator) checkOnce(ctx context.Context) time.Duration {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if current == "" {
		if err := r.SelectStartup(ctx); err != nil {
			return r.cfg.MaxInterval
		}
		r.mu.Lock()
		current = r.current
		r.mu.Unlock()
	}

	balance, err := r.queryBalance(ctx, current)
	if err != nil {
		r.log.Warn().Err(err).Str("key", redact(current)).Msg("active key balance query failed")
		return r.cfg.MinInterval
	}

	r.mu.Lock()
	rec := r.keys[current]
	elapsed := time.Since(r.prevCheck)
	prev := r.prevBalance
	rec.Balance = balance
	rec.LastUsed = time.Now().UTC()
	r.prevBalance = balance
	r.prevCheck = time.Now()
	drained := balance < r.cfg.Threshold
	if drained {
		rec.Status = models.KeyDisabled
		r.current = ""
	}
	r.mu.Unlock()
	r.persistLogged()

	if drained {
		r.log.Info().Str("key", redact(current)).Float64("balance", balance).
			Msg("active key drained, rotating")
		r.updateUsableGauge()
		if err := r.SelectStartup(ctx); err != nil {
			r.log.Error().Err(err).Msg("rotation failed")
			return r.cfg.MaxInterval
		}
		return r.cfg.MinInterval
	}

	metrics.KeyBalance.Set(balance)
	return r.nextInterval(prev, balance, elapsed)
}

// nextInterval schedules the next balance check: 20% of the estimated time
// until the balance crosses the threshold, clamped to the configured
// bounds. A non-positive consumption rate falls back to static balance
// tiers.
func (r *Rotator) nextInterval(prevBalance, curBalance float64, elapsed time.Duration) time.Duration {
	if elapsed > 0 {
		rate := (prevBalance - curBalance) / elapsed.Seconds()
		if rate > 0 {
			headroom := curBalance - r.cfg.Threshold
			interval := time.Duration(0.2 * headroom / rate * float64(time.Second))
			return clamp(interval, r.cfg.MinInterval, r.cfg.MaxInterval)
		}
	}
	switch {
	case curBalance >= 100:
		return clamp(30*time.Minute, r.cfg.MinInterval, r.cfg.MaxInterval)
	case curBalance >= 10:
		return clamp(10*time.Minute, r.cfg.MinInterval, r.cfg.MaxInterval)
	default:
		return clamp(2*time.Minute, r.cfg.MinInterval, r.cfg.MaxInterval)
	}
}

func clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// Status returns the rotator's observable state snapshot.
func (r *Rotator) Status() models.KeyringStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	usable := 0
	for _, rec := range r.keys {
		if rec.Status != models.KeyDisabled {
			usable++
		}
	}
	var balance float64
	if rec, ok := r.keys[r.current]; ok {
		balance = rec.Balance
	}
	return models.KeyringStatus{
		Running:     r.running,
		CurrentKey:  redact(r.current),
		Balance:     balance,
		UsableCount: usable,
		TotalCount:  len(r.keys),
		Threshold:   r.cfg.Threshold,
	}
}

func (r *Rotator) updateUsableGauge() {
	r.mu.Lock()
	usable := 0
	for _, rec := range r.keys {
		if rec.Status != models.KeyDisabled {
			usable++
		}
	}
	r.mu.Unlock()
	metrics.UsableKeys.Set(float64(usable))
}

// redact shortens a key for logs and status output.
func redact(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}

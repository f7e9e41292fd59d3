// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package vecindex provides the secondary vector index over archived event
// text: embeddings from the LLM client, an in-memory similarity store keyed
// by record UUID, and atomic save/load of the whole index.
package vecindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/logging"
)

// ErrNoEmbedder is returned when the index has no embedding client.
var ErrNoEmbedder = errors.New("no embedder configured")

// Embedder produces one embedding vector per input text. Implemented by the
// LLM client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Config holds vector index settings.
type Config struct {
	Path string
	// TrainThreshold is the number of vectors after which the index
	// calibrates: it computes the corpus centroid and switches to centered
	// cosine similarity. Additions afterwards are incremental.
	TrainThreshold int
	// ChunkSize is the maximum chunk length in runes for long texts.
	ChunkSize int
}

type entry struct {
	UUID   string    `json:"uuid"`
	Chunk  string    `json:"chunk"`
	Vector []float64 `json:"vector"`
}

// Match is one search hit.
type Match struct {
	UUID  string  `json:"uuid"`
	Score float64 `json:"score"`
}

// Index is the in-memory vector store. All operations are safe for
// concurrent use; embedding calls happen outside the lock.
type Index struct {
	cfg      Config
	embedder Embedder
	log      zerolog.Logger

	mu         sync.RWMutex
	entries    []entry
	centroid   []float64
	calibrated bool
}

// New creates an index. The embedder may be nil; AddText and Search then
// fail with ErrNoEmbedder.
func New(cfg Config, embedder Embedder) *Index {
	if cfg.TrainThreshold <= 0 {
		cfg.TrainThreshold = 64
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	return &Index{
		cfg:      cfg,
		embedder: embedder,
		log:      logging.With().Str("component", "vecindex").Logger(),
	}
}

// Len returns the number of stored chunk vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// AddText chunks the text, embeds each chunk, and stores the vectors under
// the UUID. Reaching the training threshold triggers calibration.
func (ix *Index) AddText(ctx context.Context, uuid, text string) error {
	if ix.embedder == nil {
		return ErrNoEmbedder
	}
	chunks := chunkText(text, ix.cfg.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, chunk := range chunks {
		ix.entries = append(ix.entries, entry{UUID: uuid, Chunk: chunk, Vector: vectors[i]})
	}
	if !ix.calibrated && len(ix.entries) >= ix.cfg.TrainThreshold {
		ix.calibrate()
	}
	return nil
}

// calibrate computes the corpus centroid. Caller holds the write lock.
func (ix *Index) calibrate() {
	if len(ix.entries) == 0 {
		return
	}
	dim := len(ix.entries[0].Vector)
	centroid := make([]float64, dim)
	for _, e := range ix.entries {
		for i, v := range e.Vector {
			centroid[i] += v
		}
	}
	for i := range centroid {
		centroid[i] /= float64(len(ix.entries))
	}
	ix.centroid = centroid
	ix.calibrated = true
	ix.log.Info().Int("vectors", len(ix.entries)).Msg("vector index calibrated")
}

// Search embeds the query and returns the topN closest records with score
// at or above the threshold, de-duplicated by UUID keeping the best chunk
// score per record.
func (ix *Index) Search(ctx context.Context, text string, topN int, threshold float64) ([]Match, error) {
	if ix.embedder == nil {
		return nil, ErrNoEmbedder
	}
	vectors, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for query", len(vectors))
	}
	query := vectors[0]

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	best := make(map[string]float64)
	for _, e := range ix.entries {
		score := ix.similarity(query, e.Vector)
		if prev, ok := best[e.UUID]; !ok || score > prev {
			best[e.UUID] = score
		}
	}

	matches := make([]Match, 0, len(best))
	for uuid, score := range best {
		if score >= threshold {
			matches = append(matches, Match{UUID: uuid, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].UUID < matches[j].UUID
	})
	if topN > 0 && len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

// similarity is cosine similarity, centered on the corpus centroid once the
// index is calibrated. Caller holds at least the read lock.
func (ix *Index) similarity(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		av, bv := a[i], b[i]
		if ix.calibrated && i < len(ix.centroid) {
			av -= ix.centroid[i]
			bv -= ix.centroid[i]
		}
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Delete removes all chunk vectors stored under the UUID.
func (ix *Index) Delete(uuid string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	kept := ix.entries[:0]
	for _, e := range ix.entries {
		if e.UUID != uuid {
			kept = append(kept, e)
		}
	}
	ix.entries = kept
}

// snapshot is the persisted form of the index.
type snapshot struct {
	Entries    []entry   `json:"entries"`
	Centroid   []float64 `json:"centroid,omitempty"`
	Calibrated bool      `json:"calibrated"`
}

// Save writes the index to its configured path atomically (temp file in the
// same directory, then rename).
func (ix *Index) Save() error {
	ix.mu.RLock()
	snap := snapshot{
		Entries:    ix.entries,
		Centroid:   ix.centroid,
		Calibrated: ix.calibrated,
	}
	data, err := json.Marshal(&snap)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode vector index: %w", err)
	}

	dir := filepath.Dir(ix.cfg.Path)
	tmp, err := os.CreateTemp(dir, ".vecindex-*.json")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmpName, ix.cfg.Path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the index contents from the configured path. A missing file
// leaves the index empty without error.
func (ix *Index) Load() error {
	data, err := os.ReadFile(ix.cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vector index: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode vector index: %w", err)
	}

	ix.mu.Lock()
	ix.entries = snap.Entries
	ix.centroid = snap.Centroid
	ix.calibrated = snap.Calibrated
	ix.mu.Unlock()

	ix.log.Info().Int("vectors", len(snap.Entries)).Msg("vector index loaded")
	return nil
}

// chunkText splits text into rune chunks of at most size, preferring to
// break at whitespace near the boundary.
func chunkText(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= size {
			chunks = append(chunks, string(runes))
			break
		}
		cut := size
		// walk back to the nearest whitespace within the last 10%
		for i := size; i > size-size/10; i-- {
			if runes[i-1] == ' ' || runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

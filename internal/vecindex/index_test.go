// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package vecindex

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// fakeEmbedder maps known words to fixed unit vectors.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	out := make([][]float64, len(texts))
	for i, t := range texts {
		switch {
		case strings.Contains(t, "missile"):
			out[i] = []float64{1, 0, 0}
		case strings.Contains(t, "harvest"):
			out[i] = []float64{0, 1, 0}
		default:
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

func TestAddTextAndSearch(t *testing.T) {
	ix := New(Config{Path: filepath.Join(t.TempDir(), "v.json")}, &fakeEmbedder{})
	ctx := context.Background()

	if err := ix.AddText(ctx, "u1", "missile strike near border"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ix.AddText(ctx, "u2", "record harvest season"); err != nil {
		t.Fatalf("add: %v", err)
	}

	matches, err := ix.Search(ctx, "missile test", 10, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].UUID != "u1" {
		t.Fatalf("expected u1 only, got %+v", matches)
	}
	if matches[0].Score < 0.99 {
		t.Errorf("expected near-perfect score, got %v", matches[0].Score)
	}
}

func TestSearch_DedupByUUID(t *testing.T) {
	ix := New(Config{Path: filepath.Join(t.TempDir(), "v.json"), ChunkSize: 10}, &fakeEmbedder{})
	ctx := context.Background()

	// long text forces multiple chunks under the same UUID
	long := strings.Repeat("missile attack ", 10)
	if err := ix.AddText(ctx, "u1", long); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ix.Len() < 2 {
		t.Fatalf("expected multiple chunks, got %d", ix.Len())
	}

	matches, err := ix.Search(ctx, "missile", 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected one match after dedup, got %d", len(matches))
	}
}

func TestCalibration(t *testing.T) {
	ix := New(Config{Path: filepath.Join(t.TempDir(), "v.json"), TrainThreshold: 2}, &fakeEmbedder{})
	ctx := context.Background()

	if err := ix.AddText(ctx, "u1", "missile"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ix.calibrated {
		t.Error("index calibrated before threshold")
	}
	if err := ix.AddText(ctx, "u2", "harvest"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !ix.calibrated {
		t.Error("index not calibrated after threshold")
	}
	if len(ix.centroid) != 3 {
		t.Errorf("unexpected centroid %v", ix.centroid)
	}
}

func TestDelete(t *testing.T) {
	ix := New(Config{Path: filepath.Join(t.TempDir(), "v.json")}, &fakeEmbedder{})
	ctx := context.Background()

	if err := ix.AddText(ctx, "u1", "missile"); err != nil {
		t.Fatalf("add: %v", err)
	}
	ix.Delete("u1")
	if ix.Len() != 0 {
		t.Errorf("expected empty index after delete, got %d", ix.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.json")
	ix := New(Config{Path: path, TrainThreshold: 1}, &fakeEmbedder{})
	ctx := context.Background()

	if err := ix.AddText(ctx, "u1", "missile"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ix.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := New(Config{Path: path}, &fakeEmbedder{})
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Errorf("expected 1 vector after load, got %d", reloaded.Len())
	}
	if !reloaded.calibrated {
		t.Error("calibration state lost across save/load")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	ix := New(Config{Path: filepath.Join(t.TempDir(), "absent.json")}, nil)
	if err := ix.Load(); err != nil {
		t.Errorf("missing file must not error: %v", err)
	}
}

func TestNoEmbedder(t *testing.T) {
	ix := New(Config{Path: filepath.Join(t.TempDir(), "v.json")}, nil)
	if err := ix.AddText(context.Background(), "u1", "x"); !errors.Is(err, ErrNoEmbedder) {
		t.Errorf("expected ErrNoEmbedder, got %v", err)
	}
	if _, err := ix.Search(context.Background(), "x", 1, 0); !errors.Is(err, ErrNoEmbedder) {
		t.Errorf("expected ErrNoEmbedder, got %v", err)
	}
}

func TestChunkText(t *testing.T) {
	chunks := chunkText("", 10)
	if chunks != nil {
		t.Errorf("expected nil for empty text, got %v", chunks)
	}

	chunks = chunkText("short", 10)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Errorf("unexpected chunks %v", chunks)
	}

	long := strings.Repeat("word ", 100)
	chunks = chunkText(long, 50)
	if len(chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Errorf("chunk exceeds size: %d", len(c))
		}
		total += len([]rune(c))
	}
	if total != len([]rune(long)) {
		t.Errorf("chunks lost text: %d != %d", total, len([]rune(long)))
	}
}

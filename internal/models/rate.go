// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// RateEntry is one scored dimension of an item's RATE map.
type RateEntry struct {
	Class string
	Score float64
}

// Rate is the per-item score map produced by the analysis step. It is a
// JSON object on the wire, but insertion order matters for the max-rate
// tie-break, so it is held as an ordered list of entries.
type Rate []RateEntry

// Get returns the score for a class and whether it is present.
func (r Rate) Get(class string) (float64, bool) {
	for _, e := range r {
		if e.Class == class {
			return e.Score, true
		}
	}
	return 0, false
}

// Max returns the highest-scoring class, scanning entries in insertion
// order and keeping the first-seen class on ties. Classes named in exclude
// are skipped (the accuracy class is a meta-signal, not a ranking input).
// Returns ok=false when no rankable entry exists.
func (r Rate) Max(exclude string) (class string, score float64, ok bool) {
	for _, e := range r {
		if e.Class == exclude {
			continue
		}
		if !ok || e.Score > score {
			class, score, ok = e.Class, e.Score, true
		}
	}
	return class, score, ok
}

// MarshalJSON encodes the rate as a JSON object preserving entry order.
func (r Rate) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range r {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(e.Class)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Score)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes a JSON object into the rate, preserving the key
// order of the document.
func (r *Rate) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("rate: expected JSON object, got %v", tok)
	}

	out := Rate{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("rate: expected string key, got %v", keyTok)
		}
		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("rate: score for %q: %w", key, err)
		}
		out = append(out, RateEntry{Class: key, Score: score})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

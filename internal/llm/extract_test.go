// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare object", `{"UUID":"u1"}`, `{"UUID":"u1"}`},
		{"surrounding prose", `Here is the result: {"UUID":"u1"} Hope that helps.`, `{"UUID":"u1"}`},
		{"think tags", "<think>reasoning\nhere</think>{\"UUID\":\"u1\"}", `{"UUID":"u1"}`},
		{"code fence", "```json\n{\"UUID\":\"u1\"}\n```", `{"UUID":"u1"}`},
		{"fence without language", "```\n{\"UUID\":\"u1\"}\n```", `{"UUID":"u1"}`},
		{"nested braces", `{"RATE":{"military":7}}`, `{"RATE":{"military":7}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.reply)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	if _, err := ExtractJSON("I could not analyze this."); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
	if _, err := ExtractJSON("<think>{\"hidden\":1}</think>nothing left"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("think content must be stripped before extraction, got %v", err)
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, err := ExtractJSONArray("```json\n[\"u1\",\"u2\"]\n```")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if string(got) != `["u1","u2"]` {
		t.Errorf("got %s", got)
	}

	if _, err := ExtractJSONArray("no list here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := l.Config()

	if cfg.Server.Port != 8085 {
		t.Errorf("expected default port 8085, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.ExcludedRateClass != "accuracy" {
		t.Errorf("expected default excluded class accuracy, got %q", cfg.Pipeline.ExcludedRateClass)
	}
	if !cfg.Auth.DenyOnEmpty {
		t.Error("expected deny_on_empty default true")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"server":{"port":9090},"llm":{"model":"test-model","call_timeout":"5m"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	l, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := l.Config()

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090 from file, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("expected model from file, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.CallTimeout != 5*time.Minute {
		t.Errorf("expected 5m call timeout, got %v", cfg.LLM.CallTimeout)
	}
	// untouched keys keep defaults
	if cfg.RSS.MaxItems != 50 {
		t.Errorf("expected default rss cap 50, got %d", cfg.RSS.MaxItems)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"server":{"port":9090}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INTELHUB_SERVER_PORT", "7070")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := l.Config().Server.Port; got != 7070 {
		t.Errorf("expected env override 7070, got %d", got)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoader_Get(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := l.Get("pipeline.excluded_rate_class"); got != "accuracy" {
		t.Errorf("expected dotted-key access, got %v", got)
	}
	if got := l.Get("no.such.key"); got != nil {
		t.Errorf("expected nil for unknown key, got %v", got)
	}
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	path := filepath.Join(t.TempDir(), "saved.json")
	if err := l.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Config().Server.Port != l.Config().Server.Port {
		t.Error("saved config did not round-trip")
	}
}

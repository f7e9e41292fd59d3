// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/osintwire/intelhub/internal/validation"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.json",
	"/etc/intelhub/config.json",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "INTELHUB_CONFIG"

// envPrefix is stripped from environment variables before mapping to keys.
// INTELHUB_SERVER_PORT=9090 maps to server.port.
const envPrefix = "INTELHUB_"

// Loader carries the loaded Config plus the underlying koanf instance for
// dotted-key access.
type Loader struct {
	k   *koanf.Koanf
	cfg *Config
}

// Load builds the config from defaults, the JSON file at path (or the first
// default path when path is empty; a missing optional file is skipped), and
// INTELHUB_-prefixed environment variables.
func Load(path string) (*Loader, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	resolved, required := resolvePath(path)
	if resolved != "" {
		if err := k.Load(file.Provider(resolved), koanfjson.Parser()); err != nil {
			if required || !os.IsNotExist(underlyingPathError(err)) {
				return nil, fmt.Errorf("loading config file %s: %w", resolved, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validation.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Loader{k: k, cfg: &cfg}, nil
}

// resolvePath picks the config file path. A path given explicitly (argument
// or env var) is required to exist; default paths are optional.
func resolvePath(path string) (resolved string, required bool) {
	if path != "" {
		return path, true
	}
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p, true
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, false
		}
	}
	return "", false
}

// underlyingPathError unwraps file-provider errors down to the os error so
// missing optional files can be told apart from parse failures.
func underlyingPathError(err error) error {
	for err != nil {
		if pe, ok := err.(*os.PathError); ok {
			return pe
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return err
}

// envTransform maps INTELHUB_SERVER_PORT to server.port.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "_", ".")
}

// Config returns the decoded configuration.
func (l *Loader) Config() *Config { return l.cfg }

// Get returns the raw value at a dotted key ("llm.model"), or nil when the
// key does not exist. Used by the config.get RPC method.
func (l *Loader) Get(key string) interface{} {
	if !l.k.Exists(key) {
		return nil
	}
	return l.k.Get(key)
}

// Save writes the current configuration as indented JSON, atomically
// (temp file in the same directory, then rename).
func (l *Loader) Save(path string) error {
	data, err := json.MarshalIndent(l.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming config into place: %w", err)
	}
	return nil
}

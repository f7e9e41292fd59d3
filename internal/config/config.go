// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package config defines the hub configuration and its koanf-based loader.
// Precedence: struct defaults, then the JSON config file, then environment
// variables prefixed with INTELHUB_.
package config

import (
	"time"
)

// Config is the root configuration for the hub process.
type Config struct {
	Server      ServerConfig      `koanf:"server" json:"server"`
	Log         LogConfig         `koanf:"log" json:"log"`
	Auth        AuthConfig        `koanf:"auth" json:"auth"`
	Cache       CacheConfig       `koanf:"cache" json:"cache"`
	Archive     ArchiveConfig     `koanf:"archive" json:"archive"`
	LLM         LLMConfig         `koanf:"llm" json:"llm"`
	Keyring     KeyringConfig     `koanf:"keyring" json:"keyring"`
	Pipeline    PipelineConfig    `koanf:"pipeline" json:"pipeline"`
	RSS         RSSConfig         `koanf:"rss" json:"rss"`
	ResultCache ResultCacheConfig `koanf:"result_cache" json:"result_cache"`
	Vector      VectorConfig      `koanf:"vector" json:"vector"`
	Recommend   RecommendConfig   `koanf:"recommend" json:"recommend"`
	Crawl       CrawlConfig       `koanf:"crawl" json:"crawl"`
	Fetch       FetchConfig       `koanf:"fetch" json:"fetch"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host" json:"host"`
	Port            int           `koanf:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitRPM    int           `koanf:"rate_limit_rpm" json:"rate_limit_rpm"`
	CORSOrigins     []string      `koanf:"cors_origins" json:"cors_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
	Caller bool   `koanf:"caller" json:"caller"`
}

// AuthConfig holds the three disjoint bearer-token sets. An empty set with
// DenyOnEmpty true forbids the corresponding endpoints entirely.
type AuthConfig struct {
	RPCAPITokens    []string `koanf:"rpc_api_tokens" json:"rpc_api_tokens"`
	CollectorTokens []string `koanf:"collector_tokens" json:"collector_tokens"`
	ProcessorTokens []string `koanf:"processor_tokens" json:"processor_tokens"`
	DenyOnEmpty     bool     `koanf:"deny_on_empty" json:"deny_on_empty"`
}

// CacheConfig holds the durable cache store settings.
type CacheConfig struct {
	Path       string `koanf:"path" json:"path" validate:"required"`
	SyncWrites bool   `koanf:"sync_writes" json:"sync_writes"`
}

// ArchiveConfig holds the archive store settings.
type ArchiveConfig struct {
	Path           string        `koanf:"path" json:"path" validate:"required"`
	MaxMemory      string        `koanf:"max_memory" json:"max_memory"`
	Threads        int           `koanf:"threads" json:"threads"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout"`
}

// LLMConfig holds the analysis client settings. Token may be empty when the
// keyring supplies keys at runtime.
type LLMConfig struct {
	BaseURL         string        `koanf:"base_url" json:"base_url"`
	Token           string        `koanf:"token" json:"token"`
	Model           string        `koanf:"model" json:"model"`
	EmbeddingModel  string        `koanf:"embedding_model" json:"embedding_model"`
	SystemPrompt    string        `koanf:"system_prompt" json:"system_prompt"`
	RecommendPrompt string        `koanf:"recommend_prompt" json:"recommend_prompt"`
	MaxTokens       int           `koanf:"max_tokens" json:"max_tokens"`
	CallTimeout     time.Duration `koanf:"call_timeout" json:"call_timeout"`
	BalanceTimeout  time.Duration `koanf:"balance_timeout" json:"balance_timeout"`
	MaxRetries      int           `koanf:"max_retries" json:"max_retries"`
	RequestsPerMin  int           `koanf:"requests_per_min" json:"requests_per_min"`
	ConversationDir string        `koanf:"conversation_dir" json:"conversation_dir"`
}

// KeyringConfig holds the key rotator settings.
type KeyringConfig struct {
	Enabled       bool          `koanf:"enabled" json:"enabled"`
	Path          string        `koanf:"path" json:"path"`
	Threshold     float64       `koanf:"threshold" json:"threshold"`
	MinInterval   time.Duration `koanf:"min_interval" json:"min_interval"`
	MaxInterval   time.Duration `koanf:"max_interval" json:"max_interval"`
	RetryAttempts int           `koanf:"retry_attempts" json:"retry_attempts"`
}

// PipelineConfig holds queue and worker settings.
type PipelineConfig struct {
	IngestCapacity    int           `koanf:"ingest_capacity" json:"ingest_capacity" validate:"min=1"`
	PostCapacity      int           `koanf:"post_capacity" json:"post_capacity" validate:"min=1"`
	PutTimeout        time.Duration `koanf:"put_timeout" json:"put_timeout"`
	AnalysisWorkers   int           `koanf:"analysis_workers" json:"analysis_workers" validate:"min=1"`
	ExcludedRateClass string        `koanf:"excluded_rate_class" json:"excluded_rate_class"`
}

// RSSConfig holds the feed publisher settings.
type RSSConfig struct {
	MaxItems     int    `koanf:"max_items" json:"max_items" validate:"min=1"`
	HostPrefix   string `koanf:"host_prefix" json:"host_prefix"`
	ChannelTitle string `koanf:"channel_title" json:"channel_title"`
	ChannelDesc  string `koanf:"channel_desc" json:"channel_desc"`
}

// ResultCacheConfig holds the in-memory result cache settings.
type ResultCacheConfig struct {
	CountLimit     int           `koanf:"count_limit" json:"count_limit" validate:"min=1"`
	PeriodLimit    time.Duration `koanf:"period_limit" json:"period_limit"`
	ScoreThreshold float64       `koanf:"score_threshold" json:"score_threshold"`
}

// VectorConfig holds the vector index settings.
type VectorConfig struct {
	Enabled         bool    `koanf:"enabled" json:"enabled"`
	Path            string  `koanf:"path" json:"path"`
	TrainThreshold  int     `koanf:"train_threshold" json:"train_threshold"`
	SaveEvery       int     `koanf:"save_every" json:"save_every"`
	ChunkSize       int     `koanf:"chunk_size" json:"chunk_size"`
	SearchTopN      int     `koanf:"search_top_n" json:"search_top_n"`
	SearchThreshold float64 `koanf:"search_threshold" json:"search_threshold"`
}

// RecommendConfig holds the recommendation manager settings.
type RecommendConfig struct {
	Enabled        bool          `koanf:"enabled" json:"enabled"`
	CronSpec       string        `koanf:"cron_spec" json:"cron_spec"`
	Window         time.Duration `koanf:"window" json:"window"`
	Period         time.Duration `koanf:"period" json:"period"`
	ScoreThreshold float64       `koanf:"score_threshold" json:"score_threshold"`
	CandidateLimit int           `koanf:"candidate_limit" json:"candidate_limit"`
}

// CrawlConfig holds the crawl record store settings.
type CrawlConfig struct {
	CacheSize int `koanf:"cache_size" json:"cache_size" validate:"min=1"`
}

// FetchConfig holds the crawler-side fetch capability settings.
type FetchConfig struct {
	Timeout time.Duration `koanf:"timeout" json:"timeout"`
	Proxies []string      `koanf:"proxies" json:"proxies"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8085,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPM:    600,
			CORSOrigins:     []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Auth: AuthConfig{
			RPCAPITokens:    []string{},
			CollectorTokens: []string{},
			ProcessorTokens: []string{},
			DenyOnEmpty:     true,
		},
		Cache: CacheConfig{
			Path:       "/data/intelhub/cache",
			SyncWrites: true,
		},
		Archive: ArchiveConfig{
			Path:           "/data/intelhub/archive.duckdb",
			MaxMemory:      "1GB",
			Threads:        0, // 0 = runtime.NumCPU()
			ConnectTimeout: 5 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:         "",
			Token:           "",
			Model:           "deepseek-chat",
			EmbeddingModel:  "text-embedding-3-small",
			SystemPrompt:    "",
			RecommendPrompt: "",
			MaxTokens:       8192,
			CallTimeout:     10 * time.Minute,
			BalanceTimeout:  10 * time.Second,
			MaxRetries:      3,
			RequestsPerMin:  30,
			ConversationDir: "conversation",
		},
		Keyring: KeyringConfig{
			Enabled:       false,
			Path:          "/data/intelhub/keyring.json",
			Threshold:     0.2,
			MinInterval:   30 * time.Second,
			MaxInterval:   1800 * time.Second,
			RetryAttempts: 3,
		},
		Pipeline: PipelineConfig{
			IngestCapacity:    256,
			PostCapacity:      32,
			PutTimeout:        3 * time.Second,
			AnalysisWorkers:   1,
			ExcludedRateClass: "accuracy",
		},
		RSS: RSSConfig{
			MaxItems:     50,
			HostPrefix:   "http://localhost:8085",
			ChannelTitle: "IntelHub",
			ChannelDesc:  "Archived intelligence items",
		},
		ResultCache: ResultCacheConfig{
			CountLimit:     200,
			PeriodLimit:    72 * time.Hour,
			ScoreThreshold: 5,
		},
		Vector: VectorConfig{
			Enabled:         false,
			Path:            "/data/intelhub/vectors.json",
			TrainThreshold:  64,
			SaveEvery:       10,
			ChunkSize:       1024,
			SearchTopN:      10,
			SearchThreshold: 0.35,
		},
		Recommend: RecommendConfig{
			Enabled:        true,
			CronSpec:       "0 * * * *",
			Window:         48 * time.Hour,
			Period:         24 * time.Hour,
			ScoreThreshold: 5,
			CandidateLimit: 100,
		},
		Crawl: CrawlConfig{
			CacheSize: 1000,
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Proxies: []string{},
		},
	}
}

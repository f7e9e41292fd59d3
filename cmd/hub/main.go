// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Command hub runs the intelligence integration hub: it opens the stores,
// wires the analysis pipeline, replays unfinished items, and serves the
// HTTP surface under a supervisor tree until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osintwire/intelhub/internal/api"
	"github.com/osintwire/intelhub/internal/archive"
	"github.com/osintwire/intelhub/internal/cachestore"
	"github.com/osintwire/intelhub/internal/config"
	"github.com/osintwire/intelhub/internal/hub"
	"github.com/osintwire/intelhub/internal/keyring"
	"github.com/osintwire/intelhub/internal/llm"
	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/models"
	"github.com/osintwire/intelhub/internal/pipeline"
	"github.com/osintwire/intelhub/internal/recommend"
	"github.com/osintwire/intelhub/internal/resultcache"
	"github.com/osintwire/intelhub/internal/rss"
	"github.com/osintwire/intelhub/internal/supervisor"
	"github.com/osintwire/intelhub/internal/vecindex"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the JSON config file")
	flag.Parse()

	loader, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})

	if err := run(loader); err != nil {
		logging.Error().Err(err).Msg("hub exited with error")
		os.Exit(1)
	}
}

func run(loader *config.Loader) error {
	cfg := loader.Config()
	log := logging.With().Str("component", "main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := cachestore.Open(cachestore.Config{
		Path:       cfg.Cache.Path,
		SyncWrites: cfg.Cache.SyncWrites,
	})
	if err != nil {
		return err
	}
	defer cache.Close()

	db, err := archive.Open(archive.Config{
		Path:           cfg.Archive.Path,
		MaxMemory:      cfg.Archive.MaxMemory,
		Threads:        cfg.Archive.Threads,
		ConnectTimeout: cfg.Archive.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	var client *llm.Client
	if cfg.LLM.BaseURL != "" {
		client = llm.New(llm.Config{
			BaseURL:         cfg.LLM.BaseURL,
			Token:           cfg.LLM.Token,
			Model:           cfg.LLM.Model,
			EmbeddingModel:  cfg.LLM.EmbeddingModel,
			MaxTokens:       cfg.LLM.MaxTokens,
			CallTimeout:     cfg.LLM.CallTimeout,
			BalanceTimeout:  cfg.LLM.BalanceTimeout,
			MaxRetries:      cfg.LLM.MaxRetries,
			RequestsPerMin:  cfg.LLM.RequestsPerMin,
			ConversationDir: cfg.LLM.ConversationDir,
		})
	} else {
		log.Warn().Msg("no analysis backend configured, submissions will be dropped")
	}

	var rotator *keyring.Rotator
	if cfg.Keyring.Enabled && client != nil {
		rotator = keyring.New(keyring.Config{
			Path:          cfg.Keyring.Path,
			Threshold:     cfg.Keyring.Threshold,
			MinInterval:   cfg.Keyring.MinInterval,
			MaxInterval:   cfg.Keyring.MaxInterval,
			RetryAttempts: cfg.Keyring.RetryAttempts,
		}, client, client)
	}

	var vectors *vecindex.Index
	if cfg.Vector.Enabled && client != nil {
		vectors = vecindex.New(vecindex.Config{
			Path:           cfg.Vector.Path,
			TrainThreshold: cfg.Vector.TrainThreshold,
			ChunkSize:      cfg.Vector.ChunkSize,
		}, client)
		if err := vectors.Load(); err != nil {
			log.Warn().Err(err).Msg("vector index snapshot not loaded, starting empty")
		}
	}

	results := resultcache.New(resultcache.Config{
		CountLimit:     cfg.ResultCache.CountLimit,
		PeriodLimit:    cfg.ResultCache.PeriodLimit,
		ScoreThreshold: cfg.ResultCache.ScoreThreshold,
	})
	warmResultCache(ctx, db, results, cfg.ResultCache)

	feed := rss.New(cfg.RSS.MaxItems)
	live := api.NewLiveFeed()

	ingest := pipeline.NewQueue[*models.CacheRow]("ingest", cfg.Pipeline.IngestCapacity, cfg.Pipeline.PutTimeout)
	post := pipeline.NewQueue[*models.ArchivedItem]("post", cfg.Pipeline.PostCapacity, cfg.Pipeline.PutTimeout)
	table := pipeline.NewProcessingTable()
	counters := &pipeline.Counters{}

	var recommender *recommend.Manager
	if cfg.Recommend.Enabled && client != nil {
		recommender = recommend.NewManager(recommend.Config{
			SystemPrompt:   cfg.LLM.RecommendPrompt,
			Window:         cfg.Recommend.Window,
			Period:         cfg.Recommend.Period,
			ScoreThreshold: cfg.Recommend.ScoreThreshold,
			CandidateLimit: cfg.Recommend.CandidateLimit,
		}, db, client)
		if err := recommender.Restore(ctx); err != nil {
			log.Warn().Err(err).Msg("recommendation sets not restored")
		}
	}

	h := hub.New(hub.Deps{
		Loader:      loader,
		Cache:       cache,
		Archive:     db,
		Ingest:      ingest,
		Post:        post,
		Table:       table,
		Counters:    counters,
		Results:     results,
		Feed:        feed,
		Vectors:     vectors,
		Rotator:     rotator,
		Recommender: recommender,
	})

	// Replay before the HTTP surface accepts traffic so recovered items
	// keep their original ordering ahead of new submissions.
	if _, err := pipeline.Replay(ctx, cache, ingest); err != nil {
		return err
	}
	h.SetReplayDone()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	analysisCfg := pipeline.AnalysisConfig{
		SystemPrompt:      cfg.LLM.SystemPrompt,
		ExcludedRateClass: cfg.Pipeline.ExcludedRateClass,
	}
	var analysisClient pipeline.AnalysisClient
	if client != nil {
		analysisClient = client
	}
	for i := 0; i < cfg.Pipeline.AnalysisWorkers; i++ {
		tree.AddPipelineService(pipeline.NewAnalysisWorker(
			analysisCfg, ingest, post, analysisClient, cache, table, counters))
	}

	var indexer pipeline.VectorIndexer
	if vectors != nil {
		indexer = vectors
	}
	tree.AddPipelineService(pipeline.NewArchivalWorker(pipeline.ArchivalConfig{
		RSSHostPrefix:   cfg.RSS.HostPrefix,
		VectorSaveEvery: cfg.Vector.SaveEvery,
	}, post, db, indexer, feed, results, live, cache, counters))

	if rotator != nil {
		tree.AddPipelineService(rotator)
	}
	if recommender != nil {
		tree.AddPipelineService(recommend.NewCronService(cfg.Recommend.CronSpec, recommender))
	}
	tree.AddAPIService(api.NewServer(cfg.Server, cfg.RSS, h, live))

	h.SetRunning(true)
	defer h.SetRunning(false)

	log.Info().
		Int("analysis_workers", cfg.Pipeline.AnalysisWorkers).
		Bool("keyring", rotator != nil).
		Bool("vectors", vectors != nil).
		Bool("recommend", recommender != nil).
		Msg("hub starting")

	err = tree.Serve(ctx)
	if vectors != nil {
		if serr := vectors.Save(); serr != nil {
			log.Warn().Err(serr).Msg("final vector snapshot failed")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("hub stopped")
	return nil
}

// warmResultCache seeds the hot cache with recent high-scoring archives so
// the first queries after a restart are served from memory.
func warmResultCache(ctx context.Context, db *archive.DB, results *resultcache.Cache, cfg config.ResultCacheConfig) {
	start := time.Now().UTC().Add(-cfg.PeriodLimit)
	items, err := db.Find(ctx, &archive.Filter{
		ArchiveStart: &start,
		Threshold:    &cfg.ScoreThreshold,
		Limit:        cfg.CountLimit,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("result cache warm-up failed")
		return
	}
	results.Install(items)
}

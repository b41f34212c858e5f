// Package bootstrap wires configuration into concrete adapters. Shared
// services (report store, queue, resilience) live for the process; pipelines
// are built fresh per run because the registry and index carry run state.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/corpustools/dedup/internal/config"
	"github.com/corpustools/dedup/internal/core/ports"
	"github.com/corpustools/dedup/internal/core/usecase"
	"github.com/corpustools/dedup/internal/infrastructure/chunking"
	"github.com/corpustools/dedup/internal/infrastructure/embedder"
	"github.com/corpustools/dedup/internal/infrastructure/embedder/cache"
	"github.com/corpustools/dedup/internal/infrastructure/embedder/ollama"
	"github.com/corpustools/dedup/internal/infrastructure/fingerprint"
	"github.com/corpustools/dedup/internal/infrastructure/normalize"
	"github.com/corpustools/dedup/internal/infrastructure/queue/nats"
	"github.com/corpustools/dedup/internal/infrastructure/repository/postgres"
	"github.com/corpustools/dedup/internal/infrastructure/resilience"
	"github.com/corpustools/dedup/internal/infrastructure/similarity"
	"github.com/corpustools/dedup/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	// Reports is nil when no postgres DSN is configured.
	Reports *postgres.ReportRepository

	executor *resilience.Executor
	closeFn  func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		executor: resilience.NewExecutor(resilience.DefaultConfig()),
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		reports := postgres.NewReportRepository(db)
		if err := reports.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Reports = reports
		app.closeFn = func() { _ = db.Close() }
	}

	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func (a *App) ConnectQueue() (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: a.executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init job queue: %w", err)
	}
	return queue, nil
}

// NewPipeline builds a single-run pipeline from cfg, which may carry CLI or
// job overrides on top of the app config.
func (a *App) NewPipeline(cfg config.Config) (*usecase.DedupPipeline, error) {
	punctuation := cfg.NormalizePunctuation
	if punctuation == "" {
		punctuation = normalize.DefaultPunctuation
	}
	normalizer := normalize.New(normalize.Options{
		Lowercase:   cfg.NormalizeLowercase,
		Punctuation: punctuation,
	})
	registry := fingerprint.NewRegistry()
	method := cfg.Method()

	var (
		index        ports.SimilarityIndex
		embedService ports.Embedder
		vectorCache  ports.EmbeddingCache
	)
	if method.Semantic() {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
			CallTimeout:        cfg.EmbedTimeout,
			RatePerSecond:      cfg.EmbedRatePerSec,
			ResilienceExecutor: a.executor,
		})
		splitter := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MaxChunksPerDoc)
		embedService = embedder.NewPooled(client, splitter)

		if cfg.UseAcceleratedIndex {
			// Per-run collection: representatives must not leak across runs.
			collection := fmt.Sprintf("%s_%s", cfg.QdrantCollection, uuid.NewString()[:8])
			index = qdrant.NewIndex(cfg.QdrantURL, collection, cfg.SimilarityThreshold)
		} else {
			index = similarity.NewIndex(cfg.SimilarityThreshold)
		}

		if cfg.EmbeddingCacheSize > 0 {
			bounded, err := cache.New(cfg.EmbeddingCacheSize)
			if err != nil {
				return nil, err
			}
			vectorCache = bounded
		} else {
			vectorCache = cache.Disabled()
		}
	}

	return usecase.NewDedupPipeline(
		usecase.DedupConfig{
			Method:              method,
			SimilarityThreshold: cfg.SimilarityThreshold,
			BatchSize:           cfg.BatchSize,
			MinDocumentLength:   cfg.MinDocumentLength,
			Workers:             cfg.Workers,
		},
		normalizer, registry, index, embedService, vectorCache,
	)
}

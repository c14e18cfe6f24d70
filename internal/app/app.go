package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/answer"
	"github.com/golf-qa/backend/internal/cache/redis"
	"github.com/golf-qa/backend/internal/embedding"
	"github.com/golf-qa/backend/internal/evaluation"
	"github.com/golf-qa/backend/internal/ingestion"
	"github.com/golf-qa/backend/internal/llm"
	"github.com/golf-qa/backend/internal/metrics"
	"github.com/golf-qa/backend/internal/query"
	"github.com/golf-qa/backend/internal/retrieval"
	"github.com/golf-qa/backend/internal/scheduler"
	"github.com/golf-qa/backend/internal/storage/sqlite"
	"github.com/golf-qa/backend/pkg/config"
	"github.com/golf-qa/backend/pkg/logger"
)

// App holds the wired components shared by the API server and the CLI.
type App struct {
	Config  *config.Config
	Store   *sqlite.Client
	Cache   *redis.Client
	Engine  *query.Engine
	Updater *scheduler.Updater
}

// Options selects which parts need an LLM. Commands that only refresh or report data can
// run without an API key.
type Options struct {
	WithoutLLM bool
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	metrics.Init()

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}

	a := &App{Config: cfg, Store: store}

	embedder, err := a.embedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	source, err := newSource(cfg.Ingestion)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Updater = scheduler.NewUpdater(
		store,
		source,
		ingestion.NewProcessor(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		embedder,
	)

	if opts.WithoutLLM {
		return a, nil
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Engine = query.NewEngine(
		retrieval.NewRetriever(store, embedder, retrieval.Weights{
			Semantic: cfg.Retrieval.SemanticWeight,
			Lexical:  cfg.Retrieval.LexicalWeight,
		}),
		answer.NewGenerator(llmClient, store, llm.NewTokenCounter(), cfg.LLM.MaxTokens, cfg.LLM.Temperature),
		evaluation.NewEvaluator(embedder),
		store,
		cfg.Retrieval.TopK,
	)

	logger.Info("Components initialized",
		zap.String("llm_provider", llmClient.Provider()),
		zap.String("llm_model", llmClient.Model()),
		zap.String("embedding_model", embedder.Name()),
		zap.String("ingestion_source", source.Name()),
	)

	return a, nil
}

// embedder wraps the configured provider with the Redis cache when it is enabled and
// reachable. An unreachable cache is logged and skipped.
func (a *App) embedder(ctx context.Context) (embedding.Provider, error) {
	provider, err := embedding.NewProvider(a.Config.Embedding)
	if err != nil {
		return nil, err
	}

	rc := a.Config.Redis
	if !rc.Enabled {
		return provider, nil
	}

	cache, err := redis.NewClient(ctx, rc.Host, rc.Port, rc.Password, rc.DB)
	if err != nil {
		logger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		return provider, nil
	}

	a.Cache = cache
	return embedding.NewCachedProvider(provider, cache, time.Duration(rc.TTLHours)*time.Hour), nil
}

func newSource(cfg config.IngestionConfig) (ingestion.Source, error) {
	switch cfg.Source {
	case "sample":
		return ingestion.NewSampleSource(), nil
	case "html":
		if cfg.RulesURL == "" {
			return nil, fmt.Errorf("ingestion source html requires ingestion.rulesURL")
		}
		return ingestion.NewHTMLSource(cfg.RulesURL, time.Duration(cfg.TimeoutSec)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown ingestion source %q", cfg.Source)
	}
}

func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		logger.Warn("Failed to close sqlite client", zap.Error(err))
	}
}

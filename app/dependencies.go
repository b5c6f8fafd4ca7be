package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/config"
	"github.com/igorhaf/orbit-ai-optimizer/models"
	"github.com/igorhaf/orbit-ai-optimizer/services/batch"
	"github.com/igorhaf/orbit-ai-optimizer/services/cache"
	"github.com/igorhaf/orbit-ai-optimizer/services/catalog"
	"github.com/igorhaf/orbit-ai-optimizer/services/experiment"
	"github.com/igorhaf/orbit-ai-optimizer/services/optimizer"
	"github.com/igorhaf/orbit-ai-optimizer/services/selector"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Redis  *redis.Client // nil when running on the in-process store

	// Services
	Catalog     *catalog.Catalog
	Cache       *cache.Service
	Batch       *batch.Service
	Selector    *selector.Service
	Experiments *experiment.Service
	Optimizer   *optimizer.Service

	// Invoker is the host-supplied provider call. When nil the optimize
	// endpoint is not mounted; selection, cache and batch endpoints
	// still work.
	Invoker models.Invoker
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initCatalog(); err != nil {
		return nil, fmt.Errorf("failed to initialize model catalog: %w", err)
	}

	if err := deps.initCache(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	deps.Batch = batch.NewService(cfg.Batch.MaxSize, cfg.Batch.MaxWait, logger)
	deps.Selector = selector.NewService(deps.Catalog, selector.Objective(cfg.Selector.DefaultObjective), logger)
	deps.Experiments = experiment.NewService(logger)
	deps.Optimizer = optimizer.NewService(deps.Cache, deps.Batch, deps.Selector, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initCatalog loads the model catalog, preferring the configured
// override file over the built-in table.
func (d *Dependencies) initCatalog() error {
	if path := d.Config.Selector.CatalogFile; path != "" {
		cat, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		d.Catalog = cat
		d.Logger.Info("model catalog loaded from file",
			zap.String("path", path),
			zap.Int("models", cat.Len()))
		return nil
	}

	d.Catalog = catalog.Default()
	d.Logger.Info("using built-in model catalog", zap.Int("models", d.Catalog.Len()))
	return nil
}

// initCache builds the cache service: Redis-backed when configured,
// in-process otherwise, with the embedder attached when the semantic
// level can run.
func (d *Dependencies) initCache(ctx context.Context) error {
	cfg := d.Config

	var store cache.Store
	if cfg.Cache.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		d.Redis = client
		store = cache.NewRedisStore(client, cfg.Cache.KeyPrefix)
		d.Logger.Info("cache backed by redis", zap.String("prefix", cfg.Cache.KeyPrefix))
	} else {
		store = cache.NewMemoryStore(cfg.Cache.MaxEntries)
		d.Logger.Info("cache backed by in-process store",
			zap.Int("max_entries", cfg.Cache.MaxEntries))
	}

	var embedder cache.Embedder
	if cfg.SemanticCacheUsable() {
		embedder = cache.NewOpenAIEmbedder(cfg.Embedding.OpenAIAPIKey, cfg.Embedding.Model)
		d.Logger.Info("semantic cache level enabled",
			zap.String("embedding_model", cfg.Embedding.Model))
	} else if cfg.Cache.SemanticEnabled {
		d.Logger.Warn("semantic cache level requested but no embedding API key configured")
	}

	costFn := func(model string, inputTokens, outputTokens int) float64 {
		info, err := d.Catalog.Get(model)
		if err != nil {
			return 0
		}
		return info.EstimateCost(inputTokens, outputTokens)
	}

	d.Cache = cache.NewService(store, embedder, cache.Config{
		Enabled:           cfg.Cache.Enabled,
		SemanticEnabled:   cfg.Cache.SemanticEnabled,
		TemplateEnabled:   cfg.Cache.TemplateEnabled,
		SemanticThreshold: cfg.Cache.SemanticThreshold,
		TTL:               cfg.Cache.TTL,
		MaxEntries:        cfg.Cache.MaxEntries,
	}, costFn, d.Logger)

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

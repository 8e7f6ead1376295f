// Package app wires configuration into the assistant's collaborators. The
// HTTP server and the CLI both build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cart"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/checkout"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/index"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/orders"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/storage"
)

const (
	memoryCacheEntries = 1000

	defaultOrderTimeout = 20 * time.Second
	// cartLockMargin covers the cart reads and writes around an order
	// submission.
	cartLockMargin = 30 * time.Second
)

// Options adjust wiring.
type Options struct {
	// Dev uses the mock embedder and in-process cart, lock and cache
	// instead of the embedding API and Redis.
	Dev bool
}

// App holds the wired collaborators.
type App struct {
	Config      *config.Config
	Logger      *observability.Logger
	Index       index.Index
	Embedder    embedding.Embedder
	ResultCache *retrieval.ResultCache
	Search      *retrieval.Engine
	Checkout    *checkout.Engine
	Service     *assistant.Service

	closers []func() error
}

// New builds an App. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	embedder, err := newEmbedder(cfg, opts)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	idx, err := index.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), storage.PoolConfig{
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open product index: %w", err)
	}
	a.Index = idx
	a.closers = append(a.closers, idx.Close)

	var (
		store       cart.Store
		marker      cart.OrderMarker
		locker      cart.Locker
		cacheClient cache.Client
	)

	if cfg.Redis.Enabled && !opts.Dev {
		rdb, err := cache.Dial(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)

		redisStore := cart.NewRedisStore(rdb, logger, cart.RedisConfig{
			Prefix:       cfg.Redis.Prefix,
			TTL:          cfg.Cart.TTL,
			OrderSentTTL: cfg.Cart.OrderSentTTL,
		})
		store, marker = redisStore, redisStore
		locker = cart.NewRedisLocker(rdb, cfg.Redis.Prefix, cartLockTTL(cfg))
		cacheClient = cache.NewRedisClient(rdb, cfg.Redis.Prefix)
		logger.Info().Str("addr", rdb.Options().Addr).Msg("Using Redis for carts and search cache")
	} else {
		memStore := cart.NewMemoryStore()
		store, marker = memStore, memStore
		locker = cart.NewKeyedMutex()
		mem := cache.NewMemoryClient(memoryCacheEntries)
		a.closers = append(a.closers, mem.Close)
		cacheClient = mem
		logger.Info().Msg("Using in-process carts and search cache")
	}

	rc := cfg.Retrieval
	a.ResultCache = retrieval.NewResultCache(cacheClient, logger, retrieval.ResultCacheConfig{
		TTL:     rc.CacheTTL,
		Enabled: rc.CacheResults,
	})
	a.Search = retrieval.NewEngine(embedder, idx, a.ResultCache, logger, retrieval.Config{
		Limit:            rc.Limit,
		LexicalWeight:    rc.LexicalWeight,
		SemanticWeight:   rc.SemanticWeight,
		SectorBoost:      rc.SectorBoost,
		RRFConstant:      rc.RRFConstant,
		MinScore:         rc.MinScore,
		RetryImprovement: rc.RetryImprovement,
		MaxRetryWords:    rc.MaxRetryWords,
	})

	submitter, err := newSubmitter(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Checkout = checkout.NewEngine(store, marker, locker, submitter, logger)
	a.Service = assistant.NewService(a.Search, store, marker, locker, a.Checkout, logger)
	return a, nil
}

// Pipeline returns a vectorization pipeline over the app's index.
func (a *App) Pipeline(cfg ingest.PipelineConfig) *ingest.Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = a.Config.Embedding.BatchSize
	}
	return ingest.NewPipeline(a.Logger, cfg, a.Embedder, a.Index, a.ResultCache)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// cartLockTTL outlives the longest order submission, since finalize holds
// the customer's lock across it.
func cartLockTTL(cfg *config.Config) time.Duration {
	timeout := cfg.Orders.Timeout
	if timeout <= 0 {
		timeout = defaultOrderTimeout
	}
	return timeout + cartLockMargin
}

func newEmbedder(cfg *config.Config, opts Options) (embedding.Embedder, error) {
	if opts.Dev {
		return embedding.NewMockClient(cfg.Embedding.Dimension), nil
	}
	return embedding.NewClient(embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimension:  cfg.Embedding.Dimension,
		Timeout:    cfg.Embedding.Timeout,
		MaxRetries: cfg.Embedding.MaxRetries,
	})
}

func newSubmitter(cfg *config.Config, logger *observability.Logger) (orders.Submitter, error) {
	if cfg.Orders.BaseURL == "" {
		logger.Warn().Msg("Order API not configured, checkout disabled")
		return orders.Unconfigured{}, nil
	}
	return orders.NewClient(orders.Config{
		BaseURL: cfg.Orders.BaseURL,
		Path:    cfg.Orders.Path,
		Token:   cfg.Orders.Token,
		Timeout: cfg.Orders.Timeout,
	}, logger)
}

package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

// ResultCache memoizes search outcomes. Catalog data only changes on
// re-vectorization, which calls Invalidate.
type ResultCache struct {
	client cache.Client
	logger *observability.Logger
	config ResultCacheConfig
}

// ResultCacheConfig configures the result cache.
type ResultCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Enabled   bool
}

// DefaultResultCacheConfig returns default cache configuration.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		TTL:       10 * time.Minute,
		KeyPrefix: "search:",
		Enabled:   true,
	}
}

// NewResultCache creates a result cache over client.
func NewResultCache(client cache.Client, logger *observability.Logger, config ResultCacheConfig) *ResultCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "search:"
	}
	if config.TTL == 0 {
		config.TTL = 10 * time.Minute
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ResultCache{client: client, logger: logger, config: config}
}

// CacheKey hashes the trimmed query, casing intact, and the limit: the same
// text that is enhanced and embedded.
func (c *ResultCache) CacheKey(query string, limit int) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(query) + "|" + strconv.Itoa(limit)))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:16])
}

type cachedOutcome struct {
	Outcome  *SearchOutcome `json:"outcome"`
	CachedAt time.Time      `json:"cached_at"`
}

// Get returns a cached outcome if available.
func (c *ResultCache) Get(ctx context.Context, query string, limit int) (*SearchOutcome, bool) {
	if c == nil || !c.config.Enabled || c.client == nil {
		return nil, false
	}

	key := c.CacheKey(query, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache get error")
		}
		return nil, false
	}

	var cached cachedOutcome
	if err := json.Unmarshal(data, &cached); err != nil || cached.Outcome == nil {
		c.logger.Debug().Str("key", key).Msg("Discarding undecodable cache entry")
		_ = c.client.Delete(ctx, key)
		return nil, false
	}

	cached.Outcome.Cached = true
	return cached.Outcome, true
}

// Set stores an outcome.
func (c *ResultCache) Set(ctx context.Context, query string, limit int, outcome *SearchOutcome) {
	if c == nil || !c.config.Enabled || c.client == nil || outcome == nil {
		return
	}

	data, err := json.Marshal(cachedOutcome{Outcome: outcome, CachedAt: time.Now()})
	if err != nil {
		c.logger.Debug().Err(err).Msg("Cache marshal error")
		return
	}

	key := c.CacheKey(query, limit)
	if err := c.client.Set(ctx, key, data, c.config.TTL); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache set error")
	}
}

// Invalidate drops every cached outcome.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.DeleteByPrefix(ctx, c.config.KeyPrefix)
}

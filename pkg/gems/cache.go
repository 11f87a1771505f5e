package gems

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gemyard/gemyard/pkg/observability"
)

const (
	gemKeyPrefix    = "gem:"
	latestKeyPrefix = "gem:latest:"

	defaultL1Size = 1024
)

// CachedStore layers an in-process LRU (L1) and Redis (L2) in front of a
// Store for the hot lookups: gem-by-name (target resolution) and latest
// version (delivery payloads). Writes invalidate both layers.
type CachedStore struct {
	store   Store
	redis   *redis.Client
	l1Gems  *lru.Cache[string, *Gem]
	l1Vers  *lru.Cache[string, *Version]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedStore wraps a store with the two cache layers. The redis client
// may be nil, leaving only the L1 cache active. A non-positive l1Size
// selects the default. Metrics may be nil.
func NewCachedStore(store Store, redisClient *redis.Client, ttl time.Duration, l1Size int, metrics *observability.Metrics) (*CachedStore, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if l1Size <= 0 {
		l1Size = defaultL1Size
	}

	l1Gems, err := lru.New[string, *Gem](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create gem cache: %w", err)
	}
	l1Vers, err := lru.New[string, *Version](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create version cache: %w", err)
	}

	return &CachedStore{
		store:   store,
		redis:   redisClient,
		l1Gems:  l1Gems,
		l1Vers:  l1Vers,
		ttl:     ttl,
		metrics: metrics,
	}, nil
}

func (c *CachedStore) recordHit(cache, kind string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cache, kind).Inc()
	}
}

func (c *CachedStore) recordMiss(cache, kind string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cache, kind).Inc()
	}
}

// CreateGem implements Store
func (c *CachedStore) CreateGem(ctx context.Context, gem *Gem) error {
	if err := c.store.CreateGem(ctx, gem); err != nil {
		return err
	}
	c.invalidateGem(ctx, gem.Name)
	return nil
}

// GetGem implements Store
func (c *CachedStore) GetGem(ctx context.Context, name string) (*Gem, error) {
	if gem, ok := c.l1Gems.Get(name); ok {
		c.recordHit("l1", "gem")
		return gem, nil
	}
	c.recordMiss("l1", "gem")

	if c.redis != nil {
		data, err := c.redis.Get(ctx, gemKeyPrefix+name).Result()
		if err == nil {
			var gem Gem
			if err := json.Unmarshal([]byte(data), &gem); err == nil {
				c.recordHit("redis", "gem")
				c.l1Gems.Add(name, &gem)
				return &gem, nil
			}
			// Corrupt entry, drop it
			c.redis.Del(ctx, gemKeyPrefix+name)
		}
		c.recordMiss("redis", "gem")
	}

	gem, err := c.store.GetGem(ctx, name)
	if err != nil {
		return nil, err
	}

	c.l1Gems.Add(name, gem)
	if c.redis != nil {
		if data, err := json.Marshal(gem); err == nil {
			c.redis.Set(ctx, gemKeyPrefix+name, data, c.ttl)
		}
	}
	return gem, nil
}

// CountGems implements Store
func (c *CachedStore) CountGems(ctx context.Context) (int64, error) {
	return c.store.CountGems(ctx)
}

// PublishVersion implements Store
func (c *CachedStore) PublishVersion(ctx context.Context, version *Version) error {
	if err := c.store.PublishVersion(ctx, version); err != nil {
		return err
	}
	c.invalidateVersion(ctx, version.GemName)
	return nil
}

// LatestVersion implements Store
func (c *CachedStore) LatestVersion(ctx context.Context, gemName string) (*Version, error) {
	if version, ok := c.l1Vers.Get(gemName); ok {
		c.recordHit("l1", "version")
		return version, nil
	}
	c.recordMiss("l1", "version")

	if c.redis != nil {
		data, err := c.redis.Get(ctx, latestKeyPrefix+gemName).Result()
		if err == nil {
			var version Version
			if err := json.Unmarshal([]byte(data), &version); err == nil {
				c.recordHit("redis", "version")
				c.l1Vers.Add(gemName, &version)
				return &version, nil
			}
			c.redis.Del(ctx, latestKeyPrefix+gemName)
		}
		c.recordMiss("redis", "version")
	}

	version, err := c.store.LatestVersion(ctx, gemName)
	if err != nil {
		return nil, err
	}

	c.l1Vers.Add(gemName, version)
	if c.redis != nil {
		if data, err := json.Marshal(version); err == nil {
			c.redis.Set(ctx, latestKeyPrefix+gemName, data, c.ttl)
		}
	}
	return version, nil
}

// MostRecent implements Store. Not cached: it backs only global test-fire.
func (c *CachedStore) MostRecent(ctx context.Context) (*Gem, *Version, error) {
	return c.store.MostRecent(ctx)
}

func (c *CachedStore) invalidateGem(ctx context.Context, name string) {
	c.l1Gems.Remove(name)
	if c.redis != nil {
		c.redis.Del(ctx, gemKeyPrefix+name)
	}
}

func (c *CachedStore) invalidateVersion(ctx context.Context, gemName string) {
	c.l1Vers.Remove(gemName)
	if c.redis != nil {
		c.redis.Del(ctx, latestKeyPrefix+gemName)
	}
}

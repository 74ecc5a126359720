// Package cache keeps resolved category subtrees in redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bookstore/catalog/internal/metrics"
	"github.com/bookstore/catalog/internal/query"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	generationKey = "catalog:category:gen"
	entryPrefix   = "catalog:category:descendants"
)

// NewClient connects to redis and checks the connection
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// HierarchyCache serves descendant-name sets from redis and falls back to
// the wrapped resolver on a miss. Entries are keyed by a generation number
// that Invalidate bumps, so every category write drops all cached subtrees.
// Redis failures degrade to uncached resolution.
type HierarchyCache struct {
	client  *redis.Client
	next    query.DescendantResolver
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewHierarchyCache wraps next with a redis cache
func NewHierarchyCache(client *redis.Client, next query.DescendantResolver, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *HierarchyCache {
	return &HierarchyCache{
		client:  client,
		next:    next,
		ttl:     ttl,
		metrics: m,
		log:     log,
	}
}

// ResolveDescendantNames implements query.DescendantResolver. Errors from the
// wrapped resolver, such as an unknown category, are never cached.
func (c *HierarchyCache) ResolveDescendantNames(ctx context.Context, rootName string) ([]string, error) {
	key, err := c.key(ctx, rootName)
	if err != nil {
		c.log.Warn("Hierarchy cache unavailable", zap.Error(err))
		return c.next.ResolveDescendantNames(ctx, rootName)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var names []string
		if err := json.Unmarshal(payload, &names); err == nil {
			c.metrics.CacheLookup(true)
			return names, nil
		}
		c.log.Warn("Dropping malformed hierarchy cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("Hierarchy cache read failed", zap.String("key", key), zap.Error(err))
	}
	c.metrics.CacheLookup(false)

	names, err := c.next.ResolveDescendantNames(ctx, rootName)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Hierarchy cache write failed", zap.String("key", key), zap.Error(err))
	}
	return names, nil
}

// Invalidate drops every cached subtree
func (c *HierarchyCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return fmt.Errorf("bump hierarchy generation: %w", err)
	}
	c.log.Debug("Hierarchy cache invalidated", zap.Int64("generation", gen))
	return nil
}

func (c *HierarchyCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *HierarchyCache) key(ctx context.Context, rootName string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return entryPrefix + ":" + strconv.FormatInt(gen, 10) + ":" + rootName, nil
}

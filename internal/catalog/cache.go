package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// Lookup is the read-side contract the cache wraps.
type Lookup interface {
	FindItemsByNameFragment(ctx context.Context, tenantID int64, fragment string) ([]Item, error)
}

// Cache is a Redis read-through layer over a catalog Lookup. Catalogs change
// rarely; a short TTL keeps lookups cheap without an invalidation protocol.
type Cache struct {
	inner  Lookup
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache wraps a lookup in a Redis read-through cache. A nil client
// disables caching and delegates directly.
func NewCache(inner Lookup, client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.WithComponent("catalog-cache"),
	}
}

// FindItemsByNameFragment serves from Redis when possible, otherwise loads
// from the inner lookup and caches the result. Cache faults fall back to the
// inner lookup; they never fail the request.
func (c *Cache) FindItemsByNameFragment(ctx context.Context, tenantID int64, fragment string) ([]Item, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if c.client == nil {
		return c.inner.FindItemsByNameFragment(ctx, tenantID, fragment)
	}

	key := cacheKey(tenantID, fragment)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var items []Item
		if jsonErr := json.Unmarshal([]byte(cached), &items); jsonErr == nil {
			return items, nil
		}
		// Corrupt entry, drop it and reload.
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("catalog cache read failed", "error", err, "key", key)
	}

	items, err := c.inner.FindItemsByNameFragment(ctx, tenantID, fragment)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(items); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("catalog cache write failed", "error", setErr, "key", key)
		}
	}

	return items, nil
}

func cacheKey(tenantID int64, fragment string) string {
	return fmt.Sprintf("catalog:%d:%s", tenantID, fragment)
}

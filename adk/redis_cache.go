package adk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a SchemaCache backed by Redis, used to memoize
// structured-output calls across process restarts or across replicas of
// the same service. This is an ambient cache for compiled schema
// results only - it is not workflow-state persistence (spec.md §6
// explicitly excludes that). Grounded on the go-redis/redis/v8 client
// construction pattern used in the example pack's gateway deduplication
// tests (jordigilh-kubernaut's test/unit/gateway/deduplication_test.go),
// generalized from a test fixture into production wiring.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing *redis.Client. ttl is how long a cached
// structured-output result stays valid; zero means no expiry.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements SchemaCache.
func (c *RedisCache) Get(ctx context.Context, key string) (map[string]interface{}, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Set implements SchemaCache.
func (c *RedisCache) Set(ctx context.Context, key string, value map[string]interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}

var _ SchemaCache = (*RedisCache)(nil)

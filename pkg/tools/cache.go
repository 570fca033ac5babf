package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casetutor/casetutor/pkg/errors"
)

// ResultCache memoizes tool results keyed by CacheKey. Implementations must
// be safe for concurrent use across sessions.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Clear(ctx context.Context) error
}

// CacheKey derives a deterministic key from a tool name and its arguments.
// encoding/json emits map keys in sorted order at every level, so two
// argument maps with the same content always hash identically.
func CacheKey(name string, args map[string]any) string {
	canonical, err := json.Marshal(args)
	if err != nil {
		// Unmarshalable arguments never hit the cache path twice anyway.
		canonical = []byte(time.Now().String())
	}
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process ResultCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ ResultCache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache is a Redis-backed ResultCache for deployments where tool
// results should survive restarts or be shared across replicas.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ResultCache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Config, "failed to connect to Redis"),
			errors.Fields{"addr": addr},
		)
	}

	return &RedisCache{client: client, prefix: "casetutor:tool:", ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	// Cache writes are best effort; a miss next time just re-executes.
	_ = c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, errors.Provider, "failed to clear Redis cache")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, errors.Provider, "failed to scan Redis cache")
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error { return c.client.Close() }

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// CacheVersionPrefix holds one counter per collection; bumping it orphans
	// every cached list of that collection.
	CacheVersionPrefix = "cachever:"
	// DefaultCacheTTL applies when no TTL is configured
	DefaultCacheTTL = 5 * time.Minute
	// MaxCacheTTL caps any configured TTL
	MaxCacheTTL = time.Hour
)

// CacheService caches catalog list responses in Redis. A nil *CacheService
// is valid and caches nothing.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, ttl time.Duration) *CacheService {
	if client == nil {
		return nil
	}
	return &CacheService{client: client, ttl: clampTTL(ttl)}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultCacheTTL
	}
	if ttl > MaxCacheTTL {
		return MaxCacheTTL
	}
	return ttl
}

// Get retrieves a value from cache. A miss is (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value in cache with the service TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil {
		return nil
	}
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with custom TTL (clamped to MaxCacheTTL)
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKeyPrefix+key, jsonData, clampTTL(ttl)).Err()
}

// Version returns the current cache generation of a collection.
func (c *CacheService) Version(ctx context.Context, collection string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	v, err := c.client.Get(ctx, CacheVersionPrefix+collection).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Invalidate drops every cached list of collection by bumping its version.
func (c *CacheService) Invalidate(ctx context.Context, collection string) error {
	if c == nil {
		return nil
	}
	return c.client.Incr(ctx, CacheVersionPrefix+collection).Err()
}

// ListKey generates a cache key for one list query of a collection.
// Parameters are canonicalised, so ordering in the URL does not matter.
func ListKey(collection string, version int64, params url.Values) string {
	sum := sha256.Sum256([]byte(params.Encode()))
	return fmt.Sprintf("list:%s:v%d:%s", collection, version, hex.EncodeToString(sum[:12]))
}

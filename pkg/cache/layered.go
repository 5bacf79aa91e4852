package cache

import (
	"context"
	"time"
)

// LayeredCache fronts Redis with the in-process MemoryCache. Reads hit
// memory first and promote Redis values on a miss; writes go through to
// both layers so restarts only lose the hot set.
type LayeredCache struct {
	memory *MemoryCache
	redis  *RedisCache
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	memOpts := []MemoryOption{}
	if cfg.MemoryMaxSize > 0 {
		memOpts = append(memOpts, WithMemoryMaxSize(cfg.MemoryMaxSize))
	}

	return &LayeredCache{
		memory: NewMemoryCache(memOpts...),
		redis:  redisCache,
	}
}

// Close releases both layers.
func (c *LayeredCache) Close() error {
	c.memory.Close()
	return c.redis.Close()
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return c.memory.Set(ctx, key, value, expiration)
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.memory.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := c.redis.Get(ctx, key, dest); err != nil {
		return err
	}

	// Promote. Strings are stored dereferenced so the memory fast path
	// keeps working on the next read.
	var value interface{} = dest
	if p, ok := dest.(*string); ok {
		value = *p
	}
	_ = c.memory.Set(ctx, key, value, 0)
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	memErr := c.memory.Delete(ctx, keys...)
	if err := c.redis.Delete(ctx, keys...); err != nil {
		return err
	}
	return memErr
}

func (c *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	memErr := c.memory.DeleteByPattern(ctx, pattern)
	if err := c.redis.DeleteByPattern(ctx, pattern); err != nil {
		return err
	}
	return memErr
}

// Exists consults Redis only; memory is a subset of it.
func (c *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return c.redis.Exists(ctx, keys...)
}

// Expire adjusts the Redis TTL and drops the memory copy so a shortened
// lifetime cannot be outlived locally.
func (c *LayeredCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	_ = c.memory.Delete(ctx, key)
	return c.redis.Expire(ctx, key, expiration)
}

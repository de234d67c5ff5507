// Package cache keeps the global goal list in Redis so repeated reads skip the
// projection scan.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/existflow/goalpost/internal/model"
)

const keyGlobal = "goalpost:goals:global"

// GoalCache caches the global list. It satisfies goals.ListCache.
type GoalCache struct {
	rdb *redis.Client
	ttl time.Duration
	key string
}

// NewGoalCache returns a cache over rdb. A non-positive ttl keeps entries until invalidated.
func NewGoalCache(rdb *redis.Client, ttl time.Duration) *GoalCache {
	return &GoalCache{rdb: rdb, ttl: ttl, key: keyGlobal}
}

// Open connects to the Redis server at addr and checks it answers
func Open(ctx context.Context, addr string, ttl time.Duration) (*GoalCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewGoalCache(rdb, ttl), nil
}

// WithPrefix returns a copy of c that stores under a separate key, for tests
// and for servers sharing one Redis
func (c *GoalCache) WithPrefix(prefix string) *GoalCache {
	cp := *c
	cp.key = prefix + ":" + keyGlobal
	return &cp
}

// GetGlobal returns the cached list; ok is false on a miss
func (c *GoalCache) GetGlobal(ctx context.Context) ([]model.Goal, bool, error) {
	b, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list []model.Goal
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// SetGlobal stores the list
func (c *GoalCache) SetGlobal(ctx context.Context, list []model.Goal) error {
	if list == nil {
		list = []model.Goal{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, c.key, b, ttl).Err()
}

// Invalidate drops the cached list
func (c *GoalCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}

// Close closes the Redis connection
func (c *GoalCache) Close() error {
	return c.rdb.Close()
}

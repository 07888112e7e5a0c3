package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "authz:level:"

// LevelCache caches resolved levels in Redis for a short TTL. The TTL is
// the grace window within which a just-expired or just-revoked override
// may still be observed; mutating operations invalidate eagerly so the
// window only matters for cleanup sweeps racing with resolution.
type LevelCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLevelCache constructs a LevelCache. A non-positive TTL defaults to
// 30 seconds.
func NewLevelCache(client *redis.Client, ttl time.Duration) *LevelCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LevelCache{client: client, ttl: ttl}
}

func (c *LevelCache) key(userID int64, key Key) string {
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, userID, key)
}

// Get returns a cached resolution. Cache failures degrade to a miss.
func (c *LevelCache) Get(ctx context.Context, userID int64, key Key) (Resolution, bool) {
	if c == nil || c.client == nil {
		return Resolution{}, false
	}
	payload, err := c.client.Get(ctx, c.key(userID, key)).Bytes()
	if err != nil {
		return Resolution{}, false
	}
	var res Resolution
	if err := json.Unmarshal(payload, &res); err != nil {
		return Resolution{}, false
	}
	return res, true
}

// Set stores a resolution. When the level comes from a temporal override
// the entry TTL is capped at the override expiry so a stale allow can
// never outlive the hard deadline plus the grace window.
func (c *LevelCache) Set(ctx context.Context, userID int64, key Key, res Resolution) {
	if c == nil || c.client == nil {
		return
	}
	ttl := c.ttl
	if res.ExpiresAt != nil {
		if remaining := time.Until(*res.ExpiresAt); remaining < ttl {
			if remaining <= 0 {
				return
			}
			ttl = remaining
		}
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(userID, key), payload, ttl).Err()
}

// InvalidateUser drops every cached resolution for one user.
func (c *LevelCache) InvalidateUser(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}
	c.deleteByPattern(ctx, fmt.Sprintf("%s%d:*", cacheKeyPrefix, userID))
}

// Flush drops every cached resolution. Used after propagation and
// template edits, which affect an unbounded set of users.
func (c *LevelCache) Flush(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	c.deleteByPattern(ctx, cacheKeyPrefix+"*")
}

func (c *LevelCache) deleteByPattern(ctx context.Context, pattern string) {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}

package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buildin7days/entitlements/internal/logging"
)

// TeamCache remembers slug -> team id resolutions. Implementations swallow
// their own failures: a cache miss only costs a lookup call.
type TeamCache interface {
	Get(ctx context.Context, slug string) (int64, bool)
	Set(ctx context.Context, slug string, id int64)
	Delete(ctx context.Context, slug string)
}

type teamEntry struct {
	id        int64
	expiresAt time.Time
}

type MemoryTeamCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]teamEntry
	now     func() time.Time
}

func NewMemoryTeamCache(ttl time.Duration) *MemoryTeamCache {
	return &MemoryTeamCache{
		ttl:     ttl,
		entries: make(map[string]teamEntry),
		now:     time.Now,
	}
}

func (c *MemoryTeamCache) Get(_ context.Context, slug string) (int64, bool) {
	c.mu.RLock()
	e, ok := c.entries[slug]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[slug]; ok && cur == e {
			delete(c.entries, slug)
		}
		c.mu.Unlock()
		return 0, false
	}
	return e.id, true
}

func (c *MemoryTeamCache) Set(_ context.Context, slug string, id int64) {
	c.mu.Lock()
	c.entries[slug] = teamEntry{id: id, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *MemoryTeamCache) Delete(_ context.Context, slug string) {
	c.mu.Lock()
	delete(c.entries, slug)
	c.mu.Unlock()
}

// RedisTeamCache shares resolutions between replicas.
type RedisTeamCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisTeamCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisTeamCache {
	return &RedisTeamCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisTeamCache) Get(ctx context.Context, slug string) (int64, bool) {
	id, err := c.client.Get(ctx, c.prefix+slug).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		logging.FromContext(ctx).Warn("team cache read failed", "team_slug", slug, "error", err)
		return 0, false
	}
	return id, true
}

func (c *RedisTeamCache) Set(ctx context.Context, slug string, id int64) {
	if err := c.client.Set(ctx, c.prefix+slug, id, c.ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("team cache write failed", "team_slug", slug, "error", err)
	}
}

func (c *RedisTeamCache) Delete(ctx context.Context, slug string) {
	if err := c.client.Del(ctx, c.prefix+slug).Err(); err != nil {
		logging.FromContext(ctx).Warn("team cache delete failed", "team_slug", slug, "error", err)
	}
}

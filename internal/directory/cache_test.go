package directory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTeamCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryTeamCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx, "team")
	assert.False(t, ok)

	c.Set(ctx, "team", 42)
	id, ok := c.Get(ctx, "team")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	now = now.Add(59 * time.Second)
	_, ok = c.Get(ctx, "team")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "team")
	assert.False(t, ok)
	assert.Empty(t, c.entries)
}

func TestMemoryTeamCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryTeamCache(time.Hour)

	c.Set(ctx, "team", 1)
	c.Set(ctx, "team", 2)

	id, ok := c.Get(ctx, "team")
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestMemoryTeamCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryTeamCache(time.Hour)

	c.Set(ctx, "team", 1)
	c.Delete(ctx, "team")
	c.Delete(ctx, "never-set")

	_, ok := c.Get(ctx, "team")
	assert.False(t, ok)
	assert.Empty(t, c.entries)
}

// setupTestRedis connects to REDIS_ADDR (default localhost:6379) and skips the
// test when no server answers.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test database: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisTeamCache(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	c := NewRedisTeamCache(client, "test:team:BuildIn7Days:", time.Minute)

	_, ok := c.Get(ctx, "team")
	assert.False(t, ok)

	c.Set(ctx, "team", 4242)
	id, ok := c.Get(ctx, "team")
	require.True(t, ok)
	assert.Equal(t, int64(4242), id)

	ttl, err := client.TTL(ctx, "test:team:BuildIn7Days:team").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisTeamCache_Delete(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	c := NewRedisTeamCache(client, "test:team:", time.Minute)

	c.Set(ctx, "team", 4242)
	c.Delete(ctx, "team")

	_, ok := c.Get(ctx, "team")
	assert.False(t, ok)
	n, err := client.Exists(ctx, "test:team:team").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisTeamCache_UnreachableServerMisses(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	c := NewRedisTeamCache(client, "test:", time.Minute)
	ctx := context.Background()

	c.Set(ctx, "team", 1)
	_, ok := c.Get(ctx, "team")
	assert.False(t, ok)
}

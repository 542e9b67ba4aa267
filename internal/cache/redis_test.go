package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
)

// unreachableCache points at a port nothing listens on
func unreachableCache(t *testing.T) *ResultCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	rc := NewWithClient(client, config.GetDefaults().Cache, logger.NewNop())
	t.Cleanup(func() { rc.Close() })
	return rc
}

func TestKey(t *testing.T) {
	rc := unreachableCache(t)

	key := rc.Key("reach me at [email] today")
	assert.True(t, strings.HasPrefix(key, "mail-sentinel:cls:"))
	assert.Len(t, strings.TrimPrefix(key, "mail-sentinel:cls:"), 64)
	assert.Equal(t, key, rc.Key("reach me at [email] today"))
	assert.NotEqual(t, key, rc.Key("reach me at [phone_number] today"))
	assert.NotContains(t, key, "email")
}

func TestGet_RedisUnavailable(t *testing.T) {
	rc := unreachableCache(t)

	category, ok := rc.Get(context.Background(), "hello")
	assert.False(t, ok)
	assert.Empty(t, category)

	err := rc.Set(context.Background(), "hello", "Request")
	assert.Error(t, err)

	stats := rc.localStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Errors)
	assert.Zero(t, stats.HitRate)
}

func TestNewResultCache_BadURL(t *testing.T) {
	cfg := config.GetDefaults().Cache
	cfg.RedisURL = "not-a-redis-url"
	_, err := NewResultCache(cfg, logger.NewNop())
	require.Error(t, err)
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	assert.Equal(t, int64(1048576), parseUsedMemory(info))
	assert.Equal(t, int64(0), parseUsedMemory("# Memory\r\n"))
}

func TestMaskRedisURL(t *testing.T) {
	assert.Equal(t, "redis://:xxxxx@localhost:6379/0", maskRedisURL("redis://:secret@localhost:6379/0"))
	assert.Equal(t, "redis://localhost:6379/0", maskRedisURL("redis://localhost:6379/0"))
}

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
)

// ResultCache caches predicted categories in Redis. Keys are derived from the masked
// email text, so raw PII never reaches the cache.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewResultCache connects to Redis and verifies the connection
func NewResultCache(cfg config.CacheConfig, log *logger.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	cache := NewWithClient(redis.NewClient(opts), cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return cache, nil
}

// NewWithClient wraps an existing Redis client
func NewWithClient(client *redis.Client, cfg config.CacheConfig, log *logger.Logger) *ResultCache {
	return &ResultCache{
		client: client,
		config: cfg,
		logger: log.WithComponent("cache"),
	}
}

// Ping tests the Redis connection
func (rc *ResultCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get looks up the category cached for a masked email. Redis failures count as misses.
func (rc *ResultCache) Get(ctx context.Context, maskedText string) (string, bool) {
	key := rc.Key(maskedText)

	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		rc.misses.Add(1)
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return "", false
	}
	if err != nil {
		rc.errors.Add(1)
		rc.logger.Warn("Cache lookup failed", zap.Error(err))
		return "", false
	}

	var cached CachedResult
	if err := json.Unmarshal(data, &cached); err != nil || cached.Category == "" {
		rc.errors.Add(1)
		rc.logger.Warn("Dropping corrupted cache entry", zap.String("key", key))
		rc.client.Del(ctx, key)
		return "", false
	}

	rc.hits.Add(1)
	rc.logger.Debug("Cache hit", zap.String("key", key), zap.String("category", cached.Category))
	return cached.Category, true
}

// Set caches the category predicted for a masked email
func (rc *ResultCache) Set(ctx context.Context, maskedText, category string) error {
	key := rc.Key(maskedText)

	data, err := json.Marshal(CachedResult{
		Category: category,
		CachedAt: time.Now(),
		TTL:      int64(rc.config.DefaultTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cached result: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.config.DefaultTTL).Err(); err != nil {
		rc.errors.Add(1)
		return fmt.Errorf("failed to cache result: %w", err)
	}

	rc.logger.Debug("Result cached", zap.String("key", key), zap.String("category", category))
	return nil
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats(ctx context.Context) (*CacheStats, error) {
	stats := rc.localStats()

	info, err := rc.client.Info(ctx, "memory").Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get Redis info: %w", err)
	}
	stats.MemoryUsage = parseUsedMemory(info)

	if keys, err := rc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

func (rc *ResultCache) localStats() *CacheStats {
	stats := &CacheStats{
		Hits:   rc.hits.Load(),
		Misses: rc.misses.Load(),
		Errors: rc.errors.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	return stats
}

// Clear removes every key under the cache prefix
func (rc *ResultCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.config.KeyPrefix+":*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// Key builds the cache key for a masked email
func (rc *ResultCache) Key(maskedText string) string {
	hash := sha256.Sum256([]byte(maskedText))
	return fmt.Sprintf("%s:cls:%s", rc.config.KeyPrefix, hex.EncodeToString(hash[:]))
}

// parseUsedMemory extracts used_memory from a Redis INFO reply
func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				return mem
			}
		}
	}
	return 0
}

// maskRedisURL hides the password in a Redis URL for logging
func maskRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	return u.Redacted()
}

package security

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/mail-sentinel/internal/config"
)

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	config  config.RateLimitConfig
	buckets map[string]*clientBucket
	mu      sync.Mutex
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		buckets: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// Allow checks if a request from the given client is allowed
func (r *RateLimiter) Allow(clientID string) bool {
	if !r.config.Enabled {
		return true
	}

	now := r.now()
	return r.getBucket(clientID, now).AllowN(now, 1)
}

// RetryAfter estimates how long the client should wait before its next request
func (r *RateLimiter) RetryAfter() time.Duration {
	if r.config.RequestsPerMin <= 0 {
		return time.Minute
	}
	return time.Minute / time.Duration(r.config.RequestsPerMin)
}

// getBucket gets or creates the limiter for a client
func (r *RateLimiter) getBucket(clientID string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.buckets[clientID]
	if !exists {
		perSecond := rate.Limit(float64(r.config.RequestsPerMin) / 60.0)
		bucket = &clientBucket{limiter: rate.NewLimiter(perSecond, r.config.Burst)}
		r.buckets[clientID] = bucket
	}
	bucket.lastSeen = now

	return bucket.limiter
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// CleanupOldBuckets removes buckets idle for longer than maxIdle
func (r *RateLimiter) CleanupOldBuckets(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, bucket := range r.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(r.buckets, id)
			removed++
		}
	}

	return removed
}

// StartCleanupRoutine periodically drops idle buckets until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupOldBuckets(time.Hour)
			}
		}
	}()
}

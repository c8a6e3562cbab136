package router

import (
	"math"
	"sync"
	"time"
)

// BucketConfig is a token bucket's rate/burst configuration (spec.md §4.4.3).
type BucketConfig struct {
	Rate  float64 // tokens per second
	Burst float64 // max tokens
}

// DefaultBucketConfig is the spec's default: {rate:10/s, burst:20}.
var DefaultBucketConfig = BucketConfig{Rate: 10, Burst: 20}

type bucket struct {
	cfg          BucketConfig
	tokens       float64
	lastRefillAt time.Time
}

// RateLimiter implements a continuous-refill token bucket per server_id
// (spec.md §3 Bucket, §4.4.3). Buckets are created lazily on first access.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter builds an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket)}
}

func (r *RateLimiter) bucketFor(serverID string) *bucket {
	b, ok := r.buckets[serverID]
	if !ok {
		b = &bucket{cfg: DefaultBucketConfig, tokens: DefaultBucketConfig.Burst, lastRefillAt: time.Now()}
		r.buckets[serverID] = b
	}
	return b
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefillAt).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.cfg.Burst, b.tokens+elapsed*b.cfg.Rate)
	b.lastRefillAt = now
}

// Consume attempts to deduct one token from serverID's bucket. On denial,
// retryAfterMs is the spec's ceil((1-tokens)/rate × 1000).
func (r *RateLimiter) Consume(serverID string) (allowed bool, retryAfterMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bucketFor(serverID)
	b.refill(time.Now())

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	deficitSec := (1 - b.tokens) / b.cfg.Rate
	return false, int64(math.Ceil(deficitSec * 1000))
}

// Configure swaps serverID's bucket configuration, creating the bucket if
// absent (spec.md §4.4.3 configure).
func (r *RateLimiter) Configure(serverID string, cfg BucketConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[serverID]
	if !ok {
		r.buckets[serverID] = &bucket{cfg: cfg, tokens: cfg.Burst, lastRefillAt: time.Now()}
		return
	}
	b.cfg = cfg
	if b.tokens > cfg.Burst {
		b.tokens = cfg.Burst
	}
}

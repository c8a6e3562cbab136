package router

import (
	"testing"
	"time"
)

func TestRateLimiter_ConsumesFromBurst(t *testing.T) {
	r := NewRateLimiter()
	r.Configure("github", BucketConfig{Rate: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		allowed, _ := r.Consume("github")
		if !allowed {
			t.Fatalf("Consume() call %d = denied, want allowed (within burst)", i+1)
		}
	}

	allowed, retryAfterMs := r.Consume("github")
	if allowed {
		t.Error("Consume() after burst exhausted = allowed, want denied")
	}
	if retryAfterMs <= 0 {
		t.Errorf("retryAfterMs = %d, want > 0", retryAfterMs)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	r := NewRateLimiter()
	r.Configure("github", BucketConfig{Rate: 100, Burst: 1})

	allowed, _ := r.Consume("github")
	if !allowed {
		t.Fatal("first Consume() = denied, want allowed")
	}

	allowed, _ = r.Consume("github")
	if allowed {
		t.Fatal("second immediate Consume() = allowed, want denied")
	}

	time.Sleep(15 * time.Millisecond) // ~1.5 tokens at rate=100/s

	allowed, _ = r.Consume("github")
	if !allowed {
		t.Error("Consume() after refill window = denied, want allowed")
	}
}

func TestRateLimiter_PerServerIsolation(t *testing.T) {
	r := NewRateLimiter()
	r.Configure("github", BucketConfig{Rate: 1, Burst: 1})
	r.Configure("slack", BucketConfig{Rate: 1, Burst: 1})

	r.Consume("github")
	allowed, _ := r.Consume("slack")
	if !allowed {
		t.Error("slack bucket exhausted by github consumption; buckets must be isolated")
	}
}

func TestRateLimiter_ConfigureClampsExistingTokens(t *testing.T) {
	r := NewRateLimiter()
	r.Configure("github", BucketConfig{Rate: 1, Burst: 20})
	r.Configure("github", BucketConfig{Rate: 1, Burst: 2})

	consumed := 0
	for i := 0; i < 10; i++ {
		allowed, _ := r.Consume("github")
		if !allowed {
			break
		}
		consumed++
	}
	if consumed > 2 {
		t.Errorf("consumed %d tokens immediately after reconfigure to burst=2, want <= 2", consumed)
	}
}

func TestRateLimiter_DefaultBucketConfig(t *testing.T) {
	r := NewRateLimiter()

	consumed := 0
	for i := 0; i < int(DefaultBucketConfig.Burst)+5; i++ {
		allowed, _ := r.Consume("unconfigured-server")
		if !allowed {
			break
		}
		consumed++
	}
	if consumed != int(DefaultBucketConfig.Burst) {
		t.Errorf("consumed %d tokens before denial, want burst=%v", consumed, DefaultBucketConfig.Burst)
	}
}

package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkkmi/andikar-gate/adapters/memory"
	"github.com/pkkmi/andikar-gate/domain/ratelimit"
)

func TestRateLimitStore_EnforcesLimit(t *testing.T) {
	store := memory.NewRateLimitStore(memory.RateLimitConfig{NumShards: 4})
	defer store.Close()

	cfg := ratelimit.Config{Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Take(ctx, "u1", cfg, baseTime)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Allowed {
			t.Fatalf("call %d denied, want allowed", i+1)
		}
	}

	result, err := store.Take(ctx, "u1", cfg, baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("4th call allowed, want denied")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want within (0, 1m]", result.RetryAfter)
	}
}

func TestRateLimitStore_WindowExpiryResets(t *testing.T) {
	store := memory.NewRateLimitStore(memory.RateLimitConfig{NumShards: 4})
	defer store.Close()

	cfg := ratelimit.Config{Limit: 1, Window: time.Minute}
	ctx := context.Background()

	store.Take(ctx, "u1", cfg, baseTime)
	if result, _ := store.Take(ctx, "u1", cfg, baseTime); result.Allowed {
		t.Fatal("2nd call in window allowed, want denied")
	}

	later := baseTime.Add(2 * time.Minute)
	if result, _ := store.Take(ctx, "u1", cfg, later); !result.Allowed {
		t.Error("call in fresh window denied, want allowed")
	}
}

func TestRateLimitStore_UsersAreIndependent(t *testing.T) {
	store := memory.NewRateLimitStore(memory.RateLimitConfig{NumShards: 4})
	defer store.Close()

	cfg := ratelimit.Config{Limit: 1, Window: time.Minute}
	ctx := context.Background()

	store.Take(ctx, "u1", cfg, baseTime)
	if result, _ := store.Take(ctx, "u2", cfg, baseTime); !result.Allowed {
		t.Error("u2's first call denied by u1's usage")
	}
}

func TestRateLimitStore_ConcurrentTakesNeverOvershoot(t *testing.T) {
	store := memory.NewRateLimitStore(memory.RateLimitConfig{NumShards: 4})
	defer store.Close()

	cfg := ratelimit.Config{Limit: 10, Window: time.Minute}
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			result, _ := store.Take(ctx, "u1", cfg, baseTime)
			if result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 10 {
		t.Errorf("allowed = %d, want exactly 10", allowed.Load())
	}
}

func TestRateLimitStore_CloseIsIdempotent(t *testing.T) {
	store := memory.NewRateLimitStore(memory.RateLimitConfig{NumShards: 2})
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
}

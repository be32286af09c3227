package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"gamezipserver/internal/common/cache"
	pkgerrors "gamezipserver/pkg/errors"
)

func newMiniredisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisCache, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new redis cache failed: %v", err)
	}
	return redisCache, mr
}

func TestAllowWithinLimit(t *testing.T) {
	redisCache, _ := newMiniredisCache(t)
	svc := NewRateLimitService(redisCache, time.Minute, time.Second)

	for i := 0; i < 3; i++ {
		if err := svc.Allow(t.Context(), "gamezip:rate:route:mount", 3, time.Minute); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
	}
}

func TestAllowOverLimit(t *testing.T) {
	redisCache, _ := newMiniredisCache(t)
	svc := NewRateLimitService(redisCache, time.Minute, time.Second)

	key := "gamezip:rate:ip:192.0.2.1:mount"
	for i := 0; i < 2; i++ {
		if err := svc.Allow(t.Context(), key, 2, time.Minute); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
	}

	err := svc.Allow(t.Context(), key, 2, time.Minute)
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if pkgerrors.GetCode(err) != pkgerrors.TooManyRequests {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestAllowWindowExpiry(t *testing.T) {
	redisCache, mr := newMiniredisCache(t)
	svc := NewRateLimitService(redisCache, time.Minute, time.Second)

	key := "gamezip:rate:route:mount"
	if err := svc.Allow(t.Context(), key, 1, time.Minute); err != nil {
		t.Fatalf("first attempt rejected: %v", err)
	}
	if err := svc.Allow(t.Context(), key, 1, time.Minute); err == nil {
		t.Fatalf("expected rejection inside window")
	}

	mr.FastForward(time.Minute + time.Second)

	if err := svc.Allow(t.Context(), key, 1, time.Minute); err != nil {
		t.Fatalf("attempt after window rejected: %v", err)
	}
}

func TestAllowZeroMaxDisablesLimit(t *testing.T) {
	redisCache, _ := newMiniredisCache(t)
	svc := NewRateLimitService(redisCache, time.Minute, time.Second)

	for i := 0; i < 10; i++ {
		if err := svc.Allow(t.Context(), "gamezip:rate:route:open", 0, time.Minute); err != nil {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}
}

func TestAllowNoCache(t *testing.T) {
	svc := NewRateLimitService(nil, time.Minute, time.Second)
	err := svc.Allow(t.Context(), "gamezip:rate:route:x", 1, time.Minute)
	if pkgerrors.GetCode(err) != pkgerrors.ServiceUnavailable {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllowRepairsMissingTTL(t *testing.T) {
	redisCache, mr := newMiniredisCache(t)
	svc := NewRateLimitService(redisCache, time.Minute, time.Second)

	key := "gamezip:rate:route:repair"
	if err := svc.Allow(t.Context(), key, 5, time.Minute); err != nil {
		t.Fatalf("first attempt rejected: %v", err)
	}
	// Simulate a key that lost its expiry.
	mr.SetTTL(key, 0)

	if err := svc.Allow(t.Context(), key, 5, time.Minute); err != nil {
		t.Fatalf("second attempt rejected: %v", err)
	}
	if mr.TTL(key) <= 0 {
		t.Fatalf("expiry was not restored")
	}
}

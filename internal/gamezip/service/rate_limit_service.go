package service

import (
	"context"
	"time"

	"gamezipserver/internal/common/cache"
	pkgerrors "gamezipserver/pkg/errors"
)

// RateLimitService counts requests per key in fixed windows backed by
// Redis. A key's first hit creates the counter with the window as TTL;
// later hits increment it. When the counter passes max the caller gets
// a TooManyRequests error until the window expires.
type RateLimitService struct {
	counters      cache.CounterStore
	defaultWindow time.Duration
	opTimeout     time.Duration
}

func NewRateLimitService(counters cache.CounterStore, window, opTimeout time.Duration) *RateLimitService {
	if window <= 0 {
		window = time.Minute
	}
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &RateLimitService{counters: counters, defaultWindow: window, opTimeout: opTimeout}
}

// Allow records one hit for key and reports whether it stays within
// max. A max of zero or below disables the limit for this call.
func (s *RateLimitService) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if s.counters == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = s.defaultWindow
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	count, err := s.hit(opCtx, key, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	if count > int64(max) {
		return pkgerrors.Newf(pkgerrors.TooManyRequests, "rate limit exceeded for %s", key)
	}
	return nil
}

// hit bumps the window counter for key and returns its value. SetNX
// creates counter and TTL atomically for the first hit; the TTL check
// afterwards repairs counters that lost their expiry, so a key can
// never get stuck over the limit forever.
func (s *RateLimitService) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	created, err := s.counters.SetNX(ctx, key, 1, window)
	if err != nil {
		return 0, err
	}
	if created {
		return 1, nil
	}

	count, err := s.counters.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if ttl, err := s.counters.TTL(ctx, key); err == nil && ttl <= 0 {
		_ = s.counters.Expire(ctx, key, window)
	}
	return count, nil
}

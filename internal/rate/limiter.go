package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptKeyPrefix = "ala:"

// Config holds lockout tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces the per-email failed-login budget using fixed-window
// Redis counters. Counters expire on their own, so a quiet account costs
// nothing.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func attemptKey(email string) string {
	return attemptKeyPrefix + email
}

// IsLocked reports whether the email has exhausted its attempt budget.
// Missing counters read as zero and do not reveal account existence.
func (l *Limiter) IsLocked(ctx context.Context, email string) (bool, error) {
	count, err := l.redis.Get(ctx, attemptKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count >= int64(l.config.MaxAttempts), nil
}

// RecordFailure counts a failed login attempt and returns the counter value
// after the increment. The increment and the window TTL travel in one
// pipeline so a crash between them cannot leave an immortal counter.
//
// Performance: one Redis round trip.
func (l *Limiter) RecordFailure(ctx context.Context, email string) (int64, error) {
	key := attemptKey(email)

	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// NX keeps the window anchored at the first failure.
		pipe.ExpireNX(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return incr.Val(), nil
}

// Reset clears the failed-attempt counter for an email. Called after a
// successful login or a completed password reset.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, attemptKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter value for an email.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, attemptKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

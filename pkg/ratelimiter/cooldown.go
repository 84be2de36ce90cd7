package ratelimiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"crawford.app/podcastserver/pkg/apperror"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitError reports a cooldown that is still running.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("please wait %d seconds before trying to %s again", e.RetryAfterSeconds(), e.Action)
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// Cooldown allows a user to perform an action at most once per window.
// A nil Cooldown or one without a redis client allows everything.
type Cooldown struct {
	rdb    *redis.Client
	window time.Duration
}

func NewCooldown(rdb *redis.Client, window time.Duration) *Cooldown {
	return &Cooldown{rdb: rdb, window: window}
}

func key(userID uint, action string) string {
	return fmt.Sprintf("rate_limit:user:%d:%s", userID, action)
}

// Acquire marks the action as taken. The returned release func clears the mark
// and should be called when the action fails, so a failed attempt costs nothing.
func (c *Cooldown) Acquire(ctx context.Context, userID uint, action string) (func(), error) {
	noop := func() {}
	if c == nil || c.rdb == nil || c.window <= 0 {
		return noop, nil
	}

	k := key(userID, action)
	wasSet, err := c.rdb.SetNX(ctx, k, "locked", c.window).Result()
	if err != nil {
		// redis outage must not block publishing
		zap.L().Warn("cooldown check failed, allowing request", zap.String("key", k), zap.Error(err))
		return noop, nil
	}

	if !wasSet {
		ttl, err := c.rdb.TTL(ctx, k).Result()
		if err != nil || ttl <= 0 {
			ttl = c.window
		}
		return noop, &RateLimitError{Action: action, RetryAfter: ttl}
	}

	return func() {
		if err := c.rdb.Del(context.Background(), k).Err(); err != nil {
			zap.L().Warn("failed to clear cooldown", zap.String("key", k), zap.Error(err))
		}
	}, nil
}

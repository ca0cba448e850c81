package ratelimiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Redis is a GCRA limiter shared by every instance through Redis.
type Redis struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedis creates a Redis-backed limiter. Keys are stored under prefix.
func NewRedis(rdb *redis.Client, limit Limit, prefix string) (*Redis, error) {
	if !limit.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidLimit, limit)
	}
	return &Redis{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.Limit{Rate: limit.Rate, Burst: limit.Burst, Period: limit.Period},
		prefix:  prefix,
	}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, r.limit)
	if err != nil {
		return Result{}, errors.Join(ErrStoreUnavailable, err)
	}
	out := Result{Allowed: res.Allowed > 0, Remaining: res.Remaining}
	if !out.Allowed {
		out.RetryAfter = res.RetryAfter
	}
	return out, nil
}

// Fallback uses secondary whenever primary fails.
type Fallback struct {
	Primary   Limiter
	Secondary Limiter
}

func (f Fallback) Allow(ctx context.Context, key string) (Result, error) {
	res, err := f.Primary.Allow(ctx, key)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return Result{}, err
	}
	return f.Secondary.Allow(ctx, key)
}

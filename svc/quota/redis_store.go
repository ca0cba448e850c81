package quota

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/imgcompare/svc/plan"
)

const (
	redisKeyPrefix = "quota:"
	redisAttempts  = 10
	// Counters outlive their day by a margin so Usage can still report them.
	redisTTL = 48 * time.Hour
)

// RedisStore keeps each counter in a hash and consumes quota inside an
// optimistic WATCH/MULTI transaction, retried when another client touched
// the key in between.
type RedisStore struct {
	client redis.UniversalClient
	opts   storeOptions
}

// NewRedisStore creates a store on client.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: newOptions(opts)}
}

// CheckAndConsume consumes one unit of today's allowance with an optimistic
// WATCH/MULTI transaction, retrying when another writer got there first.
func (s *RedisStore) CheckAndConsume(ctx context.Context, userID string, tier plan.Tier, limit int) (Usage, error) {
	if userID == "" {
		return Usage{}, ErrMissingUserID
	}
	key := redisKeyPrefix + userID

	var usage Usage
	txf := func(tx *redis.Tx) error {
		now := s.opts.now().UTC()
		day := Day(now)

		c, err := readCounter(ctx, tx, key)
		if err != nil {
			return err
		}
		used := c.UsedOn(day)
		if used >= limit {
			usage = Usage{Day: day, Plan: tier, Used: used, Max: limit}
			return ErrLimitExceeded
		}

		c = Counter{UserID: userID, Day: day, Count: used + 1, Max: limit, Plan: string(tier), UpdatedAt: now}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"day", c.Day,
				"count", c.Count,
				"max", c.Max,
				"plan", c.Plan,
				"updated_at", c.UpdatedAt.Format(time.RFC3339Nano),
			)
			pipe.Expire(ctx, key, redisTTL)
			return nil
		})
		if err != nil {
			return err
		}
		usage = usageOf(c, day)
		return nil
	}

	for range redisAttempts {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return usage, nil
		case errors.Is(err, ErrLimitExceeded):
			return usage, err
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return Usage{}, errors.Join(ErrStoreUnavailable, err)
		}
	}
	return Usage{}, errors.Join(ErrStoreUnavailable, redis.TxFailedErr)
}

// Usage returns today's consumption for userID without writing.
func (s *RedisStore) Usage(ctx context.Context, userID string) (Usage, error) {
	c, err := readCounter(ctx, s.client, redisKeyPrefix+userID)
	if err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	return usageOf(c, Day(s.opts.now())), nil
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readCounter(ctx context.Context, c hashReader, key string) (Counter, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return Counter{}, err
	}
	out := Counter{
		Day:  fields["day"],
		Plan: fields["plan"],
	}
	if v := fields["count"]; v != "" {
		if out.Count, err = strconv.Atoi(v); err != nil {
			return Counter{}, err
		}
	}
	if v := fields["max"]; v != "" {
		if out.Max, err = strconv.Atoi(v); err != nil {
			return Counter{}, err
		}
	}
	if v := fields["updated_at"]; v != "" {
		out.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return out, nil
}

package quota_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

// clock is a settable time source shared by a store under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// runStoreSuite exercises the behaviour every backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T, c *clock) quota.Store) {
	day1 := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	t.Run("consume until limit", func(t *testing.T) {
		c := newClock(day1)
		s := newStore(t, c)
		ctx := context.Background()
		uid := fmt.Sprintf("u-limit-%d", time.Now().UnixNano())

		u, err := s.CheckAndConsume(ctx, uid, plan.TierPro, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Used)
		assert.Equal(t, 1, u.Remaining)

		u, err = s.CheckAndConsume(ctx, uid, plan.TierPro, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, u.Used)
		assert.Equal(t, 0, u.Remaining)

		_, err = s.CheckAndConsume(ctx, uid, plan.TierPro, 2)
		require.ErrorIs(t, err, quota.ErrLimitExceeded)
		assert.NotErrorIs(t, err, quota.ErrStoreUnavailable)

		got, err := s.Usage(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Used)
		assert.Equal(t, 2, got.Max)
		assert.Equal(t, plan.TierPro, got.Plan)
		assert.Equal(t, "2025-03-10", got.Day)
	})

	t.Run("new day resets lazily with new max", func(t *testing.T) {
		c := newClock(day1)
		s := newStore(t, c)
		ctx := context.Background()
		uid := fmt.Sprintf("u-reset-%d", time.Now().UnixNano())

		for range 3 {
			_, err := s.CheckAndConsume(ctx, uid, plan.TierBasic, 3)
			require.NoError(t, err)
		}
		_, err := s.CheckAndConsume(ctx, uid, plan.TierBasic, 3)
		require.ErrorIs(t, err, quota.ErrLimitExceeded)

		c.Set(day2)
		got, err := s.Usage(ctx, uid)
		require.NoError(t, err)
		assert.Zero(t, got.Used)

		u, err := s.CheckAndConsume(ctx, uid, plan.TierElite, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Used)
		assert.Equal(t, 10, u.Max)
		assert.Equal(t, plan.TierElite, u.Plan)
		assert.Equal(t, "2025-03-11", u.Day)
	})

	t.Run("concurrent consumers never overspend", func(t *testing.T) {
		c := newClock(day1)
		s := newStore(t, c)
		ctx := context.Background()
		uid := fmt.Sprintf("u-race-%d", time.Now().UnixNano())

		const (
			limit   = 5
			workers = 32
		)
		var (
			wg       sync.WaitGroup
			accepted atomic.Int32
			limited  atomic.Int32
			failed   atomic.Int32
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CheckAndConsume(ctx, uid, plan.TierPro, limit)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, quota.ErrLimitExceeded):
					limited.Add(1)
				default:
					failed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(limit), accepted.Load())
		assert.Equal(t, int32(workers-limit), limited.Load())
		assert.Zero(t, failed.Load())

		got, err := s.Usage(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, limit, got.Used)
	})

	t.Run("unknown user has no usage", func(t *testing.T) {
		s := newStore(t, newClock(day1))
		got, err := s.Usage(context.Background(), fmt.Sprintf("u-none-%d", time.Now().UnixNano()))
		require.NoError(t, err)
		assert.Zero(t, got.Used)
		assert.Equal(t, "2025-03-10", got.Day)
	})
}

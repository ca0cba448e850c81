package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localEntryTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is an in-process token bucket per key.
type Local struct {
	limit Limit
	mu    sync.Mutex
	keys  map[string]*localEntry
	calls int
	now   func() time.Time
}

// NewLocal creates an in-process limiter.
func NewLocal(limit Limit) (*Local, error) {
	if !limit.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidLimit, limit)
	}
	return &Local{limit: limit, keys: make(map[string]*localEntry), now: time.Now}, nil
}

func (l *Local) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	every := l.limit.Period / time.Duration(l.limit.Rate)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%1024 == 0 {
		l.sweep(now)
	}

	e, ok := l.keys[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(every), l.limit.Burst)}
		l.keys[key] = e
	}
	e.lastSeen = now

	res := e.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay}, nil
	}
	return Result{Allowed: true, Remaining: max(int(e.limiter.TokensAt(now)), 0)}, nil
}

// sweep drops idle keys so memory stays bounded by active users.
func (l *Local) sweep(now time.Time) {
	for k, e := range l.keys {
		if now.Sub(e.lastSeen) > localEntryTTL {
			delete(l.keys, k)
		}
	}
}

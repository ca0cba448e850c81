package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/pkg/ratelimiter"
)

func TestLocal(t *testing.T) {
	t.Parallel()
	l, err := ratelimiter.NewLocal(ratelimiter.Limit{Rate: 1, Burst: 3, Period: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 3 {
		res, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
	}
	res, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// Keys are independent.
	res, err = l.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalRejectsInvalidLimit(t *testing.T) {
	t.Parallel()
	_, err := ratelimiter.NewLocal(ratelimiter.Limit{Rate: 0, Burst: 1, Period: time.Second})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidLimit)
}

type failing struct{}

func (failing) Allow(context.Context, string) (ratelimiter.Result, error) {
	return ratelimiter.Result{}, ratelimiter.ErrStoreUnavailable
}

func TestFallback(t *testing.T) {
	t.Parallel()
	local, err := ratelimiter.NewLocal(ratelimiter.PerMinute(60, 1))
	require.NoError(t, err)
	f := ratelimiter.Fallback{Primary: failing{}, Secondary: local}

	res, err := f.Allow(context.Background(), "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = f.Allow(context.Background(), "u")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	local, err := ratelimiter.NewLocal(ratelimiter.Limit{Rate: 1, Burst: 1, Period: time.Hour})
	require.NoError(t, err)

	var rejected error
	mw := ratelimiter.Middleware(local,
		func(r *http.Request) string { return r.Header.Get("X-User") },
		func(w http.ResponseWriter, _ *http.Request, err error) {
			rejected = err
			w.WriteHeader(http.StatusTooManyRequests)
		}, nil)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/compare", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("a").Code)
	rec := do("a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, ratelimiter.IsRateLimited(rejected))

	// Empty key bypasses.
	assert.Equal(t, http.StatusOK, do("").Code)
	assert.Equal(t, http.StatusOK, do("").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	t.Parallel()
	mw := ratelimiter.Middleware(failing{}, func(*http.Request) string { return "k" },
		func(w http.ResponseWriter, _ *http.Request, _ error) { w.WriteHeader(http.StatusTooManyRequests) }, nil)
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := ratelimiter.NewRedis(rdb, ratelimiter.Limit{Rate: 1, Burst: 2, Period: time.Hour}, "test:rl:")
	require.NoError(t, err)
	key := time.Now().Format(time.RFC3339Nano)

	for range 2 {
		res, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

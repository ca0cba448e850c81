package ratelimiter

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

// KeyFunc extracts the limiter key from a request. An empty key bypasses the limiter.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with onLimited. Limiter failures
// fail open and are logged.
func Middleware(l Limiter, key KeyFunc, onLimited func(http.ResponseWriter, *http.Request, error), log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			res, err := l.Allow(r.Context(), k)
			if err != nil {
				log.WarnContext(r.Context(), "rate limiter failed, allowing request",
					logger.Component("ratelimiter"), logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				secs := max(int(math.Ceil(res.RetryAfter.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				onLimited(w, r, ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsRateLimited reports whether err is a rejection by a Limiter.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

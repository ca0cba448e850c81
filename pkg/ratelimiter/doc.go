// Package ratelimiter throttles bursts of requests per key.
//
// Local keeps a golang.org/x/time/rate token bucket per key in process.
// Redis shares a GCRA limiter across instances using redis_rate, and
// Fallback degrades from Redis to Local when Redis is unreachable.
// This is burst protection only; the daily plan allowance lives in the
// quota package.
package ratelimiter

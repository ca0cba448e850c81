// Package redis connects to Redis with retries and exposes a readiness probe.
package redis

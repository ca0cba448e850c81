package ratelimiter

import "errors"

var (
	ErrInvalidLimit     = errors.New("invalid rate limit")
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

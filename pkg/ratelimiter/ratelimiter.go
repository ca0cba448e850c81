package ratelimiter

import (
	"context"
	"time"
)

// Limit allows Rate events per Period with bursts of up to Burst.
type Limit struct {
	Rate   int
	Burst  int
	Period time.Duration
}

// PerMinute returns a Limit of rate events per minute.
func PerMinute(rate, burst int) Limit {
	return Limit{Rate: rate, Burst: burst, Period: time.Minute}
}

func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0 && l.Period > 0
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the event identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config is the environment-driven limiter configuration.
type Config struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	// PerMinute is the sustained request rate per user.
	PerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	Burst     int `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

// Limit converts the configuration into a Limit.
func (c Config) Limit() Limit { return PerMinute(c.PerMinute, c.Burst) }

package compare

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before a retry. Attempt starts at 1.
type Backoff interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically with optional jitter.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	initial := cmpOr(e.Initial, 500*time.Millisecond)
	ceiling := cmpOr(e.Max, 10*time.Second)
	mult := e.Multiplier
	if mult == 0 {
		mult = 2
	}

	d := float64(initial) * math.Pow(mult, float64(attempt-1))
	if e.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*e.Jitter
	}
	if d > float64(ceiling) {
		d = float64(ceiling)
	}
	return time.Duration(d)
}

func cmpOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

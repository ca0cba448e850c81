package quota

import (
	"context"
	"time"

	"github.com/dmitrymomot/imgcompare/svc/plan"
)

// DayLayout is the format of the day marker stored on a counter.
const DayLayout = "2006-01-02"

// Day returns the UTC calendar day containing t.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Counter is the stored per-user daily counter.
type Counter struct {
	UserID    string    `bson:"_id" json:"user_id"`
	Day       string    `bson:"day" json:"day"`
	Count     int       `bson:"count" json:"count"`
	Max       int       `bson:"max" json:"max"`
	Plan      string    `bson:"plan" json:"plan"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UsedOn returns the count consumed on day. A counter from another day
// counts as zero.
func (c Counter) UsedOn(day string) int {
	if c.Day != day {
		return 0
	}
	return c.Count
}

// Usage is a read-out of a user's consumption for the current day.
type Usage struct {
	Day       string    `json:"day"`
	Plan      plan.Tier `json:"plan"`
	Used      int       `json:"used"`
	Max       int       `json:"max"`
	Remaining int       `json:"remaining"`
}

func usageOf(c Counter, day string) Usage {
	u := Usage{Day: day}
	if c.Day != day {
		return u
	}
	u.Plan = plan.ParseTier(c.Plan)
	u.Used = c.Count
	u.Max = c.Max
	u.Remaining = max(c.Max-c.Count, 0)
	return u
}

// Store is the daily quota ledger.
type Store interface {
	// CheckAndConsume atomically consumes one unit of today's allowance.
	// It returns ErrLimitExceeded without writing when used >= limit. Any
	// storage failure is wrapped with ErrStoreUnavailable.
	CheckAndConsume(ctx context.Context, userID string, tier plan.Tier, limit int) (Usage, error)
	// Usage reports today's consumption without modifying it.
	Usage(ctx context.Context, userID string) (Usage, error)
}

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock overrides the time source used to compute the current day.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

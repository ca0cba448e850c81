// Package quota implements the per-user daily allowance and the gate that
// guards every protected action.
//
// # Counters
//
// A Store holds one Counter per user, keyed by user id and stamped with the
// UTC day it belongs to. A counter from an earlier day reads as zero;
// nothing resets counters in the background. The first consumption of a new
// day simply overwrites the stale counter.
//
// CheckAndConsume is the only write path and is atomic per user in every
// backend:
//
//   - MemoryStore: a mutex
//   - MongoStore: a conditional FindOneAndUpdate with upsert
//   - PostgresStore: SELECT ... FOR UPDATE inside a transaction
//   - RedisStore: WATCH/MULTI with retries
//
// When today's count has already reached the limit the store returns
// ErrLimitExceeded and writes nothing. Any backend failure is wrapped with
// ErrStoreUnavailable so callers can tell an outage from an exhausted
// allowance.
//
// The limit is passed in by the caller on every call. A counter remembers
// the limit and plan it was last written under, so an upgrade or downgrade
// takes effect on the next consumption without touching stored data.
//
// # Gate
//
// Gate combines the entitlement lookup with the store into one decision:
//
//	gate := quota.NewGate(entitlements, catalog, store, quota.WithGateLogger(log))
//	grant, err := gate.Authorize(ctx, userID)
//	switch {
//	case errors.Is(err, entitlement.ErrNoPlan):
//		// no usable subscription, or the tier has no allowance
//	case errors.Is(err, quota.ErrLimitExceeded):
//		// today's allowance is used up
//	case err != nil:
//		// ledger or store unavailable
//	}
//
// A successful Authorize has already consumed one unit, so it must be called
// once per protected action, immediately before the work is done. A tier
// without a positive daily limit fails closed with entitlement.ErrNoPlan.
//
// # Usage
//
// Usage reads today's consumption without writing. The billing status
// endpoint uses it for display only.
//
// # Time
//
// Days are UTC calendar days formatted with DayLayout. WithClock replaces
// the time source in tests.
package quota

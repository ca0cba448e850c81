package quota

import (
	"context"
	"sync"

	"github.com/dmitrymomot/imgcompare/svc/plan"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counter
	opts     storeOptions
}

// NewMemoryStore creates an empty in-memory quota store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]Counter),
		opts:     newOptions(opts),
	}
}

// CheckAndConsume consumes one unit of today's allowance under the store's
// mutex. It fails with ErrLimitExceeded once limit is reached.
func (s *MemoryStore) CheckAndConsume(ctx context.Context, userID string, tier plan.Tier, limit int) (Usage, error) {
	if userID == "" {
		return Usage{}, ErrMissingUserID
	}
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	day := Day(now)
	used := s.counters[userID].UsedOn(day)
	if used >= limit {
		return Usage{Day: day, Plan: tier, Used: used, Max: limit}, ErrLimitExceeded
	}

	c := Counter{
		UserID:    userID,
		Day:       day,
		Count:     used + 1,
		Max:       limit,
		Plan:      string(tier),
		UpdatedAt: now.UTC(),
	}
	s.counters[userID] = c
	return usageOf(c, day), nil
}

// Usage returns today's consumption for userID without writing.
func (s *MemoryStore) Usage(ctx context.Context, userID string) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return usageOf(s.counters[userID], Day(s.opts.now())), nil
}

// Counter returns the raw stored counter for userID.
func (s *MemoryStore) Counter(userID string) (Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	return c, ok
}

// Put overwrites the stored counter. Intended for seeding tests.
func (s *MemoryStore) Put(c Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[c.UserID] = c
}

package quota_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/svc/customer"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/quota"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type stack struct {
	gate     *quota.Gate
	ledger   *ledger.Memory
	users    *user.MemoryStore
	store    *quota.MemoryStore
	resolver *customer.Resolver
}

func newStack(t *testing.T, limits map[plan.Tier]int) stack {
	t.Helper()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lc := ledger.NewMemory(ledger.WithMemoryClock(clock))
	users := user.NewMemoryStore()
	_, err := users.Ensure(context.Background(), user.User{ID: "u1", Email: "grace@example.com"})
	require.NoError(t, err)

	catalog, err := plan.NewCatalog(limits, map[plan.Tier][]string{plan.TierPro: {"price_pro"}})
	require.NoError(t, err)

	resolver := customer.NewResolver(lc, users, customer.WithLogger(quiet))
	ent := entitlement.NewService(resolver, lc, catalog, entitlement.WithLogger(quiet), entitlement.WithClock(clock))
	store := quota.NewMemoryStore(quota.WithClock(clock))
	gate := quota.NewGate(ent, catalog, store, quota.WithGateLogger(quiet))

	return stack{gate: gate, ledger: lc, users: users, store: store, resolver: resolver}
}

func activeSub(priceID, nickname string) ledger.Subscription {
	return ledger.Subscription{
		Status: ledger.StatusActive,
		Items:  []ledger.Item{{Price: ledger.Price{ID: priceID, Nickname: nickname}}},
	}
}

func TestGate_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStack(t, map[plan.Tier]int{plan.TierPro: 2})

	_, err := s.gate.Authorize(ctx, "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)
	assert.Equal(t, 1, s.ledger.Calls(ledger.OpCreateCustomer))

	u, err := s.users.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, u.BillingCustomerID)
	_, ok := s.store.Counter("u1")
	assert.False(t, ok, "no plan must not touch the counter")

	s.ledger.AttachSubscription(u.BillingCustomerID, activeSub("price_pro", ""))

	g, err := s.gate.Authorize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, quota.Grant{Plan: plan.TierPro, Max: 2, Used: 1, Remaining: 1}, g)

	g, err = s.gate.Authorize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Used)
	assert.Zero(t, g.Remaining)

	_, err = s.gate.Authorize(ctx, "u1")
	require.ErrorIs(t, err, quota.ErrLimitExceeded)
	assert.Equal(t, 1, s.ledger.Calls(ledger.OpCreateCustomer))
}

func TestGate_UnknownTierFailsClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStack(t, map[plan.Tier]int{plan.TierPro: 2})

	cid, err := s.resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	s.ledger.AttachSubscription(cid, activeSub("price_team", "Team"))

	_, err = s.gate.Authorize(ctx, "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)
}

func TestGate_ZeroAllowanceIsNoPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStack(t, map[plan.Tier]int{plan.TierPro: 2, plan.TierBasic: 0})

	cid, err := s.resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	s.ledger.AttachSubscription(cid, activeSub("", "Basic"))

	g, err := s.gate.Authorize(ctx, "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)
	assert.Equal(t, plan.TierBasic, g.Plan)
}

func TestGate_LedgerFailureIsNotALimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStack(t, map[plan.Tier]int{plan.TierPro: 2})

	_, err := s.resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	s.ledger.FailOn(ledger.OpListSubscriptions, errors.New("timeout"))

	_, err = s.gate.Authorize(ctx, "u1")
	require.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.NotErrorIs(t, err, quota.ErrLimitExceeded)
	assert.NotErrorIs(t, err, entitlement.ErrNoPlan)
}

func TestGate_ConcurrentAuthorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStack(t, map[plan.Tier]int{plan.TierPro: 3})

	cid, err := s.resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	s.ledger.AttachSubscription(cid, activeSub("price_pro", ""))

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.gate.Authorize(ctx, "u1")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, quota.ErrLimitExceeded):
			limited++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, n-3, limited)

	c, _ := s.store.Counter("u1")
	assert.Equal(t, 3, c.Count)
}

// cancellingPlans cancels the caller's context after answering, as if the
// client disconnected while the entitlement lookup was in flight.
type cancellingPlans struct {
	cancel context.CancelFunc
}

func (p cancellingPlans) CurrentPlan(context.Context, string) (plan.Tier, error) {
	p.cancel()
	return plan.TierPro, nil
}

func TestGate_CancelledBeforeConsume(t *testing.T) {
	t.Parallel()
	catalog, err := plan.NewCatalog(map[plan.Tier]int{plan.TierPro: 2}, nil)
	require.NoError(t, err)
	store := quota.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gate := quota.NewGate(cancellingPlans{cancel: cancel}, catalog, store, quota.WithGateLogger(quiet))

	_, err = gate.Authorize(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
	_, ok := store.Counter("u1")
	assert.False(t, ok)
}

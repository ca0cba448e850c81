package entitlement_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/svc/customer"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *entitlement.Service
	ledger   *ledger.Memory
	users    *user.MemoryStore
	customer string
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	lc := ledger.NewMemory(ledger.WithMemoryClock(func() time.Time { return now }))
	users := user.NewMemoryStore()
	_, err := users.Ensure(ctx, user.User{ID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)

	catalog, err := plan.NewCatalog(
		map[plan.Tier]int{plan.TierBasic: 5, plan.TierPro: 25, plan.TierElite: 100},
		map[plan.Tier][]string{plan.TierPro: {"price_pro_monthly"}},
	)
	require.NoError(t, err)

	resolver := customer.NewResolver(lc, users, customer.WithLogger(quiet))
	svc := entitlement.NewService(resolver, lc, catalog,
		entitlement.WithLogger(quiet),
		entitlement.WithClock(func() time.Time { return now }),
		entitlement.WithMirrorStore(users),
	)

	cid, err := resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	return fixture{svc: svc, ledger: lc, users: users, customer: cid}
}

func sub(status ledger.Status, priceID, nickname string, created time.Time) ledger.Subscription {
	return ledger.Subscription{
		Status:           status,
		CreatedAt:        created,
		CurrentPeriodEnd: now.Add(30 * 24 * time.Hour),
		Items:            []ledger.Item{{Price: ledger.Price{ID: priceID, Nickname: nickname}}},
	}
}

func TestCurrentPlan_NoSubscription(t *testing.T) {
	t.Parallel()
	f := setup(t)

	tier, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)
	assert.Equal(t, plan.TierNone, tier)
}

func TestCurrentPlan_ActiveByPriceID(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.ledger.AttachSubscription(f.customer, sub(ledger.StatusActive, "price_pro_monthly", "", now.Add(-time.Hour)))

	tier, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, tier)
}

func TestCurrentPlan_NewestUsableWins(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.ledger.AttachSubscription(f.customer, sub(ledger.StatusActive, "", "Basic monthly", now.Add(-48*time.Hour)))
	f.ledger.AttachSubscription(f.customer, sub(ledger.StatusTrialing, "", "Elite trial", now.Add(-time.Hour)))
	f.ledger.AttachSubscription(f.customer, sub(ledger.StatusCanceled, "", "Pro monthly", now.Add(-time.Minute)))

	tier, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierElite, tier)
}

func TestCurrentPlan_StrictRejectsPastDue(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.ledger.AttachSubscription(f.customer, sub(ledger.StatusPastDue, "price_pro_monthly", "", now.Add(-time.Hour)))

	_, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)

	st, err := f.svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, plan.TierPro, st.Tier)
}

func TestCurrentPlan_CancellationReached(t *testing.T) {
	t.Parallel()
	f := setup(t)
	s := sub(ledger.StatusActive, "price_pro_monthly", "", now.Add(-time.Hour))
	s.CancelAt = now.Add(-time.Second)
	f.ledger.AttachSubscription(f.customer, s)

	_, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)
}

func TestCurrentPlan_ScheduledCancellationStillUsable(t *testing.T) {
	t.Parallel()
	f := setup(t)
	s := sub(ledger.StatusActive, "price_pro_monthly", "", now.Add(-time.Hour))
	s.CancelAtPeriodEnd = true
	f.ledger.AttachSubscription(f.customer, s)

	tier, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, tier)
}

func TestCurrentPlan_UnmappedPriceFailsClosed(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.ledger.AttachSubscription(f.customer, sub(ledger.StatusActive, "price_unknown", "Team seat", now.Add(-time.Hour)))

	_, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.ErrorIs(t, err, entitlement.ErrNoPlan)
}

func TestCurrentPlan_LedgerUnavailable(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.ledger.FailOn(ledger.OpListSubscriptions, errors.New("connection reset"))

	_, err := f.svc.CurrentPlan(context.Background(), "u1")
	require.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.NotErrorIs(t, err, entitlement.ErrNoPlan)
}

func TestCurrentPlan_UnknownUser(t *testing.T) {
	t.Parallel()
	f := setup(t)

	_, err := f.svc.CurrentPlan(context.Background(), "ghost")
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestStatus_RefreshesMirror(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	s := f.ledger.AttachSubscription(f.customer, sub(ledger.StatusActive, "price_pro_monthly", "", now.Add(-time.Hour)))

	st, err := f.svc.Status(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, st.Subscription)
	assert.Equal(t, s.ID, st.Subscription.ID)
	assert.Equal(t, f.customer, st.CustomerID)

	u, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.Mirror)
	assert.True(t, u.Mirror.Active)
	assert.Equal(t, "pro", u.Mirror.Plan)
	assert.Equal(t, s.ID, u.Mirror.SubscriptionID)
	assert.Equal(t, "price_pro_monthly", u.Mirror.PriceID)
	assert.Equal(t, now, u.Mirror.SyncedAt)
}

func TestStatus_Inactive(t *testing.T) {
	t.Parallel()
	f := setup(t)

	st, err := f.svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Nil(t, st.Subscription)
	assert.Equal(t, plan.TierNone, st.Tier)
}

func TestStatus_CanceledOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	canceled := sub(ledger.StatusCanceled, "price_pro_monthly", "", now.Add(-48*time.Hour))
	canceled.CurrentPeriodEnd = now.Add(-24 * time.Hour)
	s := f.ledger.AttachSubscription(f.customer, canceled)

	st, err := f.svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, plan.TierNone, st.Tier)
	assert.Nil(t, st.Subscription)
	require.NotNil(t, st.Latest)
	assert.Equal(t, s.ID, st.Latest.ID)
	assert.Equal(t, ledger.StatusCanceled, st.Latest.Status)

	u, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.Mirror)
	assert.False(t, u.Mirror.Active)
	assert.Equal(t, "canceled", u.Mirror.Status)
	assert.Empty(t, u.Mirror.Plan)
}

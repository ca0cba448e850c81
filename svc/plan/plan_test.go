package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
)

func testCatalog(t *testing.T) *plan.Catalog {
	t.Helper()
	c, err := plan.NewCatalog(
		map[plan.Tier]int{plan.TierBasic: 5, plan.TierPro: 25, plan.TierElite: 100},
		map[plan.Tier][]string{
			plan.TierBasic: {"price_basic_m"},
			plan.TierPro:   {"price_pro_m", "price_pro_y"},
			plan.TierElite: {"price_elite_m"},
		},
	)
	require.NoError(t, err)
	return c
}

func TestCatalog_Resolve(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	tests := []struct {
		name  string
		price ledger.Price
		want  plan.Tier
	}{
		{name: "price id", price: ledger.Price{ID: "price_pro_y"}, want: plan.TierPro},
		{name: "price id beats nickname", price: ledger.Price{ID: "price_basic_m", Nickname: "Elite monthly"}, want: plan.TierBasic},
		{name: "price id beats lookup key", price: ledger.Price{ID: "price_elite_m", LookupKey: "basic_monthly"}, want: plan.TierElite},
		{name: "lookup key", price: ledger.Price{ID: "price_unknown", LookupKey: "PRO_MONTHLY"}, want: plan.TierPro},
		{name: "lookup key beats nickname", price: ledger.Price{LookupKey: "elite", Nickname: "Basic"}, want: plan.TierElite},
		{name: "nickname", price: ledger.Price{Nickname: "Basic Plan"}, want: plan.TierBasic},
		{name: "nothing matches", price: ledger.Price{ID: "price_x", Nickname: "Starter"}, want: plan.TierNone},
		{name: "empty", price: ledger.Price{}, want: plan.TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Resolve(tt.price))
		})
	}
}

func TestCatalog_ResolveSubscription(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)

	sub := ledger.Subscription{Items: []ledger.Item{
		{Price: ledger.Price{ID: "price_pro_m"}},
		{Price: ledger.Price{ID: "price_elite_m"}},
	}}
	assert.Equal(t, plan.TierPro, c.ResolveSubscription(sub), "only the primary item counts")
	assert.Equal(t, plan.TierNone, c.ResolveSubscription(ledger.Subscription{}))
}

func TestCatalog_DailyLimit(t *testing.T) {
	t.Parallel()
	c := testCatalog(t)
	assert.Equal(t, 25, c.DailyLimit(plan.TierPro))
	assert.Equal(t, 0, c.DailyLimit(plan.TierNone))

	var nilCatalog *plan.Catalog
	assert.Equal(t, 0, nilCatalog.DailyLimit(plan.TierPro))
}

func TestNewCatalog_Errors(t *testing.T) {
	t.Parallel()

	_, err := plan.NewCatalog(map[plan.Tier]int{"gold": 1}, nil)
	assert.ErrorIs(t, err, plan.ErrUnknownTier)

	_, err = plan.NewCatalog(nil, map[plan.Tier][]string{
		plan.TierBasic: {"price_1"},
		plan.TierPro:   {"price_1"},
	})
	assert.ErrorIs(t, err, plan.ErrDuplicatePrice)
}

func TestNewCatalogFromConfig(t *testing.T) {
	t.Parallel()
	c, err := plan.NewCatalogFromConfig(plan.Config{
		BasicDailyLimit: 1,
		ProDailyLimit:   2,
		EliteDailyLimit: 3,
		ProPriceIDs:     []string{" price_p "},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.DailyLimit(plan.TierPro))
	assert.Equal(t, plan.TierPro, c.Resolve(ledger.Price{ID: "price_p"}))
}

func TestParseTier(t *testing.T) {
	t.Parallel()
	assert.Equal(t, plan.TierElite, plan.ParseTier(" Elite "))
	assert.Equal(t, plan.TierNone, plan.ParseTier("gold"))
	assert.Equal(t, "none", plan.TierNone.String())
}

package plan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/imgcompare/svc/ledger"
	"github.com/dmitrymomot/imgcompare/svc/plan"
)

func TestUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	periodEnd := now.Add(48 * time.Hour)

	tests := []struct {
		name    string
		sub     ledger.Subscription
		strict  bool
		lenient bool
	}{
		{name: "active", sub: ledger.Subscription{Status: ledger.StatusActive}, strict: true, lenient: true},
		{name: "trialing", sub: ledger.Subscription{Status: ledger.StatusTrialing}, strict: true, lenient: true},
		{name: "past due", sub: ledger.Subscription{Status: ledger.StatusPastDue}, strict: false, lenient: true},
		{name: "unpaid", sub: ledger.Subscription{Status: ledger.StatusUnpaid}, strict: false, lenient: true},
		{name: "canceled", sub: ledger.Subscription{Status: ledger.StatusCanceled}},
		{name: "incomplete", sub: ledger.Subscription{Status: ledger.StatusIncomplete}},
		{name: "paused", sub: ledger.Subscription{Status: ledger.StatusPaused}},
		{name: "unknown", sub: ledger.Subscription{Status: "mystery"}},
		{
			name:    "cancel at period end, before end",
			sub:     ledger.Subscription{Status: ledger.StatusActive, CancelAtPeriodEnd: true, CurrentPeriodEnd: periodEnd},
			strict:  true,
			lenient: true,
		},
		{
			name: "cancel at period end, after end",
			sub:  ledger.Subscription{Status: ledger.StatusActive, CancelAtPeriodEnd: true, CurrentPeriodEnd: now.Add(-time.Second)},
		},
		{
			name:    "explicit cancel at in the future",
			sub:     ledger.Subscription{Status: ledger.StatusActive, CancelAt: now.Add(time.Hour)},
			strict:  true,
			lenient: true,
		},
		{
			name: "explicit cancel at reached",
			sub:  ledger.Subscription{Status: ledger.StatusActive, CancelAt: now},
		},
		{
			name: "past due after cancel",
			sub:  ledger.Subscription{Status: ledger.StatusPastDue, CancelAt: now.Add(-time.Minute)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.strict, plan.Usable(tt.sub, now, plan.Strict), "strict")
			assert.Equal(t, tt.lenient, plan.Usable(tt.sub, now, plan.Lenient), "lenient")
		})
	}
}

func TestFilterUsable(t *testing.T) {
	t.Parallel()
	now := time.Now()
	subs := []ledger.Subscription{
		{ID: "a", Status: ledger.StatusActive},
		{ID: "b", Status: ledger.StatusPastDue},
		{ID: "c", Status: ledger.StatusCanceled},
	}
	assert.Len(t, plan.FilterUsable(subs, now, plan.Strict), 1)
	assert.Len(t, plan.FilterUsable(subs, now, plan.Lenient), 2)
}

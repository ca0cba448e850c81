package billing

import (
	"time"

	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/authn"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/svc/entitlement"
	"github.com/dmitrymomot/imgcompare/svc/plan"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

type statusResponse struct {
	Active            bool       `json:"active"`
	Status            *string    `json:"status"`
	Plan              *string    `json:"plan"`
	SubscriptionID    string     `json:"subscription_id"`
	PriceID           string     `json:"price_id"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	Interval          string     `json:"interval"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CancelAt          *time.Time `json:"cancel_at"`
	Usage             usageView  `json:"usage"`
}

type usageView struct {
	Used      int    `json:"used"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
	Day       string `json:"day"`
}

func (m *Module) status(ctx handler.Context, _ struct{}) handler.Response {
	userID := authn.UserID(ctx)
	if userID == "" {
		return handler.Error(authn.ErrUnauthorized)
	}

	st, err := m.deps.Status.Status(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}

	resp := statusResponse{Active: st.Active}
	if st.Active && st.Tier != plan.TierNone {
		resp.Plan = stringPtr(string(st.Tier))
	}
	// Without a usable subscription the newest one of any status is shown,
	// so a canceled customer still sees what they had.
	sub := st.Subscription
	if sub == nil {
		sub = st.Latest
	}
	if sub != nil {
		resp.Status = stringPtr(string(sub.Status))
		resp.SubscriptionID = sub.ID
		resp.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		resp.CurrentPeriodEnd = timePtr(sub.CurrentPeriodEnd)
		resp.CancelAt = timePtr(sub.CancelEffectiveAt())
		if p, ok := sub.PrimaryPrice(); ok {
			resp.PriceID = p.ID
			resp.Amount = p.UnitAmount
			resp.Currency = p.Currency
			resp.Interval = p.Interval
		}
	}

	resp.Usage = m.usage(ctx, userID, st)
	return handler.JSON(resp)
}

// usage is best effort: the status read-out still renders when the quota
// store is unreachable.
func (m *Module) usage(ctx handler.Context, userID string, st entitlement.Status) usageView {
	limit := 0
	if st.Active && m.deps.Catalog != nil {
		limit = m.deps.Catalog.DailyLimit(st.Tier)
	}
	view := usageView{Max: limit, Remaining: limit, Day: quota.Day(time.Now())}
	if m.deps.Usage == nil {
		return view
	}

	u, err := m.deps.Usage.Usage(ctx, userID)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read quota usage",
			logger.Component("billing"),
			logger.UserID(userID),
			logger.Error(err),
		)
		return view
	}
	view.Day = u.Day
	view.Used = u.Used
	// A counter written under another plan keeps its old max until the next
	// consumption; the read-out shows the current plan's limit.
	view.Remaining = max(limit-u.Used, 0)
	return view
}

func stringPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
